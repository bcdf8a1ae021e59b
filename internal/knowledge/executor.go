package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Environment variables handed to the agent command.
const (
	EnvTask    = "WAYFINDER_TASK"
	EnvGuide   = "WAYFINDER_GUIDE"
	EnvHistory = "WAYFINDER_HISTORY"
	EnvTaskID  = "WAYFINDER_TASK_ID"
	EnvAttempt = "WAYFINDER_ATTEMPT"
)

// ExecRequest describes one attempt for an Executor.
type ExecRequest struct {
	TaskID  string
	Task    string
	Guide   string
	Attempt int
	WorkDir string
}

// Executor runs the browsing agent once and returns the path of the history
// file it produced.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (string, error)
}

// CommandExecutor runs an agent as a shell command. The command must write
// its history JSON to the path in WAYFINDER_HISTORY.
type CommandExecutor struct {
	command string
	timeout time.Duration
	logger  *zap.Logger
}

func NewCommandExecutor(command string, timeout time.Duration, logger *zap.Logger) *CommandExecutor {
	return &CommandExecutor{command: command, timeout: timeout, logger: logger.Named("executor")}
}

func (e *CommandExecutor) Execute(ctx context.Context, req ExecRequest) (string, error) {
	if e.command == "" {
		return "", fmt.Errorf("no agent command configured")
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	historyPath, err := filepath.Abs(filepath.Join(req.WorkDir, "history.json"))
	if err != nil {
		return "", err
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", e.command)
	} else {
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		cmd = exec.CommandContext(ctx, shell, "-c", e.command)
	}
	cmd.Dir = req.WorkDir
	cmd.WaitDelay = 5 * time.Second
	cmd.Env = append(os.Environ(),
		EnvTask+"="+req.Task,
		EnvGuide+"="+req.Guide,
		EnvHistory+"="+historyPath,
		EnvTaskID+"="+req.TaskID,
		fmt.Sprintf("%s=%d", EnvAttempt, req.Attempt),
	)

	e.logger.Info("Running agent.", zap.String("task_id", req.TaskID), zap.Int("attempt", req.Attempt), zap.Bool("guided", req.Guide != ""))
	start := time.Now()
	output, err := cmd.CombinedOutput()
	if err != nil {
		e.logger.Error("Agent command failed.", zap.String("output", tail(output, 4096)), zap.Error(err))
		if ctx.Err() != nil {
			return "", fmt.Errorf("agent command aborted: %w", ctx.Err())
		}
		return "", fmt.Errorf("agent command failed: %w", err)
	}
	e.logger.Debug("Agent finished.", zap.Duration("duration", time.Since(start)), zap.String("output", tail(output, 4096)))

	if _, err := os.Stat(historyPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("agent did not write a history file to %s", historyPath)
		}
		return "", err
	}
	return historyPath, nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
