package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/history"
	"github.com/xkilldash9x/wayfinder/internal/knowledge"
	"github.com/xkilldash9x/wayfinder/internal/service"
)

type evaluateOptions struct {
	historyPath     string
	task            string
	taskID          string
	output          string
	saveScreenshots bool
	noRecord        bool
}

// evaluationReport is what the evaluate command prints.
type evaluationReport struct {
	TaskID          string                  `json:"task_id"`
	Verdict         schemas.Verdict         `json:"verdict"`
	NavigationPages []string                `json:"navigation_pages"`
	Guides          map[string]string       `json:"guides,omitempty"`
	FailureGuide    *string                 `json:"failure_guide,omitempty"`
	Issues          []schemas.ParseIssue    `json:"issues,omitempty"`
	Screenshots     []string                `json:"screenshots,omitempty"`
	Record          *knowledge.RecordResult `json:"record,omitempty"`
}

func newEvaluateCmd(factory service.ComponentFactory) *cobra.Command {
	opts := &evaluateOptions{}

	cmd := &cobra.Command{
		Use:   "evaluate --history <file> --task <description>",
		Short: "Judge a recorded agent run and record what was learned",
		Long: `Evaluate sends a recorded agent history to the LLM evaluator, prints the verdict,
and stores the navigation graph and (on success) the plans it extracted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, service.Everything, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()
			return runEvaluate(cmd.Context(), cmd.OutOrStdout(), env, opts)
		},
	}

	cmd.Flags().StringVar(&opts.historyPath, "history", "", "Path to the agent history JSON (required).")
	cmd.Flags().StringVarP(&opts.task, "task", "t", "", "The task the agent was given (required).")
	cmd.Flags().StringVar(&opts.taskID, "task-id", "", "Task identifier stored with plans. Generated when empty.")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Also write the full parsed response as JSON to this file.")
	cmd.Flags().BoolVar(&opts.saveScreenshots, "screenshots", false, "Save step screenshots under history.screenshots_dir.")
	cmd.Flags().BoolVar(&opts.noRecord, "no-record", false, "Do not store the navigation graph or plans.")
	_ = cmd.MarkFlagRequired("history")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func runEvaluate(ctx context.Context, out io.Writer, env *environment, opts *evaluateOptions) error {
	h, err := history.Load(opts.historyPath)
	if err != nil {
		return err
	}
	steps := history.ToSteps(h)

	taskID := opts.taskID
	if taskID == "" {
		taskID = env.c.Knowledge.NewTaskID()
	}
	report := evaluationReport{TaskID: taskID}

	if opts.saveScreenshots {
		dir := filepath.Join(env.cfg.History().ScreenshotsDir, taskID)
		paths, err := env.c.Screenshots.Save(ctx, steps, dir)
		report.Screenshots = paths
		if err != nil {
			env.logger.Warn("Some screenshots could not be saved.", zap.String("dir", dir), zap.Error(err))
		}
	}

	env.logger.Info("Evaluating agent history.", zap.String("task_id", taskID), zap.Int("steps", len(steps)))
	parsed, err := env.c.Evaluator.Evaluate(ctx, opts.task, steps)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	report.Verdict = parsed.Verdict
	report.NavigationPages = parsed.NavigationGraph.PageNames()
	report.Guides = parsed.Guides
	report.FailureGuide = parsed.FailureGuide
	report.Issues = parsed.Issues

	var recordErr error
	if !opts.noRecord {
		rec, err := env.c.Knowledge.Record(ctx, parsed, taskID)
		report.Record = &rec
		recordErr = err
	}

	if err := writeJSONFile(env.logger, opts.output, parsed); err != nil {
		return err
	}
	if err := printJSON(out, report); err != nil {
		return err
	}
	if recordErr != nil {
		return fmt.Errorf("evaluation succeeded but recording failed: %w", recordErr)
	}
	return nil
}
