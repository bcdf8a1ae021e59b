package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/knowledge"
	"github.com/xkilldash9x/wayfinder/internal/service"
)

type runOptions struct {
	task                 string
	agentCommand         string
	output               string
	maxAttempts          int
	storeGuidesOnFailure bool
}

func newRunCmd(factory service.ComponentFactory) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run --task <description> --exec <agent command>",
		Short: "Run an agent on a task, evaluating and retrying with generated guides",
		Long: `Run executes the agent command once per attempt. The command receives the task,
the current guide, and the path to write its history to in the environment:

  WAYFINDER_TASK, WAYFINDER_GUIDE, WAYFINDER_HISTORY, WAYFINDER_TASK_ID, WAYFINDER_ATTEMPT

Each history is evaluated and recorded. A failed attempt gets a new guide
built from stored plans and navigation graphs before the next one starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.maxAttempts < 0 {
				return fmt.Errorf("--max-attempts must not be negative")
			}
			adjust := func(cfg config.Interface) {
				if cmd.Flags().Changed("max-attempts") {
					cfg.SetKnowledgeMaxAttempts(opts.maxAttempts)
				}
				if cmd.Flags().Changed("store-guides-on-failure") {
					cfg.SetKnowledgeStoreGuidesOnFailure(opts.storeGuidesOnFailure)
				}
			}
			env, err := prepare(cmd, factory, service.Everything, adjust)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			exec := knowledge.NewCommandExecutor(opts.agentCommand, env.cfg.Knowledge().ExecutorTimeout, env.logger)
			return runTask(cmd.Context(), cmd.OutOrStdout(), env, opts, exec)
		},
	}

	cmd.Flags().StringVarP(&opts.task, "task", "t", "", "The task for the agent (required).")
	cmd.Flags().StringVarP(&opts.agentCommand, "exec", "e", "", "Shell command that runs the agent (required).")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Also write the outcome as JSON to this file.")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 0, "Maximum attempts. (Overrides config/env)")
	cmd.Flags().BoolVar(&opts.storeGuidesOnFailure, "store-guides-on-failure", false, "Store plans from failed attempts too. (Overrides config/env)")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("exec")

	return cmd
}

func runTask(ctx context.Context, out io.Writer, env *environment, opts *runOptions, exec knowledge.Executor) error {
	outcome, err := env.c.Knowledge.Run(ctx, opts.task, exec)
	if err != nil {
		if errors.Is(err, context.Canceled) && outcome != nil {
			env.logger.Warn("Run aborted.", zap.String("task_id", outcome.TaskID), zap.Int("attempts", len(outcome.Attempts)))
			_ = printJSON(out, outcome)
		}
		return err
	}

	if err := writeJSONFile(env.logger, opts.output, outcome); err != nil {
		return err
	}
	return printJSON(out, outcome)
}
