package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/service"
)

type guideOptions struct {
	task         string
	websiteURL   string
	title        string
	previousFile string
	attempt      int
	showContext  bool
}

func newGuideCmd(factory service.ComponentFactory) *cobra.Command {
	opts := &guideOptions{}

	cmd := &cobra.Command{
		Use:   "guide --task <description> [--url <website>]",
		Short: "Write a guide for a task from stored plans and navigation graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, service.Everything, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()
			return runGuide(cmd.Context(), cmd.OutOrStdout(), env, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.task, "task", "t", "", "The task to write a guide for (required).")
	cmd.Flags().StringVarP(&opts.websiteURL, "url", "u", "", "Website the task runs on; selects navigation graphs.")
	cmd.Flags().StringVar(&opts.title, "title", "", "Task title used to search plans. Defaults to the task.")
	cmd.Flags().StringVar(&opts.previousFile, "previous-file", "", "File holding the failure guide of the previous attempt.")
	cmd.Flags().IntVar(&opts.attempt, "attempt", 1, "Number of the attempt that just failed.")
	cmd.Flags().BoolVar(&opts.showContext, "show-context", false, "Print the retrieved context before the guide.")
	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func runGuide(ctx context.Context, out io.Writer, env *environment, opts *guideOptions) error {
	title := strings.TrimSpace(opts.title)
	if title == "" {
		title = strings.TrimSpace(opts.task)
	}

	prev := &schemas.ParsedResponse{
		Verdict: schemas.Verdict{Status: schemas.StatusFailure, WebsiteURL: opts.websiteURL, TaskTitle: title},
	}
	if opts.previousFile != "" {
		data, err := os.ReadFile(opts.previousFile)
		if err != nil {
			return fmt.Errorf("failed to read previous guide: %w", err)
		}
		text := string(data)
		prev.FailureGuide = &text
	}

	retry, err := env.c.Knowledge.PrepareRetry(ctx, opts.task, prev, opts.attempt)
	if err != nil {
		return err
	}
	if retry.Fallback {
		env.logger.Warn("Guide generation failed; printing the fallback guide.", zap.String("task", opts.task))
	}

	if opts.showContext {
		fmt.Fprintf(out, "%s\n\n%s\n\n---\n\n", retry.Context.RAG, retry.Context.Navigation)
	}
	_, err = fmt.Fprintln(out, retry.Guide)
	return err
}
