package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/wayfinder/internal/history"
	"github.com/xkilldash9x/wayfinder/internal/service"
)

func newHistoryCmd(factory service.ComponentFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Work with recorded agent histories",
	}
	cmd.AddCommand(newHistoryStepsCmd(), newHistoryScreenshotsCmd(factory))
	return cmd
}

func newHistoryStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps <history file>",
		Short: "Print the step descriptions the evaluator sees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := history.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range history.ToSteps(h) {
				shot := ""
				if s.Screenshot != "" {
					shot = " [screenshot]"
				}
				fmt.Fprintf(out, "%s%s\n", s.Description, shot)
			}
			return nil
		},
	}
}

func newHistoryScreenshotsCmd(factory service.ComponentFactory) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "screenshots <history file>",
		Short: "Save the screenshots of a history as PNG files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, service.Needs{}, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			h, err := history.Load(args[0])
			if err != nil {
				return err
			}
			if dir == "" {
				dir = env.cfg.History().ScreenshotsDir
			}
			paths, err := env.c.Screenshots.Save(cmd.Context(), history.ToSteps(h), dir)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Output directory. (Defaults to history.screenshots_dir)")
	return cmd
}
