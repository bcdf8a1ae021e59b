package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/service"
)

var plansNeeds = service.Needs{Plans: true}

func newPlansCmd(factory service.ComponentFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect and manage stored plans",
	}
	cmd.AddCommand(
		newPlansListCmd(factory),
		newPlansStatsCmd(factory),
		newPlansSearchCmd(factory),
		newPlansDeleteTaskCmd(factory),
		newPlansClearCmd(factory),
	)
	return cmd
}

// withoutEmbeddings drops vectors from records meant for display.
func withoutEmbeddings(records []schemas.PlanRecord) []schemas.PlanRecord {
	out := make([]schemas.PlanRecord, len(records))
	for i, r := range records {
		r.Embedding = nil
		out[i] = r
	}
	return out
}

func newPlansListCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, plansNeeds, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			records, err := env.c.Plans.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), withoutEmbeddings(records))
		},
	}
}

func newPlansStatsCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show plan counts and task titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, plansNeeds, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			st, err := env.c.Plans.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newPlansSearchCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		topK        int
		showContext bool
	)
	cmd := &cobra.Command{
		Use:   "search <task title>",
		Short: "Find the plans most similar to a task title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, plansNeeds, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			title := strings.Join(args, " ")
			plans, err := env.c.Plans.FindSimilar(cmd.Context(), title, topK)
			if err != nil {
				return err
			}
			if showContext {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), env.c.Plans.BuildContext(plans))
				return err
			}
			for i := range plans {
				plans[i].Embedding = nil
			}
			return printJSON(cmd.OutOrStdout(), plans)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of plans to return. (Defaults to plans.top_k)")
	cmd.Flags().BoolVar(&showContext, "context", false, "Print the prompt context instead of JSON.")
	return cmd
}

func newPlansDeleteTaskCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-task <task title>",
		Short: "Delete every plan stored under a task title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, plansNeeds, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			title := strings.Join(args, " ")
			n, err := env.c.Plans.DeleteByTaskTitle(cmd.Context(), title)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d plan(s) for %q.\n", n, title)
			return nil
		},
	}
}

func newPlansClearCmd(factory service.ComponentFactory) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear --yes",
		Short: "Delete every stored plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete all plans without --yes")
			}
			env, err := prepare(cmd, factory, plansNeeds, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			n, err := env.c.Plans.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d plan(s).\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion.")
	return cmd
}
