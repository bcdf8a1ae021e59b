package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/service"
)

// graphSummary is one row of `graphs find`.
type graphSummary struct {
	Key      string    `json:"key"`
	Match    string    `json:"match"`
	Modified time.Time `json:"modified"`
	Pages    []string  `json:"pages"`
	Path     string    `json:"path"`
}

func newGraphsCmd(factory service.ComponentFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graphs",
		Short: "Inspect stored navigation graphs",
	}
	cmd.AddCommand(
		newGraphsFindCmd(factory),
		newGraphsStatsCmd(factory),
		newGraphsKeyCmd(),
	)
	return cmd
}

func newGraphsFindCmd(factory service.ComponentFactory) *cobra.Command {
	var (
		showContext bool
		showGraph   bool
	)
	cmd := &cobra.Command{
		Use:   "find <website url>",
		Short: "List the graphs that apply to a website, best first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, service.Needs{}, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			docs, err := env.c.Graphs.FindAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case showContext:
				_, err := fmt.Fprintln(out, env.c.Graphs.BuildContext(docs))
				return err
			case showGraph:
				if len(docs) == 0 {
					return fmt.Errorf("no navigation graph found for %s", args[0])
				}
				return printJSON(out, docs[0].Graph)
			}

			rows := make([]graphSummary, 0, len(docs))
			for _, d := range docs {
				rows = append(rows, graphSummary{
					Key:      d.Key,
					Match:    d.Match.String(),
					Modified: d.ModTime,
					Pages:    d.Graph.PageNames(),
					Path:     d.Path,
				})
			}
			return printJSON(out, rows)
		},
	}
	cmd.Flags().BoolVar(&showContext, "context", false, "Print the prompt context instead of a summary.")
	cmd.Flags().BoolVar(&showGraph, "graph", false, "Print the best matching graph in full.")
	return cmd
}

func newGraphsStatsCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count stored graphs and pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := prepare(cmd, factory, service.Needs{}, nil)
			if err != nil {
				return err
			}
			defer env.c.Shutdown()

			st, err := env.c.Graphs.Statistics(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}
}

func newGraphsKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "key <website url>",
		Short: "Print the storage key of a website",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := navgraph.SiteKey(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
			return err
		},
	}
}
