package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/wayfinder/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration as YAML (secrets omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(settingsOf(cfg))
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})
	return cmd
}

func settingsOf(cfg config.Interface) config.Settings {
	return config.Settings{
		Logger:     cfg.Logger(),
		LLM:        cfg.LLM(),
		Embedding:  cfg.Embedding(),
		Plans:      cfg.Plans(),
		Navigation: cfg.Navigation(),
		History:    cfg.History(),
		Knowledge:  cfg.Knowledge(),
	}
}
