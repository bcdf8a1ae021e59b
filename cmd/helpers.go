package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/observability"
	"github.com/xkilldash9x/wayfinder/internal/service"
)

// environment is what a subcommand's RunE works with.
type environment struct {
	cfg    config.Interface
	c      *service.Components
	logger *zap.Logger
}

// prepare loads the configuration, lets adjust override it, and builds the
// components named by needs. Callers must Shutdown env.c.
func prepare(cmd *cobra.Command, factory service.ComponentFactory, needs service.Needs, adjust func(config.Interface)) (*environment, error) {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}
	logger := observability.GetLogger()

	c, err := factory.Create(ctx, cfg, needs, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return &environment{cfg: cfg, c: c, logger: logger}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize output to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// writeJSONFile writes v to path, or does nothing when path is empty.
func writeJSONFile(logger *zap.Logger, path string, v interface{}) error {
	if path == "" {
		return nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize output to JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Info("Output written to file", zap.String("path", path))
	return nil
}
