package history

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// ScreenshotWriter materialises step screenshots as step_N.png files.
type ScreenshotWriter struct {
	parallel int
	logger   *zap.Logger
}

// NewScreenshotWriter creates a writer that decodes and writes at most
// parallel files at once.
func NewScreenshotWriter(parallel int, logger *zap.Logger) *ScreenshotWriter {
	if parallel <= 0 {
		parallel = 1
	}
	return &ScreenshotWriter{parallel: parallel, logger: logger.Named("screenshots")}
}

// Save writes every step that has a screenshot into dir and returns the
// written paths in step order. A step that fails to decode or write does not
// stop the others; all failures are joined into the returned error.
func (w *ScreenshotWriter) Save(ctx context.Context, steps []Step, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, schemas.NewStorageError("mkdir", dir, err)
	}

	written := make([]string, len(steps))
	errs := make([]error, len(steps))
	var g errgroup.Group
	g.SetLimit(w.parallel)

	for i, step := range steps {
		if step.Screenshot == "" {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			data, err := decodeScreenshot(step.Screenshot)
			if err != nil {
				errs[i] = fmt.Errorf("step %d: %w", step.Index, err)
				return nil
			}
			path := filepath.Join(dir, fmt.Sprintf("step_%d.png", step.Index))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				errs[i] = schemas.NewStorageError("write screenshot", path, err)
				return nil
			}
			written[i] = path
			return nil
		})
	}
	_ = g.Wait()

	paths := make([]string, 0, len(steps))
	for _, p := range written {
		if p != "" {
			paths = append(paths, p)
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		w.logger.Warn("Some screenshots could not be saved.", zap.Int("saved", len(paths)), zap.Error(err))
	}
	w.logger.Info("Saved screenshots.", zap.Int("count", len(paths)), zap.String("dir", dir))
	return paths, err
}

func decodeScreenshot(s string) ([]byte, error) {
	s = stripDataURI(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("invalid base64 screenshot: %w", err)
}
