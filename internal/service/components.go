// File: internal/service/components.go
package service

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/evaluation"
	"github.com/xkilldash9x/wayfinder/internal/guide"
	"github.com/xkilldash9x/wayfinder/internal/history"
	"github.com/xkilldash9x/wayfinder/internal/knowledge"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/planstore"
)

// Components holds the services a command needs. Fields for parts that were
// not requested stay nil.
type Components struct {
	LLM         schemas.LLMClient
	Embedder    schemas.Embedder
	Index       schemas.VectorIndex
	Plans       *planstore.Store
	Graphs      *navgraph.Store
	Screenshots *history.ScreenshotWriter
	Evaluator   *evaluation.Evaluator
	Context     *guide.ContextBuilder
	Generator   *guide.Generator
	Knowledge   *knowledge.Service

	// cleanups run in reverse order on Shutdown.
	cleanups []func()
	logger   *zap.Logger
}

func (c *Components) onShutdown(f func()) {
	if f != nil {
		c.cleanups = append(c.cleanups, f)
	}
}

// Shutdown releases everything in the reverse order of creation. It is safe
// to call on partially built components and more than once.
func (c *Components) Shutdown() {
	logger := c.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Beginning components shutdown sequence.")
	for i := len(c.cleanups) - 1; i >= 0; i-- {
		c.cleanups[i]()
	}
	c.cleanups = nil
	logger.Debug("All components shut down.")
}
