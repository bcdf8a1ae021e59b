// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/evaluation"
	"github.com/xkilldash9x/wayfinder/internal/guide"
	"github.com/xkilldash9x/wayfinder/internal/history"
	"github.com/xkilldash9x/wayfinder/internal/knowledge"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/planstore"
)

// Needs selects which parts of the stack a command wants. The navigation
// graph store is always built since it only touches the local disk.
type Needs struct {
	LLM   bool
	Plans bool
}

// Everything is what the evaluate, run and guide commands use.
var Everything = Needs{LLM: true, Plans: true}

// ComponentFactory builds Components from configuration. It is an interface
// so commands can be tested with a fake.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, needs Needs, logger *zap.Logger) (*Components, error)
}

type concreteFactory struct{}

// NewComponentFactory creates the production factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires the requested components. On error everything built so far
// is shut down.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, needs Needs, logger *zap.Logger) (c *Components, err error) {
	c = &Components{logger: logger}
	defer func() {
		if err != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(err))
			c.Shutdown()
			c = nil
		}
	}()

	c.Graphs, err = navgraph.NewStore(cfg.Navigation(), logger)
	if err != nil {
		return c, fmt.Errorf("failed to open navigation graph store: %w", err)
	}
	hcfg := cfg.History()
	c.Screenshots = history.NewScreenshotWriter(hcfg.MaxParallelWrites, logger)

	if needs.Plans {
		c.Embedder, err = InitializeEmbedder(ctx, cfg.Embedding(), logger)
		if err != nil {
			return c, err
		}
		var cleanup func()
		c.Index, cleanup, err = InitializeVectorIndex(ctx, cfg.Plans(), logger)
		if err != nil {
			return c, err
		}
		c.onShutdown(cleanup)

		pcfg := cfg.Plans()
		c.Plans = planstore.New(c.Embedder, c.Index, planstore.Options{TopK: pcfg.TopK, ContextBudget: pcfg.ContextBudget}, logger)
		c.Context = guide.NewContextBuilder(c.Plans, c.Graphs, logger)
	}

	if needs.LLM {
		c.LLM, err = InitializeLLMClient(cfg.LLM(), logger)
		if err != nil {
			return c, err
		}
		llm := c.LLM
		c.onShutdown(func() { _ = llm.Close() })

		c.Evaluator = evaluation.NewEvaluator(c.LLM, hcfg.MaxImages, logger)
		c.Generator = guide.NewGenerator(c.LLM, logger)
	}

	if needs.LLM && needs.Plans {
		c.Knowledge = knowledge.NewService(knowledge.Deps{
			Evaluator:   c.Evaluator,
			Graphs:      c.Graphs,
			Plans:       c.Plans,
			Context:     c.Context,
			Generator:   c.Generator,
			Screenshots: c.Screenshots,
		}, cfg.Knowledge(), hcfg.ScreenshotsDir, logger)
	}

	logger.Debug("Components initialized.", zap.Bool("llm", needs.LLM), zap.Bool("plans", needs.Plans))
	return c, nil
}
