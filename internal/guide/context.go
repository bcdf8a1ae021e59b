package guide

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
)

const (
	NoTaskTitle  = "No task title available for RAG search."
	NoPlansFound = "No similar successful plans found in RAG database."
	noGraphs     = "No previous navigation patterns available for this website."
)

// PlanSource is the part of the plan store the builder reads.
type PlanSource interface {
	FindSimilar(ctx context.Context, title string, topK int) ([]schemas.ScoredPlan, error)
	BuildContext(plans []schemas.ScoredPlan) string
}

// GraphSource is the part of the navigation graph store the builder reads.
type GraphSource interface {
	FindAll(ctx context.Context, websiteURL string) ([]navgraph.Document, error)
	BuildContext(docs []navgraph.Document) string
}

// Context is the retrieved knowledge for one task.
type Context struct {
	RAG        string
	Navigation string
	Plans      int
	Graphs     int
}

// ContextBuilder gathers plan and graph context for a task.
type ContextBuilder struct {
	plans  PlanSource
	graphs GraphSource
	logger *zap.Logger
}

func NewContextBuilder(plans PlanSource, graphs GraphSource, logger *zap.Logger) *ContextBuilder {
	return &ContextBuilder{plans: plans, graphs: graphs, logger: logger.Named("context_builder")}
}

// Build queries both stores concurrently. Either failing fails the build.
func (b *ContextBuilder) Build(ctx context.Context, taskTitle, websiteURL string) (Context, error) {
	var out Context
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if strings.TrimSpace(taskTitle) == "" {
			out.RAG = NoTaskTitle
			return nil
		}
		plans, err := b.plans.FindSimilar(gctx, taskTitle, 0)
		if err != nil {
			return err
		}
		out.Plans = len(plans)
		if len(plans) == 0 {
			out.RAG = NoPlansFound
			return nil
		}
		out.RAG = b.plans.BuildContext(plans)
		return nil
	})

	g.Go(func() error {
		if strings.TrimSpace(websiteURL) == "" {
			out.Navigation = noGraphs
			return nil
		}
		docs, err := b.graphs.FindAll(gctx, websiteURL)
		if err != nil {
			return err
		}
		out.Graphs = len(docs)
		out.Navigation = b.graphs.BuildContext(docs)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Context{}, err
	}
	b.logger.Debug("Built guide context.",
		zap.String("title", taskTitle),
		zap.String("url", websiteURL),
		zap.Int("plans", out.Plans),
		zap.Int("graphs", out.Graphs))
	return out, nil
}
