// Package evaluation judges recorded agent runs with an LLM and parses the
// structured answer.
package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/history"
)

// Evaluator sends a run to the powerful model tier and parses the reply.
type Evaluator struct {
	llm       schemas.LLMClient
	parser    *Parser
	logger    *zap.Logger
	maxImages int
}

// NewEvaluator creates an Evaluator. maxImages limits how many screenshots
// are sent; 0 sends all of them.
func NewEvaluator(llm schemas.LLMClient, maxImages int, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		llm:       llm,
		parser:    NewParser(logger),
		logger:    logger.Named("evaluator"),
		maxImages: maxImages,
	}
}

// Evaluate judges the steps of one attempt at task. Only LLM transport
// errors are returned; malformed replies come back as a ParsedResponse with
// Issues set.
func (e *Evaluator) Evaluate(ctx context.Context, task string, steps []history.Step) (*schemas.ParsedResponse, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("task description is required")
	}

	msgs := make([]schemas.Message, 0, len(steps)+1)
	msgs = append(msgs, schemas.Message{Role: schemas.RoleUser, Text: goalMessage(task)})
	msgs = append(msgs, history.ToMessages(steps, history.MessageOptions{MaxImages: e.maxImages})...)

	req := schemas.GenerationRequest{
		SystemPrompt: SystemPrompt,
		Messages:     msgs,
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: 0},
	}

	start := time.Now()
	raw, err := e.llm.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("evaluation request failed: %w", err)
	}

	res := e.parser.Parse(raw)
	e.logger.Info("Evaluation complete.",
		zap.String("status", res.Verdict.Status.String()),
		zap.Int("pages", len(res.NavigationGraph)),
		zap.Int("guides", len(res.Guides)),
		zap.Int("issues", len(res.Issues)),
		zap.Duration("duration", time.Since(start)))
	return res, nil
}

// EvaluateHistory is Evaluate over a loaded history file.
func (e *Evaluator) EvaluateHistory(ctx context.Context, task string, h *history.History) (*schemas.ParsedResponse, error) {
	return e.Evaluate(ctx, task, history.ToSteps(h))
}
