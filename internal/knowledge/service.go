// Package knowledge ties evaluation, storage and guide generation into the
// evaluate, record and retry loop around an external browsing agent.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/guide"
	"github.com/xkilldash9x/wayfinder/internal/history"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/planstore"
)

// Final statuses of a run. The first three mirror the verdict statuses.
const (
	FinalSuccess         = "SUCCESS"
	FinalImpossible      = "IMPOSSIBLE"
	FinalFailureMaxTries = "FAILURE_AFTER_MAX_ATTEMPTS"
	attemptError         = "ERROR"
)

// Evaluator judges the steps of one attempt.
type Evaluator interface {
	Evaluate(ctx context.Context, task string, steps []history.Step) (*schemas.ParsedResponse, error)
}

// GuideGenerator writes a retry guide.
type GuideGenerator interface {
	Generate(ctx context.Context, in guide.Input) (string, error)
}

// ContextSource gathers plan and graph context for a task.
type ContextSource interface {
	Build(ctx context.Context, taskTitle, websiteURL string) (guide.Context, error)
}

// Deps are the collaborators of a Service. Screenshots may be nil.
type Deps struct {
	Evaluator   Evaluator
	Graphs      *navgraph.Store
	Plans       *planstore.Store
	Context     ContextSource
	Generator   GuideGenerator
	Screenshots *history.ScreenshotWriter
}

// Service records evaluation results and prepares retries.
type Service struct {
	deps           Deps
	cfg            config.KnowledgeConfig
	screenshotsDir string
	logger         *zap.Logger
	now            func() time.Time
}

func NewService(deps Deps, cfg config.KnowledgeConfig, screenshotsDir string, logger *zap.Logger) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Service{
		deps:           deps,
		cfg:            cfg,
		screenshotsDir: screenshotsDir,
		logger:         logger.Named("knowledge"),
		now:            time.Now,
	}
}

// RecordResult says what Record persisted.
type RecordResult struct {
	GraphKey    string               `json:"graph_key,omitempty"`
	GraphPages  int                  `json:"graph_pages"`
	PlansStored []schemas.PlanRecord `json:"plans_stored,omitempty"`
}

// Record saves the navigation graph when there is one and the website is
// known, and stores the guides as plans when the attempt succeeded (or on
// every verdict when configured to). Both are attempted; errors are joined.
func (s *Service) Record(ctx context.Context, parsed *schemas.ParsedResponse, taskID string) (RecordResult, error) {
	var (
		res  RecordResult
		errs []error
	)
	if parsed == nil {
		return res, fmt.Errorf("nothing to record")
	}

	if len(parsed.NavigationGraph) > 0 && parsed.Verdict.WebsiteURL != "" {
		doc, err := s.deps.Graphs.Save(ctx, parsed.NavigationGraph, parsed.Verdict.WebsiteURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to save navigation graph: %w", err))
		} else {
			res.GraphKey = doc.Key
			res.GraphPages = len(doc.Graph)
		}
	} else if len(parsed.NavigationGraph) > 0 {
		s.logger.Warn("Navigation graph dropped, no website URL in verdict.", zap.String("task_id", taskID))
	}

	storeGuides := parsed.Verdict.Status == schemas.StatusSuccess || s.cfg.StoreGuidesOnFailure
	if storeGuides && len(parsed.Guides) > 0 {
		stored, err := s.deps.Plans.Store(ctx, parsed.Guides, taskID)
		res.PlansStored = stored
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to store plans: %w", err))
		}
	}

	s.logger.Info("Recorded evaluation.",
		zap.String("task_id", taskID),
		zap.String("status", parsed.Verdict.Status.String()),
		zap.String("graph", res.GraphKey),
		zap.Int("plans", len(res.PlansStored)))
	return res, errors.Join(errs...)
}

// Retry is a prepared guide for the next attempt.
type Retry struct {
	Guide    string        `json:"guide"`
	Fallback bool          `json:"fallback"`
	Context  guide.Context `json:"-"`
}

// PrepareRetry writes the guide for the next attempt from stored knowledge
// and the evaluator's failure guide. Context and generation failures degrade
// to the fallback guide; only cancellation is returned as an error.
func (s *Service) PrepareRetry(ctx context.Context, task string, parsed *schemas.ParsedResponse, attempt int) (Retry, error) {
	var title, site, previous string
	if parsed != nil {
		title = parsed.Verdict.TaskTitle
		site = parsed.Verdict.WebsiteURL
		previous = parsed.FailureGuideText()
	}

	kctx, err := s.deps.Context.Build(ctx, title, site)
	if err != nil {
		if ctx.Err() != nil {
			return Retry{}, ctx.Err()
		}
		s.logger.Warn("Failed to build guide context, continuing without it.", zap.Error(err))
	}

	text, err := s.deps.Generator.Generate(ctx, guide.Input{
		Task:              task,
		WebsiteURL:        site,
		RAGContext:        kctx.RAG,
		NavigationContext: kctx.Navigation,
		PreviousGuide:     previous,
		AttemptCount:      attempt,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Retry{}, ctx.Err()
		}
		s.logger.Error("Guide generation failed, using fallback guide.", zap.Error(err))
		return Retry{Guide: guide.Fallback(task, previous), Fallback: true, Context: kctx}, nil
	}
	return Retry{Guide: text, Context: kctx}, nil
}

// Attempt is the record of one execution.
type Attempt struct {
	Number      int              `json:"attempt_number"`
	Status      string           `json:"status"`
	Verdict     *schemas.Verdict `json:"verdict,omitempty"`
	Guide       string           `json:"guide,omitempty"`
	HistoryPath string           `json:"history_path,omitempty"`
	Screenshots []string         `json:"screenshots,omitempty"`
	Record      *RecordResult    `json:"record,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// Outcome summarises a run.
type Outcome struct {
	TaskID   string            `json:"task_id"`
	Task     string            `json:"task"`
	Attempts []Attempt         `json:"attempts"`
	Status   string            `json:"final_status"`
	Final    *schemas.Verdict  `json:"final_verdict,omitempty"`
	Guides   map[string]string `json:"guides,omitempty"`
}

// NewTaskID returns a sortable identifier for a run.
func (s *Service) NewTaskID() string {
	return fmt.Sprintf("task_%s_%s", s.now().Format("20060102_150405"), uuid.NewString()[:8])
}

// Run executes the task up to the configured number of attempts. SUCCESS and
// IMPOSSIBLE end the run; FAILURE prepares a guide for the next attempt. An
// attempt that errors is recorded and the loop moves on. Only cancellation
// ends the run early with an error.
func (s *Service) Run(ctx context.Context, task string, exec Executor) (*Outcome, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return nil, fmt.Errorf("task is required")
	}
	out := &Outcome{TaskID: s.NewTaskID(), Task: task}
	s.logger.Info("Starting task.", zap.String("task_id", out.TaskID), zap.Int("max_attempts", s.cfg.MaxAttempts))

	var currentGuide string
	for n := 1; n <= s.cfg.MaxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		att, parsed, err := s.attempt(ctx, out.TaskID, task, currentGuide, n, exec)
		if err != nil {
			if ctx.Err() != nil {
				out.Attempts = append(out.Attempts, att)
				return out, ctx.Err()
			}
			att.Status = attemptError
			att.Error = err.Error()
			s.logger.Error("Attempt failed.", zap.Int("attempt", n), zap.Error(err))
			out.Attempts = append(out.Attempts, att)
			continue
		}
		out.Attempts = append(out.Attempts, att)
		out.Final = att.Verdict

		switch parsed.Verdict.Status {
		case schemas.StatusSuccess:
			out.Status = FinalSuccess
			out.Guides = parsed.Guides
			s.logger.Info("Task succeeded.", zap.String("task_id", out.TaskID), zap.Int("attempt", n))
			return out, nil
		case schemas.StatusImpossible:
			out.Status = FinalImpossible
			s.logger.Info("Task judged impossible.", zap.String("task_id", out.TaskID), zap.Int("attempt", n))
			return out, nil
		}

		if n == s.cfg.MaxAttempts {
			break
		}
		retry, err := s.PrepareRetry(ctx, task, parsed, n)
		if err != nil {
			return out, err
		}
		currentGuide = retry.Guide
	}

	out.Status = FinalFailureMaxTries
	s.logger.Warn("Task failed after maximum attempts.", zap.String("task_id", out.TaskID), zap.Int("attempts", len(out.Attempts)))
	return out, nil
}

func (s *Service) attempt(ctx context.Context, taskID, task, currentGuide string, n int, exec Executor) (Attempt, *schemas.ParsedResponse, error) {
	att := Attempt{Number: n, Guide: currentGuide}

	workDir := filepath.Join(s.cfg.WorkDir, taskID, fmt.Sprintf("attempt_%d", n))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return att, nil, schemas.NewStorageError("mkdir", workDir, err)
	}

	path, err := exec.Execute(ctx, ExecRequest{
		TaskID:  taskID,
		Task:    task,
		Guide:   GuidePrompt(currentGuide),
		Attempt: n,
		WorkDir: workDir,
	})
	if err != nil {
		return att, nil, fmt.Errorf("executor failed: %w", err)
	}
	att.HistoryPath = path

	h, err := history.Load(path)
	if err != nil {
		return att, nil, err
	}
	steps := history.ToSteps(h)

	if s.deps.Screenshots != nil && s.screenshotsDir != "" {
		dir := filepath.Join(s.screenshotsDir, fmt.Sprintf("%s_attempt_%d", taskID, n))
		paths, err := s.deps.Screenshots.Save(ctx, steps, dir)
		att.Screenshots = paths
		if err != nil {
			s.logger.Warn("Some screenshots could not be saved.", zap.String("dir", dir), zap.Error(err))
		}
	}

	parsed, err := s.deps.Evaluator.Evaluate(ctx, task, steps)
	if err != nil {
		return att, nil, err
	}
	v := parsed.Verdict
	att.Verdict = &v
	att.Status = v.Status.String()

	rec, err := s.Record(ctx, parsed, taskID)
	att.Record = &rec
	if err != nil {
		// Storage trouble does not change the verdict.
		s.logger.Error("Failed to record attempt.", zap.Int("attempt", n), zap.Error(err))
	}
	return att, parsed, nil
}

// GuidePrompt wraps a guide as the extra context handed to the agent. An
// empty guide stays empty.
func GuidePrompt(g string) string {
	if strings.TrimSpace(g) == "" {
		return ""
	}
	return "## Someone already attempted this task and left recommendations that may help.\n\n" +
		g + "\n\nUse this guide to improve your approach."
}
