// Package planstore keeps successful plans and retrieves the ones closest to
// a new task title.
package planstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/llmutil"
	"github.com/xkilldash9x/wayfinder/internal/vectorindex"
)

const (
	contextHeader = "## The user found potential helpful guides for this task:"
	contextFooter = "If useful, use these previous successful plans as reference to improve your approach"
	truncMarker   = "\n...[truncated]"
)

// Statistics summarises stored plans.
type Statistics struct {
	TotalPlans       int      `json:"total_plans"`
	UniqueTaskTitles int      `json:"unique_task_titles"`
	TaskTitles       []string `json:"task_titles"`
}

// Store embeds plan titles and hands the records to a vector index.
type Store struct {
	embedder      schemas.Embedder
	index         schemas.VectorIndex
	topK          int
	contextBudget int
	logger        *zap.Logger
	now           func() time.Time
}

// Options tune retrieval. Zero values pick the defaults.
type Options struct {
	TopK          int
	ContextBudget int
}

func New(embedder schemas.Embedder, index schemas.VectorIndex, opts Options, logger *zap.Logger) *Store {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	return &Store{
		embedder:      embedder,
		index:         index,
		topK:          opts.TopK,
		contextBudget: opts.ContextBudget,
		logger:        logger.Named("planstore"),
		now:           time.Now,
	}
}

// Store saves one record per title. Titles are processed in sorted order and
// a failure on one title does not stop the others; all failures come back
// joined. It returns the records that were written.
func (s *Store) Store(ctx context.Context, plans map[string]string, taskID string) ([]schemas.PlanRecord, error) {
	titles := make([]string, 0, len(plans))
	for t := range plans {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	var (
		stored []schemas.PlanRecord
		errs   []error
	)
	for _, title := range titles {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		plan := strings.TrimSpace(plans[title])
		title = strings.TrimSpace(title)
		if title == "" || plan == "" {
			s.logger.Warn("Skipping plan with empty title or body.", zap.String("title", title))
			continue
		}

		vec, err := s.embedder.Embed(ctx, title)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rec := schemas.PlanRecord{
			ID:            uuid.NewString(),
			TaskTitle:     title,
			Plan:          plan,
			TaskID:        taskID,
			ExecutionDate: s.now().UTC(),
			Embedding:     vec,
		}
		if err := s.index.Upsert(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("failed to store plan %q: %w", title, err))
			continue
		}
		stored = append(stored, rec)
	}

	s.logger.Info("Stored plans.", zap.Int("stored", len(stored)), zap.Int("requested", len(plans)), zap.String("task_id", taskID))
	return stored, errors.Join(errs...)
}

// FindSimilar returns up to topK plans ranked by cosine similarity of their
// titles to title, newest first on ties. topK <= 0 uses the configured default.
func (s *Store) FindSimilar(ctx context.Context, title string, topK int) ([]schemas.ScoredPlan, error) {
	if topK <= 0 {
		topK = s.topK
	}
	vec, err := s.embedder.Embed(ctx, title)
	if err != nil {
		return nil, err
	}
	plans, err := s.index.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	vectorindex.Rank(plans)
	if len(plans) > topK {
		plans = plans[:topK]
	}
	s.logger.Debug("Found similar plans.", zap.String("title", title), zap.Int("count", len(plans)))
	return plans, nil
}

// BuildContext renders plans as prompt text within the configured budget.
// No plans gives an empty string.
func (s *Store) BuildContext(plans []schemas.ScoredPlan) string {
	return BuildContext(plans, s.contextBudget)
}

// BuildContext renders plans as prompt text. A positive budget caps the
// result in bytes.
func BuildContext(plans []schemas.ScoredPlan, budget int) string {
	if len(plans) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	b.WriteString("\n\n")
	for i, p := range plans {
		fmt.Fprintf(&b, "### Guide %d: %s\n\n%s\n\n", i+1, p.TaskTitle, p.Plan)
	}
	b.WriteString(contextFooter)
	if budget <= 0 {
		return b.String()
	}
	return llmutil.TruncateToBudget(b.String(), budget, truncMarker)
}

// Statistics counts plans and distinct titles.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	all, err := s.index.List(ctx)
	if err != nil {
		return Statistics{}, err
	}
	seen := make(map[string]struct{}, len(all))
	for _, r := range all {
		seen[r.TaskTitle] = struct{}{}
	}
	titles := make([]string, 0, len(seen))
	for t := range seen {
		titles = append(titles, t)
	}
	sort.Strings(titles)
	return Statistics{TotalPlans: len(all), UniqueTaskTitles: len(titles), TaskTitles: titles}, nil
}

// List returns every stored plan, newest first.
func (s *Store) List(ctx context.Context) ([]schemas.PlanRecord, error) {
	return s.index.List(ctx)
}

// Clear removes every plan and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	n, err := s.index.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Cleared plan store.", zap.Int("removed", n))
	return n, nil
}

// DeleteByTaskTitle removes every plan stored under title.
func (s *Store) DeleteByTaskTitle(ctx context.Context, title string) (int, error) {
	n, err := s.index.DeleteByTitle(ctx, title)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Deleted plans.", zap.String("title", title), zap.Int("removed", n))
	return n, nil
}

// Close releases the underlying index.
func (s *Store) Close() error {
	return s.index.Close()
}
