package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/guide"
	"github.com/xkilldash9x/wayfinder/internal/history"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/planstore"
	"github.com/xkilldash9x/wayfinder/internal/vectorindex"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const historyJSON = `{"history":[{"model_output":{"action":[{"go_to_url":{"url":"https://shop.example"}}]},
"state":{"url":"https://shop.example","screenshot":"iVBORw0KGgo="}}]}`

// -- fakes --

type scriptedEvaluator struct {
	mu        sync.Mutex
	responses []*schemas.ParsedResponse
	err       error
	calls     int
}

func (e *scriptedEvaluator) Evaluate(_ context.Context, _ string, steps []history.Step) (*schemas.ParsedResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	r := e.responses[e.calls%len(e.responses)]
	e.calls++
	return r, nil
}

type recordingGenerator struct {
	inputs []guide.Input
	err    error
}

func (g *recordingGenerator) Generate(_ context.Context, in guide.Input) (string, error) {
	g.inputs = append(g.inputs, in)
	if g.err != nil {
		return "", g.err
	}
	return "generated guide for attempt", nil
}

type fileExecutor struct {
	requests []ExecRequest
	failOn   map[int]bool
}

func (f *fileExecutor) Execute(_ context.Context, req ExecRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.failOn[req.Attempt] {
		return "", errors.New("browser crashed")
	}
	p := filepath.Join(req.WorkDir, "history.json")
	return p, os.WriteFile(p, []byte(historyJSON), 0o644)
}

type brokenContext struct{}

func (brokenContext) Build(context.Context, string, string) (guide.Context, error) {
	return guide.Context{}, errors.New("index offline")
}

// -- helpers --

func verdict(status schemas.VerdictStatus) *schemas.ParsedResponse {
	fg := "Use the search field at the top instead of the menu."
	return &schemas.ParsedResponse{
		NavigationGraph: schemas.NavigationGraph{
			"home": {URL: "https://shop.example/", Layout: "landing", Elements: []string{"search"}},
		},
		Verdict:      schemas.Verdict{Status: status, WebsiteURL: "https://shop.example", TaskTitle: "Find a red mug"},
		Guides:       map[string]string{"Find a red mug": "Search for 'red mug' and open the first result."},
		FailureGuide: &fg,
	}
}

type fixture struct {
	svc    *Service
	graphs *navgraph.Store
	plans  *planstore.Store
	gen    *recordingGenerator
	eval   *scriptedEvaluator
}

func newFixture(t *testing.T, cfg config.KnowledgeConfig, responses ...*schemas.ParsedResponse) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	graphs, err := navgraph.NewStore(config.NavigationConfig{Dir: t.TempDir()}, logger)
	require.NoError(t, err)
	plans := planstore.New(unitEmbedder{}, vectorindex.NewMemory(), planstore.Options{}, logger)
	gen := &recordingGenerator{}
	eval := &scriptedEvaluator{responses: responses}
	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}

	svc := NewService(Deps{
		Evaluator:   eval,
		Graphs:      graphs,
		Plans:       plans,
		Context:     guide.NewContextBuilder(plans, graphs, logger),
		Generator:   gen,
		Screenshots: history.NewScreenshotWriter(2, logger),
	}, cfg, t.TempDir(), logger)
	return &fixture{svc: svc, graphs: graphs, plans: plans, gen: gen, eval: eval}
}

type unitEmbedder struct{}

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{0, 1}, nil }
func (unitEmbedder) Dimensions() int                                  { return 2 }

// -- Record --

func TestRecord(t *testing.T) {
	tests := []struct {
		name        string
		status      schemas.VerdictStatus
		storeOnFail bool
		wantPlans   int
	}{
		{"success stores graph and plans", schemas.StatusSuccess, false, 1},
		{"failure stores graph only", schemas.StatusFailure, false, 0},
		{"failure with store_guides_on_failure", schemas.StatusFailure, true, 1},
		{"impossible stores graph only", schemas.StatusImpossible, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.KnowledgeConfig{StoreGuidesOnFailure: tt.storeOnFail})
			ctx := context.Background()

			res, err := f.svc.Record(ctx, verdict(tt.status), "task-1")
			require.NoError(t, err)
			assert.Equal(t, "shop.example", res.GraphKey)
			assert.Equal(t, 1, res.GraphPages)
			assert.Len(t, res.PlansStored, tt.wantPlans)

			doc, err := f.graphs.Find(ctx, "shop.example")
			require.NoError(t, err)
			require.NotNil(t, doc)

			st, err := f.plans.Statistics(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPlans, st.TotalPlans)
		})
	}
}

func TestRecord_NoWebsiteURLSkipsGraph(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{})
	p := verdict(schemas.StatusSuccess)
	p.Verdict.WebsiteURL = ""

	res, err := f.svc.Record(context.Background(), p, "task-1")
	require.NoError(t, err)
	assert.Empty(t, res.GraphKey)
	assert.Len(t, res.PlansStored, 1)

	st, err := f.graphs.Statistics(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalGraphs)
}

func TestRecord_Nil(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{})
	_, err := f.svc.Record(context.Background(), nil, "x")
	assert.Error(t, err)
}

// -- PrepareRetry --

func TestPrepareRetry(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{})
	ctx := context.Background()
	_, err := f.svc.Record(ctx, verdict(schemas.StatusFailure), "task-1")
	require.NoError(t, err)

	r, err := f.svc.PrepareRetry(ctx, "Find a red mug on shop.example", verdict(schemas.StatusFailure), 1)
	require.NoError(t, err)
	assert.False(t, r.Fallback)
	assert.Equal(t, "generated guide for attempt", r.Guide)

	require.Len(t, f.gen.inputs, 1)
	in := f.gen.inputs[0]
	assert.Equal(t, "Use the search field at the top instead of the menu.", in.PreviousGuide)
	assert.Equal(t, "https://shop.example", in.WebsiteURL)
	assert.Equal(t, 1, in.AttemptCount)
	assert.Equal(t, guide.NoPlansFound, in.RAGContext)
	assert.Contains(t, in.NavigationContext, "landing")
}

func TestPrepareRetry_GeneratorFailureFallsBack(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{})
	f.gen.err = errors.New("model unavailable")

	r, err := f.svc.PrepareRetry(context.Background(), "Find a red mug", verdict(schemas.StatusFailure), 2)
	require.NoError(t, err)
	assert.True(t, r.Fallback)
	assert.Equal(t, guide.Fallback("Find a red mug", "Use the search field at the top instead of the menu."), r.Guide)
}

func TestPrepareRetry_ContextFailureStillGenerates(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{})
	f.svc.deps.Context = brokenContext{}

	r, err := f.svc.PrepareRetry(context.Background(), "task", verdict(schemas.StatusFailure), 1)
	require.NoError(t, err)
	assert.False(t, r.Fallback)
	require.Len(t, f.gen.inputs, 1)
	assert.Empty(t, f.gen.inputs[0].RAGContext)
}

// -- Run --

func TestRun_FailureThenSuccess(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{MaxAttempts: 3},
		verdict(schemas.StatusFailure), verdict(schemas.StatusSuccess))
	exec := &fileExecutor{}

	out, err := f.svc.Run(context.Background(), "Find a red mug", exec)
	require.NoError(t, err)

	assert.Equal(t, FinalSuccess, out.Status)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, "FAILURE", out.Attempts[0].Status)
	assert.Equal(t, "SUCCESS", out.Attempts[1].Status)
	assert.Len(t, out.Attempts[0].Screenshots, 1)
	require.NotNil(t, out.Final)
	assert.Equal(t, schemas.StatusSuccess, out.Final.Status)
	assert.Contains(t, out.Guides, "Find a red mug")

	require.Len(t, exec.requests, 2)
	assert.Empty(t, exec.requests[0].Guide)
	assert.Equal(t, GuidePrompt("generated guide for attempt"), exec.requests[1].Guide)
	assert.Equal(t, out.TaskID, exec.requests[1].TaskID)
	assert.Len(t, f.gen.inputs, 1)
}

func TestRun_ImpossibleStops(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{MaxAttempts: 3}, verdict(schemas.StatusImpossible))

	out, err := f.svc.Run(context.Background(), "Buy a unicorn", &fileExecutor{})
	require.NoError(t, err)
	assert.Equal(t, FinalImpossible, out.Status)
	assert.Len(t, out.Attempts, 1)
	assert.Empty(t, f.gen.inputs)
}

func TestRun_ExhaustsAttempts(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{MaxAttempts: 3}, verdict(schemas.StatusFailure))

	out, err := f.svc.Run(context.Background(), "Find a red mug", &fileExecutor{})
	require.NoError(t, err)
	assert.Equal(t, FinalFailureMaxTries, out.Status)
	assert.Len(t, out.Attempts, 3)
	assert.Len(t, f.gen.inputs, 2, "no guide is prepared after the last attempt")
}

func TestRun_ExecutorErrorIsRecorded(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{MaxAttempts: 2}, verdict(schemas.StatusSuccess))
	exec := &fileExecutor{failOn: map[int]bool{1: true}}

	out, err := f.svc.Run(context.Background(), "Find a red mug", exec)
	require.NoError(t, err)
	require.Len(t, out.Attempts, 2)
	assert.Equal(t, "ERROR", out.Attempts[0].Status)
	assert.Contains(t, out.Attempts[0].Error, "browser crashed")
	assert.Equal(t, FinalSuccess, out.Status)
}

func TestRun_EvaluatorErrorIsRecorded(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{MaxAttempts: 2})
	f.eval.err = errors.New("evaluation request failed")

	out, err := f.svc.Run(context.Background(), "Find a red mug", &fileExecutor{})
	require.NoError(t, err)
	assert.Equal(t, FinalFailureMaxTries, out.Status)
	for _, a := range out.Attempts {
		assert.Equal(t, "ERROR", a.Status)
	}
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{MaxAttempts: 3}, verdict(schemas.StatusFailure))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Run(ctx, "Find a red mug", &fileExecutor{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_EmptyTask(t *testing.T) {
	f := newFixture(t, config.KnowledgeConfig{})
	_, err := f.svc.Run(context.Background(), "  ", &fileExecutor{})
	assert.Error(t, err)
}

func TestGuidePrompt(t *testing.T) {
	assert.Empty(t, GuidePrompt(""))
	p := GuidePrompt("Click Search.")
	assert.Contains(t, p, "Click Search.")
	assert.Contains(t, p, "Use this guide to improve your approach.")
}
