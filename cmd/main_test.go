// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/evaluation"
	"github.com/xkilldash9x/wayfinder/internal/guide"
	"github.com/xkilldash9x/wayfinder/internal/history"
	"github.com/xkilldash9x/wayfinder/internal/knowledge"
	"github.com/xkilldash9x/wayfinder/internal/navgraph"
	"github.com/xkilldash9x/wayfinder/internal/observability"
	"github.com/xkilldash9x/wayfinder/internal/planstore"
	"github.com/xkilldash9x/wayfinder/internal/service"
	"github.com/xkilldash9x/wayfinder/internal/vectorindex"
)

const successReply = "The agent searched and opened the result.\n" +
	"```json\n" +
	`{"Home": {"url": "https://shop.example/", "layout": "search header", "elements": ["Search box"], "outgoing_links": [{"target": "Results", "action": "search"}]}}` + "\n" +
	"```\n" +
	"<verdict>('SUCCESS', 'https://shop.example', 'Find a red mug')</verdict>\n" +
	"```json\n" +
	`{"Find a red mug": "Search for red mug and open the first result."}` + "\n" +
	"```\n"

const historyJSON = `{"history":[{"model_output":{"action":[{"go_to_url":{"url":"https://shop.example"}}]},
"state":{"url":"https://shop.example","screenshot":"iVBORw0KGgo="}}]}`

// cannedLLM answers every request with reply.
type cannedLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []schemas.GenerationRequest
}

func (c *cannedLLM) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return c.reply, c.err
}

func (c *cannedLLM) Close() error { return nil }

// flatEmbedder maps every text to the same vector.
type flatEmbedder struct{}

func (flatEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0, 0}, nil }
func (flatEmbedder) Dimensions() int                                  { return 3 }

// fakeFactory hands out prebuilt components and records what was asked for.
type fakeFactory struct {
	c     *service.Components
	err   error
	needs []service.Needs
	cfgs  []config.Interface
}

func (f *fakeFactory) Create(_ context.Context, cfg config.Interface, needs service.Needs, _ *zap.Logger) (*service.Components, error) {
	f.needs = append(f.needs, needs)
	f.cfgs = append(f.cfgs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return f.c, nil
}

type harness struct {
	factory *fakeFactory
	llm     *cannedLLM
	dir     string
	cfgPath string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)

	logger := zaptest.NewLogger(t)
	dir := t.TempDir()

	graphs, err := navgraph.NewStore(config.NavigationConfig{Dir: filepath.Join(dir, "graphs"), MaxGraphs: 3}, logger)
	require.NoError(t, err)
	plans := planstore.New(flatEmbedder{}, vectorindex.NewMemory(), planstore.Options{TopK: 3}, logger)
	llm := &cannedLLM{reply: successReply}
	evaluator := evaluation.NewEvaluator(llm, 0, logger)
	ctxBuilder := guide.NewContextBuilder(plans, graphs, logger)
	generator := guide.NewGenerator(llm, logger)
	shots := history.NewScreenshotWriter(2, logger)

	c := &service.Components{
		LLM:         llm,
		Embedder:    flatEmbedder{},
		Plans:       plans,
		Graphs:      graphs,
		Screenshots: shots,
		Evaluator:   evaluator,
		Context:     ctxBuilder,
		Generator:   generator,
		Knowledge: knowledge.NewService(knowledge.Deps{
			Evaluator:   evaluator,
			Graphs:      graphs,
			Plans:       plans,
			Context:     ctxBuilder,
			Generator:   generator,
			Screenshots: shots,
		}, config.KnowledgeConfig{MaxAttempts: 2, WorkDir: filepath.Join(dir, "runs")}, filepath.Join(dir, "shots"), logger),
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	yml := strings.Join([]string{
		"logger:",
		"  level: error",
		"navigation:",
		"  dir: " + filepath.Join(dir, "graphs"),
		"history:",
		"  screenshots_dir: " + filepath.Join(dir, "shots"),
		"plans:",
		"  index: memory",
		"  top_k: 7",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(cfgPath, []byte(yml), 0o644))

	return &harness{factory: &fakeFactory{c: c}, llm: llm, dir: dir, cfgPath: cfgPath}
}

// run executes the CLI with args and returns stdout.
func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(h.factory)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--config", h.cfgPath))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) writeHistory(t *testing.T) string {
	t.Helper()
	p := filepath.Join(h.dir, "history.json")
	require.NoError(t, os.WriteFile(p, []byte(historyJSON), 0o644))
	return p
}
