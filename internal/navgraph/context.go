package navgraph

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xkilldash9x/wayfinder/internal/llmutil"
)

const (
	contextHeader  = "## Navigation graph of this website:\n"
	noGraphContext = "No previous navigation patterns available for this website."
	truncMarker    = "\n...[truncated]"
)

// ContextLimits bound the text produced by BuildContext. Budgets are bytes.
type ContextLimits struct {
	MaxGraphs      int
	PerGraphBudget int
	ContextBudget  int
}

// BuildContext renders documents for prompt inclusion, in the given order.
// The result never exceeds ContextBudget bytes when that is positive.
func BuildContext(docs []Document, limits ContextLimits) string {
	if len(docs) == 0 {
		return fit(noGraphContext, limits.ContextBudget)
	}
	if limits.MaxGraphs > 0 && len(docs) > limits.MaxGraphs {
		docs = docs[:limits.MaxGraphs]
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	for _, d := range docs {
		body, err := json.MarshalIndent(d.Graph, "", "  ")
		if err != nil {
			continue
		}
		text := string(body)
		if limits.PerGraphBudget > 0 {
			text = llmutil.TruncateToBudget(text, limits.PerGraphBudget, truncMarker)
		}
		fmt.Fprintf(&b, "\n### %s (%s match, %d pages)\n```json\n%s\n```\n", d.Key, d.Match, len(d.Graph), text)
	}
	return fit(b.String(), limits.ContextBudget)
}

func fit(s string, budget int) string {
	if budget <= 0 {
		return s
	}
	return llmutil.TruncateToBudget(s, budget, truncMarker)
}

// BuildContext renders docs with the store's configured limits.
func (s *Store) BuildContext(docs []Document) string {
	return BuildContext(docs, ContextLimits{
		MaxGraphs:      s.cfg.MaxGraphs,
		PerGraphBudget: s.cfg.PerGraphBudget,
		ContextBudget:  s.cfg.ContextBudget,
	})
}
