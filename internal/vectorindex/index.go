// Package vectorindex provides the interchangeable nearest-neighbour stores
// behind the plan store.
package vectorindex

import (
	"sort"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/embedding"
)

// Rank orders plans by descending similarity, newest first on ties.
func Rank(plans []schemas.ScoredPlan) {
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Similarity != plans[j].Similarity {
			return plans[i].Similarity > plans[j].Similarity
		}
		return plans[i].ExecutionDate.After(plans[j].ExecutionDate)
	})
}

// topK scores every record against vector and keeps the best k.
func topK(records []schemas.PlanRecord, vector []float32, k int) []schemas.ScoredPlan {
	scored := make([]schemas.ScoredPlan, 0, len(records))
	for _, r := range records {
		scored = append(scored, schemas.ScoredPlan{PlanRecord: r, Similarity: embedding.Cosine(vector, r.Embedding)})
	}
	Rank(scored)
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

func sortNewestFirst(records []schemas.PlanRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExecutionDate.After(records[j].ExecutionDate)
	})
}
