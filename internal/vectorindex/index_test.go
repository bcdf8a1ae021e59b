package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(id, title string, age time.Duration, vec ...float32) schemas.PlanRecord {
	return schemas.PlanRecord{
		ID:            id,
		TaskTitle:     title,
		Plan:          "plan for " + title,
		TaskID:        "task-" + id,
		ExecutionDate: base.Add(-age),
		Embedding:     vec,
	}
}

func TestRank(t *testing.T) {
	plans := []schemas.ScoredPlan{
		{PlanRecord: rec("a", "A", 2*time.Hour), Similarity: 0.5},
		{PlanRecord: rec("b", "B", time.Hour), Similarity: 0.9},
		{PlanRecord: rec("c", "C", 0), Similarity: 0.5},
	}
	Rank(plans)
	assert.Equal(t, []string{"b", "c", "a"}, []string{plans[0].ID, plans[1].ID, plans[2].ID})
}

// exerciseIndex runs the behaviour every backend shares.
func exerciseIndex(t *testing.T, idx schemas.VectorIndex) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, rec("1", "Search flights", 3*time.Hour, 1, 0, 0)))
	require.NoError(t, idx.Upsert(ctx, rec("2", "Book hotel", 2*time.Hour, 0, 1, 0)))
	require.NoError(t, idx.Upsert(ctx, rec("3", "Search flights", time.Hour, 1, 0, 0)))
	require.NoError(t, idx.Upsert(ctx, rec("4", "Cancel order", 0, 0, 0, 1)))

	// re-upserting an ID replaces it
	updated := rec("4", "Cancel order", 0, 0, 0, 1)
	updated.Plan = "updated"
	require.NoError(t, idx.Upsert(ctx, updated))

	got, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID, "ties go to the newest record")
	assert.Equal(t, "1", got[1].ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)

	all, err := idx.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "4", all[0].ID)
	assert.Equal(t, "updated", all[0].Plan)

	n, err := idx.DeleteByTitle(ctx, "Search flights")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = idx.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	all, err = idx.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.Error(t, idx.Upsert(ctx, schemas.PlanRecord{TaskTitle: "no id"}))
}

func TestMemory(t *testing.T) {
	exerciseIndex(t, NewMemory())
}

func TestBadger(t *testing.T) {
	idx, err := OpenBadger("", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer idx.Close()
	exerciseIndex(t, idx)
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := OpenBadger(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, rec("1", "Search flights", 0, 1, 0)))
	require.NoError(t, idx.Close())

	idx, err = OpenBadger(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer idx.Close()

	all, err := idx.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []float32{1, 0}, all[0].Embedding)
	assert.True(t, base.Equal(all[0].ExecutionDate))
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Query(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
