package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/wayfinder/api/schemas"
)

// Memory is a process-local index. Nothing survives a restart.
type Memory struct {
	mu      sync.RWMutex
	records map[string]schemas.PlanRecord
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]schemas.PlanRecord)}
}

func (m *Memory) Upsert(ctx context.Context, rec schemas.PlanRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("plan record has no ID")
	}
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	m.mu.Lock()
	m.records[rec.ID] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Query(ctx context.Context, vector []float32, k int) ([]schemas.ScoredPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return topK(m.snapshot(), vector, k), nil
}

func (m *Memory) List(ctx context.Context) ([]schemas.PlanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := m.snapshot()
	sortNewestFirst(out)
	return out, nil
}

func (m *Memory) snapshot() []schemas.PlanRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schemas.PlanRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out
}

func (m *Memory) DeleteByTitle(ctx context.Context, title string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.records {
		if r.TaskTitle == title {
			delete(m.records, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) Clear(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records)
	m.records = make(map[string]schemas.PlanRecord)
	return n, nil
}

func (m *Memory) Close() error { return nil }
