// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) LLM() config.LLMRouterConfig {
	args := m.Called()
	return args.Get(0).(config.LLMRouterConfig)
}

func (m *MockConfig) Embedding() config.EmbeddingConfig {
	args := m.Called()
	return args.Get(0).(config.EmbeddingConfig)
}

func (m *MockConfig) Plans() config.PlansConfig {
	args := m.Called()
	return args.Get(0).(config.PlansConfig)
}

func (m *MockConfig) Navigation() config.NavigationConfig {
	args := m.Called()
	return args.Get(0).(config.NavigationConfig)
}

func (m *MockConfig) History() config.HistoryConfig {
	args := m.Called()
	return args.Get(0).(config.HistoryConfig)
}

func (m *MockConfig) Knowledge() config.KnowledgeConfig {
	args := m.Called()
	return args.Get(0).(config.KnowledgeConfig)
}

func (m *MockConfig) SetPlansIndex(t config.IndexType) { m.Called(t) }

func (m *MockConfig) SetKnowledgeMaxAttempts(n int) { m.Called(n) }

func (m *MockConfig) SetKnowledgeStoreGuidesOnFailure(b bool) { m.Called(b) }

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Embedder Mock --

// MockEmbedder mocks the schemas.Embedder interface.
type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockEmbedder) Dimensions() int {
	return m.Called().Int(0)
}

// -- Vector Index Mock --

// MockVectorIndex mocks the schemas.VectorIndex interface.
type MockVectorIndex struct {
	mock.Mock
}

func (m *MockVectorIndex) Upsert(ctx context.Context, rec schemas.PlanRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockVectorIndex) Query(ctx context.Context, vector []float32, k int) ([]schemas.ScoredPlan, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.ScoredPlan), args.Error(1)
}

func (m *MockVectorIndex) List(ctx context.Context) ([]schemas.PlanRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.PlanRecord), args.Error(1)
}

func (m *MockVectorIndex) DeleteByTitle(ctx context.Context, title string) (int, error) {
	args := m.Called(ctx, title)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorIndex) Clear(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockVectorIndex) Close() error {
	return m.Called().Error(0)
}

var (
	_ config.Interface    = (*MockConfig)(nil)
	_ schemas.LLMClient   = (*MockLLMClient)(nil)
	_ schemas.Embedder    = (*MockEmbedder)(nil)
	_ schemas.VectorIndex = (*MockVectorIndex)(nil)
)
