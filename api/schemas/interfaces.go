package schemas

import "context"

// ModelTier allows for selecting a large language model based on a preference
// for speed versus advanced capabilities.
type ModelTier string

const (
	TierFast     ModelTier = "fast"     // Prefers a faster, potentially less capable model.
	TierPowerful ModelTier = "powerful" // Prefers a more capable, potentially slower model.
)

// GenerationOptions controls sampling and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float64 `json:"top_p"`
	MaxTokens       int     `json:"max_tokens"`
}

// GenerationRequest is a complete request to an LLM. When Messages is set it
// is sent after the system prompt and UserPrompt is appended as a final user turn.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Messages     []Message         `json:"messages,omitempty"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	Close() error
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the vector length, or 0 when unknown until the first call.
	Dimensions() int
}

// VectorIndex stores plan records with their embeddings and answers
// nearest-neighbour queries by cosine similarity.
type VectorIndex interface {
	Upsert(ctx context.Context, rec PlanRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]ScoredPlan, error)
	List(ctx context.Context) ([]PlanRecord, error)
	DeleteByTitle(ctx context.Context, title string) (int, error)
	Clear(ctx context.Context) (int, error)
	Close() error
}
