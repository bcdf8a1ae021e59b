package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// OpenAIEmbedder calls an OpenAI compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	dims    int
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenAIEmbedder creates the embedder. Endpoint overrides the base URL,
// which lets it talk to any compatible server.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedding API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIEmbedder{
		client:  openai.NewClient(opts...),
		model:   model,
		dims:    cfg.Dimensions,
		limiter: newLimiter(cfg),
		logger:  logger.Named("embedding.openai"),
	}, nil
}

// Embed returns the unit-normalised embedding of text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, schemas.NewEmbeddingError(text, err)
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.dims > 0 {
		params.Dimensions = openai.Int(int64(e.dims))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, schemas.NewEmbeddingError(text, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, schemas.NewEmbeddingError(text, fmt.Errorf("openai returned no embeddings"))
	}
	e.logger.Debug("Embedded text.", zap.Int64("prompt_tokens", resp.Usage.PromptTokens))
	return Normalize(toFloat32(resp.Data[0].Embedding)), nil
}

// Dimensions returns the requested output size, 0 when the model default is used.
func (e *OpenAIEmbedder) Dimensions() int { return e.dims }
