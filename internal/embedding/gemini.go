package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// GeminiEmbedder uses the Gemini embedContent API through the genai SDK.
type GeminiEmbedder struct {
	client  *genai.Client
	model   string
	dims    int
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGeminiEmbedder creates the embedder for the Gemini developer API.
func NewGeminiEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (*GeminiEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini embedding API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-embedding-001"
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiEmbedder{
		client:  client,
		model:   model,
		dims:    cfg.Dimensions,
		limiter: newLimiter(cfg),
		logger:  logger.Named("embedding.gemini"),
	}, nil
}

// Embed returns the unit-normalised embedding of text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, schemas.NewEmbeddingError(text, err)
	}

	var ecfg *genai.EmbedContentConfig
	if e.dims > 0 {
		d := int32(e.dims)
		ecfg = &genai.EmbedContentConfig{OutputDimensionality: &d}
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, ecfg)
	if err != nil {
		return nil, schemas.NewEmbeddingError(text, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, schemas.NewEmbeddingError(text, fmt.Errorf("gemini returned no embeddings"))
	}
	vec := append([]float32(nil), resp.Embeddings[0].Values...)
	e.logger.Debug("Embedded text.", zap.Int("dims", len(vec)))
	return Normalize(vec), nil
}

// Dimensions returns the requested output size, 0 when the model default is used.
func (e *GeminiEmbedder) Dimensions() int { return e.dims }
