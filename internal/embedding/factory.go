package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// New builds the embedder selected by cfg.Provider.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (schemas.Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingOllama, "":
		return NewOllamaEmbedder(cfg, logger)
	case config.EmbeddingGemini:
		return NewGeminiEmbedder(ctx, cfg, logger)
	case config.EmbeddingOpenAI:
		return NewOpenAIEmbedder(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
