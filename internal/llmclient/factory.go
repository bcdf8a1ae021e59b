package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// NewClient creates the client for a single model configuration.
func NewClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGoogleClient(cfg, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]", cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}

// NewRouterFromConfig builds the fast and powerful tier clients named by the
// router configuration. Both tiers share one client when they name the same model.
func NewRouterFromConfig(cfg config.LLMRouterConfig, logger *zap.Logger) (*LLMRouter, error) {
	built := make(map[string]schemas.LLMClient, 2)
	get := func(name string) (schemas.LLMClient, error) {
		if c, ok := built[name]; ok {
			return c, nil
		}
		mc, ok := cfg.Models[name]
		if !ok {
			return nil, fmt.Errorf("model %q is not defined under llm.models", name)
		}
		c, err := NewClient(mc, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create client for model %q: %w", name, err)
		}
		built[name] = c
		return c, nil
	}

	fast, err := get(cfg.DefaultFastModel)
	if err != nil {
		return nil, err
	}
	powerful, err := get(cfg.DefaultPowerfulModel)
	if err != nil {
		return nil, err
	}
	return NewLLMRouter(logger, fast, powerful)
}
