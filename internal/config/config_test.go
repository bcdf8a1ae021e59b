// File: internal/config/config_test.go
package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "wayfinder", cfg.Logger().ServiceName)
	assert.Equal(t, "pro", cfg.LLM().DefaultPowerfulModel)
	assert.Equal(t, "gemini-2.5-pro", cfg.LLM().Models["pro"].Model)
	assert.Equal(t, EmbeddingOllama, cfg.Embedding().Provider)
	assert.Equal(t, IndexBadger, cfg.Plans().Index)
	assert.Equal(t, 3, cfg.Plans().TopK)
	assert.Equal(t, 720*time.Hour, cfg.Navigation().MaxAge)
	assert.Equal(t, 3, cfg.Navigation().MaxGraphs)
	assert.Equal(t, 10000, cfg.Navigation().PerGraphBudget)
	assert.Equal(t, 3, cfg.Knowledge().MaxAttempts)
	assert.False(t, cfg.Knowledge().StoreGuidesOnFailure)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Defaults are valid", func(t *testing.T) {
		assert.NoError(t, NewDefaultConfig().Validate())
	})

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown index", func(c *Config) { c.plans.Index = "chroma" }, "plans.index must be one of"},
		{"badger without path", func(c *Config) { c.plans.Badger.Path = "" }, "plans.badger.path is required"},
		{"zero top_k", func(c *Config) { c.plans.TopK = 0 }, "plans.top_k must be a positive integer"},
		{"zero plan budget", func(c *Config) { c.plans.ContextBudget = 0 }, "plans.context_budget"},
		{"unknown embedder", func(c *Config) { c.embedding.Provider = "word2vec" }, "embedding.provider must be one of"},
		{"missing embedding model", func(c *Config) { c.embedding.Model = "" }, "embedding.model is required"},
		{"negative rate", func(c *Config) { c.embedding.RequestsPerSecond = -1 }, "requests_per_second"},
		{"missing graph dir", func(c *Config) { c.navigation.Dir = "" }, "navigation.dir is required"},
		{"zero max graphs", func(c *Config) { c.navigation.MaxGraphs = 0 }, "navigation.max_graphs"},
		{"zero graph budget", func(c *Config) { c.navigation.PerGraphBudget = 0 }, "navigation budgets"},
		{"negative max age", func(c *Config) { c.navigation.MaxAge = -time.Hour }, "navigation.max_age"},
		{"zero writers", func(c *Config) { c.history.MaxParallelWrites = 0 }, "history.max_parallel_writes"},
		{"zero attempts", func(c *Config) { c.knowledge.MaxAttempts = 0 }, "knowledge.max_attempts"},
		{"dangling default model", func(c *Config) { c.llm.DefaultFastModel = "missing" }, `default model "missing"`},
		{"unsupported provider", func(c *Config) {
			m := c.llm.Models["pro"]
			m.Provider = "anthropic"
			c.llm.Models["pro"] = m
		}, "unsupported provider"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
plans:
  index: memory
  top_k: 5
navigation:
  dir: /tmp/graphs
  max_graphs: 2
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, IndexMemory, cfg.Plans().Index)
		assert.Equal(t, 5, cfg.Plans().TopK)
		assert.Equal(t, "/tmp/graphs", cfg.Navigation().Dir)
		assert.Equal(t, 2, cfg.Navigation().MaxGraphs)
		// Defaults survive alongside file values.
		assert.Equal(t, "info", cfg.Logger().Level)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("plans.top_k", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "plans.top_k must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		t.Setenv("WAYFINDER_PG_PASSWORD", "pg-secret")
		t.Setenv("WAYFINDER_WEAVIATE_API_KEY", "wv-secret")
		t.Setenv("WAYFINDER_GEMINI_API_KEY", "gemini-secret")
		t.Setenv("WAYFINDER_EMBEDDING_API_KEY", "embed-secret")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "pg-secret", cfg.Plans().Postgres.Password)
		assert.Equal(t, "wv-secret", cfg.Plans().Weaviate.APIKey)
		assert.Equal(t, "embed-secret", cfg.Embedding().APIKey)
		assert.Equal(t, "gemini-secret", cfg.LLM().Models["pro"].APIKey)
		assert.Equal(t, "gemini-secret", cfg.LLM().Models["flash"].APIKey)
	})

	t.Run("Provider key falls back to the vendor variable", func(t *testing.T) {
		t.Setenv("WAYFINDER_OPENAI_API_KEY", "")
		t.Setenv("OPENAI_API_KEY", "sk-vendor")

		v := viper.New()
		SetDefaults(v)
		v.Set("llm.models.pro.provider", "openai")
		v.Set("llm.models.pro.model", "gpt-4o")
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "sk-vendor", cfg.LLM().Models["pro"].APIKey)
	})

	t.Run("Home directory is expanded", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.False(t, strings.HasPrefix(cfg.Navigation().Dir, "~"))
		assert.False(t, strings.HasPrefix(cfg.Plans().Badger.Path, "~"))
		assert.True(t, strings.HasSuffix(cfg.Navigation().Dir, "navigation_graphs"))
	})
}

// -- Struct and Mapping Tests --

func TestConfigStructureMapping(t *testing.T) {
	yamlInput := `
logger:
  level: debug
  log_file: /var/log/wayfinder.log
embedding:
  provider: gemini
  model: text-embedding-004
  dimensions: 768
  timeout: 5s
llm:
  models:
    pro:
      safety_filters:
        HARM_CATEGORY_DANGEROUS_CONTENT: BLOCK_NONE
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(yamlInput)))

	var s Settings
	require.NoError(t, v.Unmarshal(&s))
	cfg := FromSettings(s)

	assert.Equal(t, "debug", cfg.Logger().Level)
	assert.Equal(t, "/var/log/wayfinder.log", cfg.Logger().LogFile)
	assert.Equal(t, EmbeddingGemini, cfg.Embedding().Provider)
	assert.Equal(t, 768, cfg.Embedding().Dimensions)
	assert.Equal(t, 5*time.Second, cfg.Embedding().Timeout)
	// viper lower-cases map keys.
	assert.Equal(t, "BLOCK_NONE", cfg.LLM().Models["pro"].SafetyFilters["harm_category_dangerous_content"])
	assert.Equal(t, s, cfg.Settings())
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetPlansIndex(IndexPostgres)
	cfg.SetKnowledgeMaxAttempts(7)
	cfg.SetKnowledgeStoreGuidesOnFailure(true)

	assert.Equal(t, IndexPostgres, cfg.Plans().Index)
	assert.Equal(t, 7, cfg.Knowledge().MaxAttempts)
	assert.True(t, cfg.Knowledge().StoreGuidesOnFailure)
}
