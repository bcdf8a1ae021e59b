// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	LLM() LLMRouterConfig
	Embedding() EmbeddingConfig
	Plans() PlansConfig
	Navigation() NavigationConfig
	History() HistoryConfig
	Knowledge() KnowledgeConfig

	SetPlansIndex(IndexType)
	SetKnowledgeMaxAttempts(int)
	SetKnowledgeStoreGuidesOnFailure(bool)
}

// Config holds the entire application configuration.
// It uses private fields to enforce access through the Interface's getter methods.
type Config struct {
	logger     LoggerConfig
	llm        LLMRouterConfig
	embedding  EmbeddingConfig
	plans      PlansConfig
	navigation NavigationConfig
	history    HistoryConfig
	knowledge  KnowledgeConfig
}

// Settings is the exported mirror of Config used for decoding and dumping.
type Settings struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	LLM        LLMRouterConfig  `mapstructure:"llm" yaml:"llm"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding" yaml:"embedding"`
	Plans      PlansConfig      `mapstructure:"plans" yaml:"plans"`
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
	Knowledge  KnowledgeConfig  `mapstructure:"knowledge" yaml:"knowledge"`
}

// FromSettings builds a Config without validation. Mostly useful in tests.
func FromSettings(s Settings) *Config {
	return &Config{
		logger:     s.Logger,
		llm:        s.LLM,
		embedding:  s.Embedding,
		plans:      s.Plans,
		navigation: s.Navigation,
		history:    s.History,
		knowledge:  s.Knowledge,
	}
}

// Settings returns a copy of the configuration in its exported form.
func (c *Config) Settings() Settings {
	return Settings{
		Logger:     c.logger,
		LLM:        c.llm,
		Embedding:  c.embedding,
		Plans:      c.plans,
		Navigation: c.navigation,
		History:    c.history,
		Knowledge:  c.knowledge,
	}
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.logger }
func (c *Config) LLM() LLMRouterConfig         { return c.llm }
func (c *Config) Embedding() EmbeddingConfig   { return c.embedding }
func (c *Config) Plans() PlansConfig           { return c.plans }
func (c *Config) Navigation() NavigationConfig { return c.navigation }
func (c *Config) History() HistoryConfig       { return c.history }
func (c *Config) Knowledge() KnowledgeConfig   { return c.knowledge }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetPlansIndex(t IndexType)          { c.plans.Index = t }
func (c *Config) SetKnowledgeMaxAttempts(n int)      { c.knowledge.MaxAttempts = n }
func (c *Config) SetKnowledgeStoreGuidesOnFailure(b bool) {
	c.knowledge.StoreGuidesOnFailure = b
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
)

// LLMRouterConfig configures the model routing logic. The default models are
// keys into Models.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider      LLMProvider       `mapstructure:"provider" yaml:"provider"`
	Model         string            `mapstructure:"model" yaml:"model"`
	APIKey        string            `mapstructure:"api_key" yaml:"-"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout    time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature   float32           `mapstructure:"temperature" yaml:"temperature"`
	TopP          float32           `mapstructure:"top_p" yaml:"top_p"`
	TopK          int               `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens     int               `mapstructure:"max_tokens" yaml:"max_tokens"`
	SafetyFilters map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
}

// EmbeddingProvider selects the embedding backend.
type EmbeddingProvider string

const (
	EmbeddingOllama EmbeddingProvider = "ollama"
	EmbeddingGemini EmbeddingProvider = "gemini"
	EmbeddingOpenAI EmbeddingProvider = "openai"
)

// EmbeddingConfig configures the text embedding client.
type EmbeddingConfig struct {
	Provider          EmbeddingProvider `mapstructure:"provider" yaml:"provider"`
	Model             string            `mapstructure:"model" yaml:"model"`
	Endpoint          string            `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey            string            `mapstructure:"api_key" yaml:"-"`
	Dimensions        int               `mapstructure:"dimensions" yaml:"dimensions"`
	RequestsPerSecond float64           `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int               `mapstructure:"burst" yaml:"burst"`
	Timeout           time.Duration     `mapstructure:"timeout" yaml:"timeout"`
}

// IndexType selects the vector index backend for plans.
type IndexType string

const (
	IndexMemory   IndexType = "memory"
	IndexBadger   IndexType = "badger"
	IndexPostgres IndexType = "postgres"
	IndexWeaviate IndexType = "weaviate"
)

// PlansConfig configures the plan store and its vector index.
type PlansConfig struct {
	Index         IndexType      `mapstructure:"index" yaml:"index"`
	TopK          int            `mapstructure:"top_k" yaml:"top_k"`
	ContextBudget int            `mapstructure:"context_budget" yaml:"context_budget"`
	Badger        BadgerConfig   `mapstructure:"badger" yaml:"badger"`
	Postgres      PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Weaviate      WeaviateConfig `mapstructure:"weaviate" yaml:"weaviate"`
}

// BadgerConfig configures the embedded badger index.
type BadgerConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig holds the connection details for a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"-"`
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	Table    string `mapstructure:"table" yaml:"table"`
}

// WeaviateConfig holds the connection details for a Weaviate instance.
type WeaviateConfig struct {
	Host   string `mapstructure:"host" yaml:"host"`
	Scheme string `mapstructure:"scheme" yaml:"scheme"`
	APIKey string `mapstructure:"api_key" yaml:"-"`
	Class  string `mapstructure:"class" yaml:"class"`
}

// NavigationConfig configures the navigation graph store.
type NavigationConfig struct {
	Dir            string        `mapstructure:"dir" yaml:"dir"`
	MaxAge         time.Duration `mapstructure:"max_age" yaml:"max_age"`
	MaxGraphs      int           `mapstructure:"max_graphs" yaml:"max_graphs"`
	PerGraphBudget int           `mapstructure:"per_graph_budget" yaml:"per_graph_budget"`
	ContextBudget  int           `mapstructure:"context_budget" yaml:"context_budget"`
}

// HistoryConfig configures history conversion side effects.
type HistoryConfig struct {
	ScreenshotsDir    string `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
	MaxParallelWrites int    `mapstructure:"max_parallel_writes" yaml:"max_parallel_writes"`
	// MaxImages caps how many screenshots are attached to the evaluation request. 0 means all.
	MaxImages int `mapstructure:"max_images" yaml:"max_images"`
}

// KnowledgeConfig configures the evaluate/record/retry loop.
type KnowledgeConfig struct {
	MaxAttempts          int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	StoreGuidesOnFailure bool          `mapstructure:"store_guides_on_failure" yaml:"store_guides_on_failure"`
	ExecutorTimeout      time.Duration `mapstructure:"executor_timeout" yaml:"executor_timeout"`
	WorkDir              string        `mapstructure:"work_dir" yaml:"work_dir"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return FromSettings(s)
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "wayfinder")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- LLM --
	v.SetDefault("llm.default_fast_model", "flash")
	v.SetDefault("llm.default_powerful_model", "pro")
	v.SetDefault("llm.models.flash.provider", string(ProviderGemini))
	v.SetDefault("llm.models.flash.model", "gemini-2.5-flash")
	v.SetDefault("llm.models.flash.api_timeout", "2m")
	v.SetDefault("llm.models.flash.max_tokens", 8192)
	v.SetDefault("llm.models.pro.provider", string(ProviderGemini))
	v.SetDefault("llm.models.pro.model", "gemini-2.5-pro")
	v.SetDefault("llm.models.pro.api_timeout", "5m")
	v.SetDefault("llm.models.pro.max_tokens", 16384)

	// -- Embedding --
	v.SetDefault("embedding.provider", string(EmbeddingOllama))
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.endpoint", "http://localhost:11434")
	v.SetDefault("embedding.requests_per_second", 10.0)
	v.SetDefault("embedding.burst", 5)
	v.SetDefault("embedding.timeout", "30s")

	// -- Plans --
	v.SetDefault("plans.index", string(IndexBadger))
	v.SetDefault("plans.top_k", 3)
	v.SetDefault("plans.context_budget", 8000)
	v.SetDefault("plans.badger.path", "~/.wayfinder/plans")
	v.SetDefault("plans.postgres.host", "localhost")
	v.SetDefault("plans.postgres.port", 5432)
	v.SetDefault("plans.postgres.user", "postgres")
	v.SetDefault("plans.postgres.password", "") // Should be set via env var
	v.SetDefault("plans.postgres.dbname", "wayfinder")
	v.SetDefault("plans.postgres.sslmode", "disable")
	v.SetDefault("plans.postgres.table", "plans")
	v.SetDefault("plans.weaviate.host", "localhost:8080")
	v.SetDefault("plans.weaviate.scheme", "http")
	v.SetDefault("plans.weaviate.class", "SuccessfulPlan")

	// -- Navigation --
	v.SetDefault("navigation.dir", "~/.wayfinder/navigation_graphs")
	v.SetDefault("navigation.max_age", "720h")
	v.SetDefault("navigation.max_graphs", 3)
	v.SetDefault("navigation.per_graph_budget", 10000)
	v.SetDefault("navigation.context_budget", 30000)

	// -- History --
	v.SetDefault("history.screenshots_dir", "screenshots")
	v.SetDefault("history.max_parallel_writes", 4)
	v.SetDefault("history.max_images", 0)

	// -- Knowledge --
	v.SetDefault("knowledge.max_attempts", 3)
	v.SetDefault("knowledge.store_guides_on_failure", false)
	v.SetDefault("knowledge.executor_timeout", "30m")
	v.SetDefault("knowledge.work_dir", "~/.wayfinder/runs")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data
	v.BindEnv("embedding.api_key", "WAYFINDER_EMBEDDING_API_KEY")
	v.BindEnv("plans.postgres.password", "WAYFINDER_PG_PASSWORD")
	v.BindEnv("plans.weaviate.api_key", "WAYFINDER_WEAVIATE_API_KEY")

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := FromSettings(s)

	// Fill provider keys from the environment when the config file leaves them empty.
	for name, m := range cfg.llm.Models {
		if m.APIKey == "" {
			m.APIKey = apiKeyFromEnv(m.Provider)
			cfg.llm.Models[name] = m
		}
	}
	if cfg.embedding.APIKey == "" {
		cfg.embedding.APIKey = apiKeyFromEnv(LLMProvider(cfg.embedding.Provider))
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func apiKeyFromEnv(p LLMProvider) string {
	switch p {
	case ProviderGemini:
		if k := os.Getenv("WAYFINDER_GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GEMINI_API_KEY")
	case ProviderOpenAI:
		if k := os.Getenv("WAYFINDER_OPENAI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func (c *Config) expandPaths() error {
	paths := []*string{
		&c.plans.Badger.Path,
		&c.navigation.Dir,
		&c.history.ScreenshotsDir,
		&c.knowledge.WorkDir,
		&c.logger.LogFile,
	}
	for _, p := range paths {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.plans.Index {
	case IndexMemory, IndexBadger, IndexPostgres, IndexWeaviate:
	default:
		return fmt.Errorf("plans.index must be one of memory, badger, postgres, weaviate (got %q)", c.plans.Index)
	}
	if c.plans.Index == IndexBadger && c.plans.Badger.Path == "" {
		return fmt.Errorf("plans.badger.path is required for the badger index")
	}
	if c.plans.TopK <= 0 {
		return fmt.Errorf("plans.top_k must be a positive integer")
	}
	if c.plans.ContextBudget <= 0 {
		return fmt.Errorf("plans.context_budget must be a positive integer")
	}

	switch c.embedding.Provider {
	case EmbeddingOllama, EmbeddingGemini, EmbeddingOpenAI:
	default:
		return fmt.Errorf("embedding.provider must be one of ollama, gemini, openai (got %q)", c.embedding.Provider)
	}
	if c.embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.embedding.RequestsPerSecond < 0 {
		return fmt.Errorf("embedding.requests_per_second must not be negative")
	}

	if c.navigation.Dir == "" {
		return fmt.Errorf("navigation.dir is required")
	}
	if c.navigation.MaxGraphs <= 0 {
		return fmt.Errorf("navigation.max_graphs must be a positive integer")
	}
	if c.navigation.PerGraphBudget <= 0 || c.navigation.ContextBudget <= 0 {
		return fmt.Errorf("navigation budgets must be positive integers")
	}
	if c.navigation.MaxAge < 0 {
		return fmt.Errorf("navigation.max_age must not be negative")
	}

	if c.history.MaxParallelWrites <= 0 {
		return fmt.Errorf("history.max_parallel_writes must be a positive integer")
	}
	if c.knowledge.MaxAttempts <= 0 {
		return fmt.Errorf("knowledge.max_attempts must be a positive integer")
	}

	if err := c.llm.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	return nil
}

// Validate checks that the default tiers point at configured models.
func (r *LLMRouterConfig) Validate() error {
	if len(r.Models) == 0 {
		return nil
	}
	for _, name := range []string{r.DefaultFastModel, r.DefaultPowerfulModel} {
		m, ok := r.Models[name]
		if !ok {
			return fmt.Errorf("default model %q is not defined under llm.models", name)
		}
		switch m.Provider {
		case ProviderGemini, ProviderOpenAI:
		default:
			return fmt.Errorf("model %q has unsupported provider %q", name, m.Provider)
		}
	}
	return nil
}
