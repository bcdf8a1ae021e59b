// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
	"github.com/xkilldash9x/wayfinder/internal/embedding"
	"github.com/xkilldash9x/wayfinder/internal/llmclient"
	"github.com/xkilldash9x/wayfinder/internal/vectorindex"
)

// InitializeLLMClient builds the tier router from the model configuration.
func InitializeLLMClient(cfg config.LLMRouterConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	client, err := llmclient.NewRouterFromConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize LLM client. Evaluation and guide generation will fail.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return client, nil
}

// InitializeEmbedder builds the configured embedding client.
func InitializeEmbedder(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (schemas.Embedder, error) {
	e, err := embedding.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return e, nil
}

// PostgresConnString renders the pgx connection string for cfg.
func PostgresConnString(cfg config.PostgresConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)
}

// InitializeVectorIndex opens the plan index selected by cfg.Index. The
// returned cleanup closes the index and anything it owns.
func InitializeVectorIndex(ctx context.Context, cfg config.PlansConfig, logger *zap.Logger) (schemas.VectorIndex, func(), error) {
	switch cfg.Index {
	case config.IndexMemory, "":
		logger.Warn("Plans are kept in memory and will be lost on exit.")
		idx := vectorindex.NewMemory()
		return idx, func() { _ = idx.Close() }, nil

	case config.IndexBadger:
		logger.Info("Opening badger plan index.", zap.String("path", cfg.Badger.Path))
		idx, err := vectorindex.OpenBadger(cfg.Badger.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return idx, closeLogged(idx, logger), nil

	case config.IndexPostgres:
		logger.Info("Connecting to PostgreSQL plan index.", zap.String("host", cfg.Postgres.Host))
		poolConfig, err := pgxpool.ParseConfig(PostgresConnString(cfg.Postgres))
		if err != nil {
			return nil, nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
		}
		poolConfig.MaxConns = 10
		poolConfig.MinConns = 1
		poolConfig.MaxConnLifetime = 1 * time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
		}
		idx, err := vectorindex.NewPostgres(ctx, pool, cfg.Postgres.Table, logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := idx.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return idx, closeLogged(idx, logger), nil

	case config.IndexWeaviate:
		logger.Info("Connecting to Weaviate plan index.", zap.String("host", cfg.Weaviate.Host))
		idx, err := vectorindex.NewWeaviate(ctx, vectorindex.WeaviateOptions{
			Host:   cfg.Weaviate.Host,
			Scheme: cfg.Weaviate.Scheme,
			APIKey: cfg.Weaviate.APIKey,
			Class:  cfg.Weaviate.Class,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return idx, closeLogged(idx, logger), nil
	}
	return nil, nil, fmt.Errorf("unsupported plan index type: %s", cfg.Index)
}

func closeLogged(idx schemas.VectorIndex, logger *zap.Logger) func() {
	return func() {
		if err := idx.Close(); err != nil {
			logger.Warn("Error closing plan index.", zap.Error(err))
		}
	}
}
