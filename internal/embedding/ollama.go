package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaEmbedder calls a local Ollama server's /api/embed endpoint.
type OllamaEmbedder struct {
	url        string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	maxElapsed time.Duration

	mu   sync.Mutex
	dims int
}

// NewOllamaEmbedder creates the embedder. The endpoint may be the server
// root or the full /api/embed URL.
func NewOllamaEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama embedding model is required")
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if !strings.HasSuffix(endpoint, "/api/embed") {
		endpoint += "/api/embed"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaEmbedder{
		url:        endpoint,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    newLimiter(cfg),
		logger:     logger.Named("embedding.ollama"),
		maxElapsed: time.Minute,
		dims:       cfg.Dimensions,
	}, nil
}

// Embed returns the unit-normalised embedding of text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, schemas.NewEmbeddingError(text, err)
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, schemas.NewEmbeddingError(text, err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = e.maxElapsed
	b.InitialInterval = 200 * time.Millisecond

	var vec []float32
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.httpClient.Do(req)
		if err != nil {
			e.logger.Warn("Embedding request failed, retrying.", zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return classifyStatus("ollama", resp.StatusCode, data)
		}

		var out ollamaEmbedResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode ollama response: %w", err))
		}
		if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
			return backoff.Permanent(fmt.Errorf("ollama returned no embeddings"))
		}
		vec = out.Embeddings[0]
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, schemas.NewEmbeddingError(text, err)
	}

	e.mu.Lock()
	if e.dims == 0 {
		e.dims = len(vec)
	}
	e.mu.Unlock()
	return Normalize(vec), nil
}

// Dimensions reports the configured size, or the size seen on the first
// successful call. 0 means unknown.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// classifyStatus makes 429 and 5xx retryable and everything else permanent.
func classifyStatus(provider string, status int, body []byte) error {
	err := fmt.Errorf("%s embedding error: status %d, body: %s", provider, status, truncate(string(body), 300))
	if status == http.StatusTooManyRequests || status >= 500 {
		return err
	}
	return backoff.Permanent(err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func newLimiter(cfg config.EmbeddingConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}
