package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

func newOllama(t *testing.T, url string) *OllamaEmbedder {
	t.Helper()
	e, err := NewOllamaEmbedder(config.EmbeddingConfig{
		Provider: config.EmbeddingOllama,
		Model:    "nomic-embed-text",
		Endpoint: url,
		Timeout:  5 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	e.maxElapsed = 2 * time.Second
	return e
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "book a flight", req.Input)

		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{3, 4}}})
	}))
	defer server.Close()

	e := newOllama(t, server.URL+"/")
	assert.Equal(t, 0, e.Dimensions())

	vec, err := e.Embed(context.Background(), "book a flight")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, vec, 1e-6)
	assert.Equal(t, 2, e.Dimensions())
}

func TestOllamaEmbedder_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 0}}})
	}))
	defer server.Close()

	vec, err := newOllama(t, server.URL+"/api/embed").Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaEmbedder_PermanentErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"model not found"}`))
		}, "status 400"},
		{"undecodable body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}, "failed to decode"},
		{"no vectors", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"embeddings": []}`))
		}, "no embeddings"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				tc.handler(w, r)
			}))
			defer server.Close()

			_, err := newOllama(t, server.URL).Embed(context.Background(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, schemas.ErrEmbedding)
			assert.Contains(t, err.Error(), tc.want)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestNewOllamaEmbedder_RequiresModel(t *testing.T) {
	_, err := NewOllamaEmbedder(config.EmbeddingConfig{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
