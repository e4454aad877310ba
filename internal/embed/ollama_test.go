package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFakeOllama starts a test server answering /api/tags and /api/embed.
func newFakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.WriteHeader(http.StatusOK)
		case "/api/embed":
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			vec := make([]float32, dims)
			for i := range vec {
				vec[i] = 0.5
			}
			_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{vec}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestOllamaEmbedder_DetectsDimensions(t *testing.T) {
	srv := newFakeOllama(t, 384)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL})
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 384, e.Dimensions())
	assert.Equal(t, DefaultOllamaModel, e.ModelName())
}

func TestOllamaEmbedder_EmbedNormalized(t *testing.T) {
	srv := newFakeOllama(t, 4)
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL})
	require.NoError(t, err)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "error handling in goroutines")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	// All components equal, so each is 1/sqrt(4) after normalization.
	assert.InDelta(t, 0.5, vec[0], 1e-6)
}

func TestOllamaEmbedder_UnreachableHostFails(t *testing.T) {
	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: "http://127.0.0.1:1",
	})
	assert.Error(t, err)
}

func TestOllamaEmbedder_ServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            srv.URL,
		Dimensions:      8,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "query")
	assert.Error(t, err)
}

func TestOllamaEmbedder_ClosedRejectsEmbed(t *testing.T) {
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host:            "http://localhost:11434",
		Dimensions:      8,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Embed(context.Background(), "query")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}
