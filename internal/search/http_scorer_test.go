package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeScorerServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/rerank":
			var req scoreRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

			// Answer out of order to verify index alignment.
			var resp scoreResponse
			for i := len(req.Documents) - 1; i >= 0; i-- {
				resp.Results = append(resp.Results, struct {
					Index int     `json:"index"`
					Score float64 `json:"score"`
				}{Index: i, Score: float64(i) * 0.1})
			}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestHTTPScorer_ScoreIndexAligned(t *testing.T) {
	srv := newFakeScorerServer(t)
	defer srv.Close()

	s, err := NewHTTPScorer(context.Background(), HTTPScorerConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer s.Close()

	scores, err := s.Score(context.Background(), "query", []string{"d0", "d1", "d2"})
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, 0.0, scores[0], 1e-9)
	assert.InDelta(t, 0.1, scores[1], 1e-9)
	assert.InDelta(t, 0.2, scores[2], 1e-9)
}

func TestHTTPScorer_EmptyDocuments(t *testing.T) {
	s, err := NewHTTPScorer(context.Background(), HTTPScorerConfig{
		Endpoint:        "http://localhost:9659",
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer s.Close()

	scores, err := s.Score(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestHTTPScorer_HealthCheckFailure(t *testing.T) {
	_, err := NewHTTPScorer(context.Background(), HTTPScorerConfig{
		Endpoint: "http://127.0.0.1:1",
	})
	assert.Error(t, err)
}

func TestHTTPScorer_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(context.Background(), HTTPScorerConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Score(context.Background(), "query", []string{"doc"})
	assert.Error(t, err)
}

func TestHTTPScorer_ClosedRejectsCalls(t *testing.T) {
	s, err := NewHTTPScorer(context.Background(), HTTPScorerConfig{
		Endpoint:        "http://localhost:9659",
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Score(context.Background(), "query", []string{"doc"})
	assert.Error(t, err)
	assert.False(t, s.Available(context.Background()))
}
