package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Cross-encoder scorer defaults.
const (
	DefaultScorerEndpoint = "http://localhost:9659"
	DefaultScorerModel    = "reranker-small"
	DefaultScorerTimeout  = 30 * time.Second
)

// HTTPScorerConfig configures the HTTP pairwise scorer.
type HTTPScorerConfig struct {
	// Endpoint is the scorer server URL (default: http://localhost:9659).
	Endpoint string

	// Model is the cross-encoder model alias (default: reranker-small).
	Model string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration

	// SkipHealthCheck skips the startup health check (for testing).
	SkipHealthCheck bool
}

// HTTPScorer computes pairwise query-document relevance via a
// cross-encoder HTTP service exposing a /rerank endpoint.
type HTTPScorer struct {
	client   *http.Client
	config   HTTPScorerConfig
	endpoint string

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time.
var _ Scorer = (*HTTPScorer)(nil)

// scoreRequest is the JSON request to the /rerank endpoint.
type scoreRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
}

// scoreResponse is the JSON response from the /rerank endpoint.
type scoreResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// NewHTTPScorer creates a new HTTP pairwise scorer.
// Unless SkipHealthCheck is set, the constructor verifies the service is
// reachable; failure here is a startup configuration error.
func NewHTTPScorer(ctx context.Context, cfg HTTPScorerConfig) (*HTTPScorer, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultScorerEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultScorerModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultScorerTimeout
	}

	client := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}

	s := &HTTPScorer{
		client:   client,
		config:   cfg,
		endpoint: cfg.Endpoint,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := s.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("scorer health check failed: %w", err)
		}
	}

	slog.Debug("http_scorer_created",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("model", cfg.Model),
		slog.Duration("timeout", cfg.Timeout))

	return s, nil
}

// healthCheck verifies the scorer service is up.
func (s *HTTPScorer) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to scorer: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("scorer unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Score returns one relevance score per document, index-aligned with
// the input regardless of the order the server answers in.
func (s *HTTPScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("scorer is closed")
	}
	s.mu.RUnlock()

	if len(documents) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(scoreRequest{
		Query:     query,
		Documents: documents,
		Model:     s.config.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, s.endpoint+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scoring failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode score response: %w", err)
	}

	scores := make([]float64, len(documents))
	for _, r := range result.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("scorer returned out-of-range index %d", r.Index)
		}
		scores[r.Index] = r.Score
	}

	slog.Debug("scorer_request_done",
		slog.Int("doc_count", len(documents)),
		slog.Duration("took", time.Since(start)))

	return scores, nil
}

// Available checks if the scorer service is reachable.
func (s *HTTPScorer) Available(ctx context.Context) bool {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false
	}
	s.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return s.healthCheck(checkCtx) == nil
}

// Close releases resources.
func (s *HTTPScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if transport, ok := s.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
