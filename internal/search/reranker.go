package search

import (
	"context"
	"fmt"
	"sort"

	scouterrors "github.com/codescout-dev/codescout/internal/errors"
)

// RerankedItem is one result of a rerank pass.
type RerankedItem struct {
	// DocID is the document identifier, always drawn from the input
	// candidate set.
	DocID string

	// Score is the pairwise relevance score. Not comparable to fused
	// scores.
	Score float64
}

// Reranker reorders a bounded candidate set using pairwise relevance
// scoring. Output is always a permutation (optionally truncated) of the
// input candidate ids; implementations never introduce new ids.
type Reranker interface {
	// Rerank reorders the candidate set by relevance to the query.
	// texts is index-aligned with set.Candidates. topM > 0 truncates
	// the output; 0 returns the full permutation.
	Rerank(ctx context.Context, set *CandidateSet, texts []string, topM int) ([]RerankedItem, error)

	// Available checks if the underlying scorer is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// CrossEncoderReranker reranks candidates with an external pairwise
// scorer. The candidate set is a fixed top-N slice of the fused list,
// keeping scorer cost linear in N regardless of corpus size.
type CrossEncoderReranker struct {
	scorer Scorer
}

// Verify interface implementation at compile time.
var _ Reranker = (*CrossEncoderReranker)(nil)

// NewCrossEncoderReranker wraps a pairwise scorer.
func NewCrossEncoderReranker(scorer Scorer) *CrossEncoderReranker {
	return &CrossEncoderReranker{scorer: scorer}
}

// Rerank scores every candidate against the query and returns them in
// descending score order. Ties keep the incoming fused order (stable
// sort), so equal-scored candidates stay deterministic.
func (r *CrossEncoderReranker) Rerank(ctx context.Context, set *CandidateSet, texts []string, topM int) ([]RerankedItem, error) {
	if len(set.Candidates) == 0 {
		return []RerankedItem{}, nil
	}
	if len(texts) != len(set.Candidates) {
		return nil, fmt.Errorf("texts and candidates length mismatch: %d vs %d",
			len(texts), len(set.Candidates))
	}

	scores, err := r.scorer.Score(ctx, set.Query, texts)
	if err != nil {
		return nil, scouterrors.New(scouterrors.ErrCodeRerankFailed,
			"pairwise scoring failed", err)
	}
	if len(scores) != len(texts) {
		return nil, scouterrors.New(scouterrors.ErrCodeRerankFailed,
			fmt.Sprintf("scorer returned %d scores for %d documents", len(scores), len(texts)), nil)
	}

	items := make([]RerankedItem, len(set.Candidates))
	for i, c := range set.Candidates {
		items[i] = RerankedItem{DocID: c.DocID, Score: scores[i]}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	if topM > 0 && topM < len(items) {
		items = items[:topM]
	}
	return items, nil
}

// Available checks the underlying scorer.
func (r *CrossEncoderReranker) Available(ctx context.Context) bool {
	return r.scorer.Available(ctx)
}

// Close closes the underlying scorer.
func (r *CrossEncoderReranker) Close() error {
	return r.scorer.Close()
}

// NoOpReranker preserves the incoming fused order. Used when reranking
// is disabled or no scorer is configured.
type NoOpReranker struct{}

// Verify interface implementation at compile time.
var _ Reranker = (*NoOpReranker)(nil)

// Rerank returns candidates in their original order with decreasing scores.
func (n *NoOpReranker) Rerank(_ context.Context, set *CandidateSet, _ []string, topM int) ([]RerankedItem, error) {
	items := make([]RerankedItem, len(set.Candidates))
	for i, c := range set.Candidates {
		items[i] = RerankedItem{DocID: c.DocID, Score: 1.0 - float64(i)*0.01}
	}
	if topM > 0 && topM < len(items) {
		items = items[:topM]
	}
	return items, nil
}

// Available always returns true for NoOpReranker.
func (n *NoOpReranker) Available(_ context.Context) bool {
	return true
}

// Close is a no-op for NoOpReranker.
func (n *NoOpReranker) Close() error {
	return nil
}
