package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateSet(query string, ids ...string) *CandidateSet {
	candidates := make([]*FusedResult, len(ids))
	for i, id := range ids {
		candidates[i] = &FusedResult{DocID: id, FusedScore: 1.0 / float64(i+61), MinRank: i + 1}
	}
	return &CandidateSet{Query: query, Candidates: candidates}
}

func TestCrossEncoderReranker_PermutationOnly(t *testing.T) {
	// Scorer favors the middle document.
	scorer := &fakeScorer{scoreFn: func(_ string, docs []string) ([]float64, error) {
		scores := make([]float64, len(docs))
		scores[1] = 10.0
		return scores, nil
	}}
	r := NewCrossEncoderReranker(scorer)

	set := candidateSet("query", "a", "b", "c")
	out, err := r.Rerank(context.Background(), set, []string{"ta", "tb", "tc"}, 0)
	require.NoError(t, err)

	// Same ids, no additions, no removals.
	require.Len(t, out, 3)
	seen := make(map[string]bool)
	for _, item := range out {
		seen[item.DocID] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, seen)
	assert.Equal(t, "b", out[0].DocID)
}

func TestCrossEncoderReranker_StableOnTies(t *testing.T) {
	scorer := &fakeScorer{scoreFn: func(_ string, docs []string) ([]float64, error) {
		return make([]float64, len(docs)), nil
	}}
	r := NewCrossEncoderReranker(scorer)

	set := candidateSet("query", "a", "b", "c")
	out, err := r.Rerank(context.Background(), set, []string{"x", "y", "z"}, 0)
	require.NoError(t, err)

	// All scores equal: incoming fused order survives.
	assert.Equal(t, "a", out[0].DocID)
	assert.Equal(t, "b", out[1].DocID)
	assert.Equal(t, "c", out[2].DocID)
}

func TestCrossEncoderReranker_TopMTruncates(t *testing.T) {
	scorer := &fakeScorer{scoreFn: func(_ string, docs []string) ([]float64, error) {
		scores := make([]float64, len(docs))
		for i := range docs {
			scores[i] = float64(len(docs) - i)
		}
		return scores, nil
	}}
	r := NewCrossEncoderReranker(scorer)

	set := candidateSet("query", "a", "b", "c", "d")
	out, err := r.Rerank(context.Background(), set, []string{"1", "2", "3", "4"}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].DocID)
	assert.Equal(t, "b", out[1].DocID)
}

func TestCrossEncoderReranker_ScorerFailure(t *testing.T) {
	scorer := &fakeScorer{scoreFn: func(string, []string) ([]float64, error) {
		return nil, errors.New("timeout")
	}}
	r := NewCrossEncoderReranker(scorer)

	set := candidateSet("query", "a")
	_, err := r.Rerank(context.Background(), set, []string{"x"}, 0)
	assert.Error(t, err)
}

func TestCrossEncoderReranker_LengthMismatch(t *testing.T) {
	scorer := &fakeScorer{scoreFn: func(_ string, docs []string) ([]float64, error) {
		return []float64{1.0}, nil // wrong cardinality
	}}
	r := NewCrossEncoderReranker(scorer)

	set := candidateSet("query", "a", "b")
	_, err := r.Rerank(context.Background(), set, []string{"x", "y"}, 0)
	assert.Error(t, err)

	_, err = r.Rerank(context.Background(), set, []string{"only-one"}, 0)
	assert.Error(t, err)
}

func TestCrossEncoderReranker_EmptySet(t *testing.T) {
	r := NewCrossEncoderReranker(&fakeScorer{scoreFn: func(string, []string) ([]float64, error) {
		t.Fatal("scorer must not be called for empty candidate sets")
		return nil, nil
	}})

	out, err := r.Rerank(context.Background(), &CandidateSet{Query: "q"}, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNoOpReranker_PreservesOrder(t *testing.T) {
	r := &NoOpReranker{}

	set := candidateSet("query", "a", "b", "c")
	out, err := r.Rerank(context.Background(), set, nil, 0)
	require.NoError(t, err)

	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].DocID)
	assert.Equal(t, "b", out[1].DocID)
	assert.Equal(t, "c", out[2].DocID)
	assert.Greater(t, out[0].Score, out[1].Score)

	truncated, err := r.Rerank(context.Background(), set, nil, 2)
	require.NoError(t, err)
	assert.Len(t, truncated, 2)
	assert.True(t, r.Available(context.Background()))
	assert.NoError(t, r.Close())
}
