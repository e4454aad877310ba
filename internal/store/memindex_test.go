package store

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexDocs(t *testing.T, m *MemorySparseIndex, docs ...*Document) {
	t.Helper()
	require.NoError(t, m.Index(context.Background(), docs))
}

func TestMemorySparseIndex_ExactScore(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	indexDocs(t, m, &Document{ID: "d1", Content: "alpha beta"})

	results, err := m.Search(context.Background(), "alpha", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Single doc, single match: idf = ln(1 + 0.5/1.5), tf term cancels
	// because doc length equals average length.
	expected := math.Log(1 + 0.5/1.5)
	assert.InDelta(t, expected, results[0].Score, 1e-12)
	assert.Equal(t, []string{"alpha"}, results[0].MatchedTerms)
}

func TestMemorySparseIndex_RareTermOutranksCommon(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	// "alpha" appears everywhere, "gamma" only in d2.
	indexDocs(t, m,
		&Document{ID: "d1", Content: "alpha beta"},
		&Document{ID: "d2", Content: "alpha gamma"},
		&Document{ID: "d3", Content: "alpha delta"},
	)

	results, err := m.Search(context.Background(), "gamma", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].DocID)

	common, err := m.Search(context.Background(), "alpha", 10)
	require.NoError(t, err)
	require.Len(t, common, 3)
	assert.Greater(t, results[0].Score, common[0].Score)
}

func TestMemorySparseIndex_TermFrequencyRaisesScore(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	indexDocs(t, m,
		&Document{ID: "d1", Content: "pool pool pool handler"},
		&Document{ID: "d2", Content: "pool handler widget gadget"},
	)

	results, err := m.Search(context.Background(), "pool", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "d1", results[0].DocID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemorySparseIndex_RepeatedQueryTermsNoDoubleCount(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	indexDocs(t, m, &Document{ID: "d1", Content: "alpha beta"})

	once, err := m.Search(context.Background(), "alpha", 10)
	require.NoError(t, err)
	twice, err := m.Search(context.Background(), "alpha alpha", 10)
	require.NoError(t, err)

	require.Len(t, twice, 1)
	assert.InDelta(t, once[0].Score, twice[0].Score, 1e-12)
}

func TestMemorySparseIndex_Determinism(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	for i := 0; i < 20; i++ {
		indexDocs(t, m, &Document{ID: fmt.Sprintf("doc%02d", i), Content: "shared token corpus"})
	}

	first, err := m.Search(context.Background(), "shared corpus", 20)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := m.Search(context.Background(), "shared corpus", 20)
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].DocID, again[j].DocID)
		}
	}

	// Equal scores: ordered by document ID.
	assert.Equal(t, "doc00", first[0].DocID)
	assert.Equal(t, "doc01", first[1].DocID)
}

func TestMemorySparseIndex_ReindexReplaces(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	indexDocs(t, m, &Document{ID: "d1", Content: "original alpha content"})
	indexDocs(t, m, &Document{ID: "d1", Content: "replacement gamma content"})

	gone, err := m.Search(context.Background(), "alpha", 10)
	require.NoError(t, err)
	assert.Empty(t, gone)

	found, err := m.Search(context.Background(), "gamma", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, 1, m.Stats().DocumentCount)
}

func TestMemorySparseIndex_Delete(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	indexDocs(t, m,
		&Document{ID: "d1", Content: "alpha beta"},
		&Document{ID: "d2", Content: "alpha gamma"},
	)
	require.NoError(t, m.Delete(context.Background(), []string{"d1"}))

	results, err := m.Search(context.Background(), "alpha", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d2", results[0].DocID)
	assert.Equal(t, 1, m.Stats().DocumentCount)

	// Deleting an unknown ID is a no-op.
	assert.NoError(t, m.Delete(context.Background(), []string{"ghost"}))
}

func TestMemorySparseIndex_EmptyCases(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	// Empty index.
	results, err := m.Search(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	indexDocs(t, m, &Document{ID: "d1", Content: "alpha beta"})

	// No matching terms.
	results, err = m.Search(context.Background(), "zeta", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Stop-word-only query tokenizes to nothing.
	results, err = m.Search(context.Background(), "func return", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemorySparseIndex_LimitTruncates(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	for i := 0; i < 10; i++ {
		indexDocs(t, m, &Document{ID: fmt.Sprintf("d%d", i), Content: "token soup"})
	}

	results, err := m.Search(context.Background(), "token", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestMemorySparseIndex_CodeTokenization(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	indexDocs(t, m, &Document{ID: "d1", Content: "func getUserById(id string) (*User, error)"})

	// Sub-token of the camelCase identifier matches.
	results, err := m.Search(context.Background(), "user", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].DocID)
}

func TestMemorySparseIndex_ClosedRejectsCalls(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	require.NoError(t, m.Close())

	_, err := m.Search(context.Background(), "q", 10)
	assert.Error(t, err)
	assert.Error(t, m.Index(context.Background(), []*Document{{ID: "d", Content: "x"}}))
}

func TestMemorySparseIndex_Stats(t *testing.T) {
	m := NewMemorySparseIndex(DefaultSparseConfig())
	defer m.Close()

	indexDocs(t, m,
		&Document{ID: "d1", Content: "alpha beta"},
		&Document{ID: "d2", Content: "gamma delta epsilon zeta"},
	)

	stats := m.Stats()
	assert.Equal(t, 2, stats.DocumentCount)
	assert.InDelta(t, 3.0, stats.AvgDocLength, 1e-9)
	assert.Equal(t, 6, stats.TermCount)
}
