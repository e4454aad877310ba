package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSW(t *testing.T, dims int) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func unitVec(dims, axis int) []float32 {
	v := make([]float32, dims)
	v[axis] = 1.0
	return v
}

func TestNewHNSWStore_RequiresDimensions(t *testing.T) {
	_, err := NewHNSWStore(VectorConfig{})
	assert.Error(t, err)
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	s := newTestHNSW(t, 4)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"x", "y", "z"},
		[][]float32{unitVec(4, 0), unitVec(4, 1), unitVec(4, 2)},
	))
	assert.Equal(t, 3, s.Count())

	results, err := s.Search(ctx, []float32{1, 0.1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "x", results[0].ID)
	assert.Greater(t, results[0].Score, float32(0.9))
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestHNSW(t, 4)
	ctx := context.Background()

	err := s.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = s.Search(ctx, []float32{1, 0}, 1)
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestHNSWStore_ReplaceExistingID(t *testing.T) {
	s := newTestHNSW(t, 4)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"x"}, [][]float32{unitVec(4, 0)}))
	require.NoError(t, s.Add(ctx, []string{"x"}, [][]float32{unitVec(4, 3)}))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, unitVec(4, 3), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWStore_DeleteHidesResults(t *testing.T) {
	s := newTestHNSW(t, 4)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"x", "y"},
		[][]float32{unitVec(4, 0), unitVec(4, 1)},
	))
	require.NoError(t, s.Delete(ctx, []string{"x"}))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, unitVec(4, 0), 2)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "x", r.ID)
	}
}

func TestHNSWStore_EmptySearch(t *testing.T) {
	s := newTestHNSW(t, 4)

	results, err := s.Search(context.Background(), unitVec(4, 0), 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestHNSWStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s := newTestHNSW(t, 4)
	require.NoError(t, s.Add(ctx,
		[]string{"x", "y"},
		[][]float32{unitVec(4, 0), unitVec(4, 1)},
	))
	require.NoError(t, s.Save(path))

	loaded := newTestHNSW(t, 4)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 2, loaded.Count())

	results, err := loaded.Search(ctx, unitVec(4, 1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "y", results[0].ID)
}

func TestHNSWStore_LoadMissingFile(t *testing.T) {
	s := newTestHNSW(t, 4)
	assert.Error(t, s.Load(filepath.Join(t.TempDir(), "absent.hnsw")))
}

func TestHNSWStore_ClosedRejectsCalls(t *testing.T) {
	s, err := NewHNSWStore(DefaultVectorConfig(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Error(t, s.Add(context.Background(), []string{"x"}, [][]float32{unitVec(4, 0)}))
	_, err = s.Search(context.Background(), unitVec(4, 0), 1)
	assert.Error(t, err)
	assert.Zero(t, s.Count())
}

func TestHNSWStore_CosineNormalization(t *testing.T) {
	s := newTestHNSW(t, 4)
	ctx := context.Background()

	// Same direction, different magnitude: identical under cosine.
	require.NoError(t, s.Add(ctx, []string{"x"}, [][]float32{{10, 0, 0, 0}}))

	results, err := s.Search(ctx, []float32{0.5, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}
