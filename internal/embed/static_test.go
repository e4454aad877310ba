package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	ctx := context.Background()
	v1, err := e.Embed(ctx, "parse JSON config file")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "parse JSON config file")
	require.NoError(t, err)

	assert.Equal(t, v1, v2, "same input must produce identical vectors")
}

func TestStaticEmbedder_EmptyInputZeroVector(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	for _, input := range []string{"", "   ", "\t\n"} {
		vec, err := e.Embed(context.Background(), input)
		require.NoError(t, err)
		require.Len(t, vec, StaticDimensions)
		for _, v := range vec {
			assert.Zero(t, v)
		}
	}
}

func TestStaticEmbedder_UnitNorm(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "func handleAuthToken(ctx context.Context)")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-5)
}

func TestStaticEmbedder_DifferentTextsDiffer(t *testing.T) {
	e := NewStaticEmbedder()
	defer e.Close()

	ctx := context.Background()
	v1, err := e.Embed(ctx, "database connection pooling")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "render HTML template")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestStaticEmbedder_ClosedReturnsError(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"camelCase", []string{"camel", "Case"}},
		{"snake_case_name", []string{"snake", "case", "name"}},
		{"HTTPServer", []string{"HTTP", "Server"}},
		{"parseJSONBody", []string{"parse", "JSON", "Body"}},
		{"simple", []string{"simple"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, splitIdentifier(tt.input), "input: %s", tt.input)
	}
}
