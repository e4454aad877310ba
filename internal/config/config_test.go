package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scouterrors "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/search"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 50, cfg.Search.RerankPoolSize)
	assert.Equal(t, "memory", cfg.Sparse.Backend)
	assert.Equal(t, 1.2, cfg.Sparse.K1)
	assert.Equal(t, 0.75, cfg.Sparse.B)
	assert.False(t, cfg.Reranker.Enabled)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yaml := `
search:
  rrf_constant: 30
  latency_budget: 200ms
sparse:
  backend: bleve
  k1: 1.5
routing:
  HOW_TO: sparse_dense_fuse_rerank
reranker:
  enabled: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codescout.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Search.RRFConstant)
	assert.Equal(t, 200*time.Millisecond, cfg.Search.LatencyBudgetDuration())
	assert.Equal(t, "bleve", cfg.Sparse.Backend)
	assert.Equal(t, 1.5, cfg.Sparse.K1)
	assert.True(t, cfg.Reranker.Enabled)

	// Overridden category changes; others keep defaults.
	table := cfg.RoutingTable()
	assert.Equal(t, search.PipelineFullRerank, table[search.CategoryHowTo])
	assert.Equal(t, search.PipelineDenseOnly, table[search.CategorySpecificTerm])
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "search:\n  rrf_constant: 30\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codescout.yaml"), []byte(yaml), 0o644))

	t.Setenv("CODESCOUT_RRF_CONSTANT", "90")
	t.Setenv("CODESCOUT_SPARSE_BACKEND", "bleve")
	t.Setenv("CODESCOUT_RERANKER_ENABLED", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Search.RRFConstant)
	assert.Equal(t, "bleve", cfg.Sparse.Backend)
	assert.True(t, cfg.Reranker.Enabled)
}

func TestLoad_InvalidRoutingCategory(t *testing.T) {
	dir := t.TempDir()
	yaml := "routing:\n  BOGUS_CATEGORY: dense_only\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codescout.yaml"), []byte(yaml), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, scouterrors.ErrCodeUnknownCategory, scouterrors.GetCode(err))
}

func TestLoad_InvalidPipelineName(t *testing.T) {
	dir := t.TempDir()
	yaml := "routing:\n  HOW_TO: teleport\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codescout.yaml"), []byte(yaml), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, scouterrors.IsFatal(err))
}

func TestValidate_BadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rrf", func(c *Config) { c.Search.RRFConstant = 0 }},
		{"limit above max", func(c *Config) { c.Search.DefaultLimit = 500 }},
		{"negative pool", func(c *Config) { c.Search.RerankPoolSize = -1 }},
		{"b out of range", func(c *Config) { c.Sparse.B = 1.5 }},
		{"unknown backend", func(c *Config) { c.Sparse.Backend = "lucene" }},
		{"unknown metric", func(c *Config) { c.Vector.Metric = "manhattan" }},
		{"unknown provider", func(c *Config) { c.Embedder.Provider = "openai" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, scouterrors.IsFatal(err))
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codescout.yaml"), []byte("search: ["), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, scouterrors.ErrCodeConfigInvalid, scouterrors.GetCode(err))
}

func TestEngineConfig_Conversion(t *testing.T) {
	cfg := NewConfig()
	ec := cfg.EngineConfig()

	assert.Equal(t, 60, ec.RRFConstant)
	assert.Equal(t, 50, ec.RerankPoolSize)
	assert.Equal(t, search.PipelineDenseOnly, ec.Routes[search.CategorySpecificTerm])
	assert.Equal(t, 5*time.Second, ec.SearchTimeout)
}
