// Package config loads CodeScout configuration from YAML with
// environment variable overrides. Precedence, lowest to highest:
// hardcoded defaults, project config (.codescout.yaml), CODESCOUT_*
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	scouterrors "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/search"
)

// Pipeline names accepted in the routing table.
const (
	PipelineNameSparseDenseFuse = "sparse_dense_fuse"
	PipelineNameDenseOnly       = "dense_only"
	PipelineNameSparseOnly      = "sparse_only"
	PipelineNameFullRerank      = "sparse_dense_fuse_rerank"
)

// Config is the complete CodeScout configuration.
type Config struct {
	Version  int              `yaml:"version"`
	Paths    PathsConfig      `yaml:"paths"`
	Search   SearchConfig     `yaml:"search"`
	Routing  map[string]string `yaml:"routing"`
	Sparse   SparseConfig     `yaml:"sparse"`
	Vector   VectorConfig     `yaml:"vector"`
	Embedder EmbedderConfig   `yaml:"embedder"`
	Reranker RerankerConfig   `yaml:"reranker"`
	Server   ServerConfig     `yaml:"server"`
}

// PathsConfig locates the on-disk indices.
type PathsConfig struct {
	// DataDir is the root directory for index files (default: .codescout).
	DataDir string `yaml:"data_dir"`
}

// SearchConfig tunes the adaptive router.
type SearchConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit is the maximum allowed results (default: 100).
	MaxLimit int `yaml:"max_limit"`

	// RRFConstant is the fusion smoothing parameter k.
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	RRFConstant int `yaml:"rrf_constant"`

	// RerankPoolSize bounds the candidate set handed to the reranker
	// (default: 50).
	RerankPoolSize int `yaml:"rerank_pool_size"`

	// LatencyBudget bounds per-query time before reranking is skipped,
	// as a duration string (e.g. "200ms"). Empty disables the budget.
	LatencyBudget string `yaml:"latency_budget"`

	// Timeout is the maximum search duration (default: "5s").
	Timeout string `yaml:"timeout"`
}

// LatencyBudgetDuration parses the latency budget, 0 when unset.
func (s SearchConfig) LatencyBudgetDuration() time.Duration {
	d, err := time.ParseDuration(s.LatencyBudget)
	if err != nil {
		return 0
	}
	return d
}

// TimeoutDuration parses the search timeout, 5s when unset or invalid.
func (s SearchConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// SparseConfig selects and tunes the keyword index.
type SparseConfig struct {
	// Backend selects the sparse index implementation.
	// Options: "memory" (default, explicit BM25 over postings) or
	// "bleve" (persistent on-disk index).
	Backend string `yaml:"backend"`

	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64 `yaml:"k1"`

	// B is the length normalization parameter (default: 0.75).
	B float64 `yaml:"b"`
}

// VectorConfig tunes the HNSW vector index.
type VectorConfig struct {
	// Dimensions is the embedding dimension (0 = take from embedder).
	Dimensions int `yaml:"dimensions"`

	// Metric is "cos" (default) or "l2".
	Metric string `yaml:"metric"`

	// M is HNSW max connections per layer (default: 16).
	M int `yaml:"m"`

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int `yaml:"ef_search"`
}

// EmbedderConfig configures the query-encoding collaborator.
type EmbedderConfig struct {
	// Provider is "ollama" (default) or "static" (offline hash embedder).
	Provider string `yaml:"provider"`

	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string `yaml:"host"`

	// Model is the embedding model name (default: nomic-embed-text).
	Model string `yaml:"model"`

	// Timeout is the per-request timeout as a duration string
	// (default: "30s").
	Timeout string `yaml:"timeout"`
}

// TimeoutDuration parses the embedder timeout, 30s when unset or invalid.
func (e EmbedderConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// RerankerConfig configures the optional cross-encoder scorer.
type RerankerConfig struct {
	// Enabled enables reranking for pipelines that request it
	// (default: false; routing falls back to the fused order).
	Enabled bool `yaml:"enabled"`

	// Endpoint is the scorer server URL (default: http://localhost:9659).
	Endpoint string `yaml:"endpoint"`

	// Model is the cross-encoder model alias (default: reranker-small).
	Model string `yaml:"model"`

	// Timeout is the per-request timeout as a duration string
	// (default: "30s").
	Timeout string `yaml:"timeout"`
}

// TimeoutDuration parses the reranker timeout, 30s when unset or invalid.
func (r RerankerConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	// Transport is "stdio" (default).
	Transport string `yaml:"transport"`

	// LogLevel is debug, info, warn, or error (default: info).
	LogLevel string `yaml:"log_level"`

	// LogFile is an optional log file path.
	LogFile string `yaml:"log_file"`
}

// NewConfig creates a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: ".codescout",
		},
		Search: SearchConfig{
			DefaultLimit:   10,
			MaxLimit:       100,
			RRFConstant:    60,
			RerankPoolSize: 50,
			Timeout:        "5s",
		},
		Routing: map[string]string{
			string(search.CategoryHowTo):        PipelineNameSparseDenseFuse,
			string(search.CategorySpecificTerm): PipelineNameDenseOnly,
			string(search.CategoryConcept):      PipelineNameFullRerank,
			string(search.CategoryCodePattern):  PipelineNameFullRerank,
			string(search.CategoryDefault):      PipelineNameSparseDenseFuse,
		},
		Sparse: SparseConfig{
			Backend: "memory",
			K1:      1.2,
			B:       0.75,
		},
		Vector: VectorConfig{
			Dimensions: 0,
			Metric:     "cos",
			M:          16,
			EfSearch:   20,
		},
		Embedder: EmbedderConfig{
			Provider: "ollama",
			Host:     "http://localhost:11434",
			Model:    "nomic-embed-text",
			Timeout:  "30s",
		},
		Reranker: RerankerConfig{
			Enabled:  false,
			Endpoint: "http://localhost:9659",
			Model:    "reranker-small",
			Timeout:  "30s",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// Load loads configuration from the given directory, applying in order
// of increasing precedence: defaults, .codescout.yaml, environment
// variables. Validation failures are fatal configuration errors.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile attempts to load .codescout.yaml or .codescout.yml.
// Missing files are fine; defaults apply.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".codescout.yaml", ".codescout.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return scouterrors.New(scouterrors.ErrCodeConfigNotFound,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return scouterrors.New(scouterrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.RerankPoolSize != 0 {
		c.Search.RerankPoolSize = other.Search.RerankPoolSize
	}
	if other.Search.LatencyBudget != "" {
		c.Search.LatencyBudget = other.Search.LatencyBudget
	}
	if other.Search.Timeout != "" {
		c.Search.Timeout = other.Search.Timeout
	}

	// A routing entry overrides only its own category.
	for category, pipeline := range other.Routing {
		c.Routing[category] = pipeline
	}

	if other.Sparse.Backend != "" {
		c.Sparse.Backend = other.Sparse.Backend
	}
	if other.Sparse.K1 != 0 {
		c.Sparse.K1 = other.Sparse.K1
	}
	if other.Sparse.B != 0 {
		c.Sparse.B = other.Sparse.B
	}

	if other.Vector.Dimensions != 0 {
		c.Vector.Dimensions = other.Vector.Dimensions
	}
	if other.Vector.Metric != "" {
		c.Vector.Metric = other.Vector.Metric
	}
	if other.Vector.M != 0 {
		c.Vector.M = other.Vector.M
	}
	if other.Vector.EfSearch != 0 {
		c.Vector.EfSearch = other.Vector.EfSearch
	}

	if other.Embedder.Provider != "" {
		c.Embedder.Provider = other.Embedder.Provider
	}
	if other.Embedder.Host != "" {
		c.Embedder.Host = other.Embedder.Host
	}
	if other.Embedder.Model != "" {
		c.Embedder.Model = other.Embedder.Model
	}
	if other.Embedder.Timeout != "" {
		c.Embedder.Timeout = other.Embedder.Timeout
	}

	if other.Reranker.Enabled {
		c.Reranker.Enabled = true
	}
	if other.Reranker.Endpoint != "" {
		c.Reranker.Endpoint = other.Reranker.Endpoint
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}
	if other.Reranker.Timeout != "" {
		c.Reranker.Timeout = other.Reranker.Timeout
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.LogFile != "" {
		c.Server.LogFile = other.Server.LogFile
	}
}

// applyEnvOverrides applies CODESCOUT_* environment variables.
// Environment variables have the highest precedence.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CODESCOUT_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("CODESCOUT_RERANK_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.RerankPoolSize = n
		}
	}
	if v := os.Getenv("CODESCOUT_LATENCY_BUDGET"); v != "" {
		if _, err := time.ParseDuration(v); err == nil {
			c.Search.LatencyBudget = v
		}
	}
	if v := os.Getenv("CODESCOUT_SPARSE_BACKEND"); v != "" {
		c.Sparse.Backend = v
	}
	if v := os.Getenv("CODESCOUT_EMBEDDER_PROVIDER"); v != "" {
		c.Embedder.Provider = v
	}
	if v := os.Getenv("CODESCOUT_OLLAMA_HOST"); v != "" {
		c.Embedder.Host = v
	}
	if v := os.Getenv("CODESCOUT_RERANKER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Reranker.Enabled = b
		}
	}
	if v := os.Getenv("CODESCOUT_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("CODESCOUT_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("CODESCOUT_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
}

// Validate checks the configuration for invalid values.
// Failures are fatal: the engine must not start misconfigured.
func (c *Config) Validate() error {
	if c.Search.RRFConstant <= 0 {
		return scouterrors.ConfigError(
			fmt.Sprintf("rrf_constant must be positive, got %d", c.Search.RRFConstant), nil)
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return scouterrors.ConfigError(
			fmt.Sprintf("default_limit %d must be in (0, %d]", c.Search.DefaultLimit, c.Search.MaxLimit), nil)
	}
	if c.Search.RerankPoolSize <= 0 {
		return scouterrors.ConfigError(
			fmt.Sprintf("rerank_pool_size must be positive, got %d", c.Search.RerankPoolSize), nil)
	}
	if c.Sparse.K1 <= 0 || c.Sparse.B < 0 || c.Sparse.B > 1 {
		return scouterrors.ConfigError(
			fmt.Sprintf("invalid BM25 parameters k1=%.2f b=%.2f", c.Sparse.K1, c.Sparse.B), nil)
	}
	switch c.Sparse.Backend {
	case "memory", "bleve":
	default:
		return scouterrors.ConfigError(
			fmt.Sprintf("unknown sparse backend %q", c.Sparse.Backend), nil)
	}
	switch c.Vector.Metric {
	case "cos", "l2":
	default:
		return scouterrors.ConfigError(
			fmt.Sprintf("unknown vector metric %q", c.Vector.Metric), nil)
	}
	switch c.Embedder.Provider {
	case "ollama", "static":
	default:
		return scouterrors.ConfigError(
			fmt.Sprintf("unknown embedder provider %q", c.Embedder.Provider), nil)
	}
	if c.Search.LatencyBudget != "" {
		if _, err := time.ParseDuration(c.Search.LatencyBudget); err != nil {
			return scouterrors.ConfigError(
				fmt.Sprintf("invalid latency_budget %q", c.Search.LatencyBudget), err)
		}
	}

	for category, pipeline := range c.Routing {
		if !search.ValidCategory(search.QueryCategory(category)) {
			return scouterrors.New(scouterrors.ErrCodeUnknownCategory,
				fmt.Sprintf("routing table references unknown category %q", category), nil)
		}
		if _, err := parsePipeline(pipeline); err != nil {
			return scouterrors.ConfigError(
				fmt.Sprintf("routing table entry %s: %v", category, err), nil)
		}
	}
	return nil
}

// parsePipeline maps a pipeline name to its spec.
func parsePipeline(name string) (search.PipelineSpec, error) {
	switch name {
	case PipelineNameSparseDenseFuse:
		return search.PipelineSparseDenseFuse, nil
	case PipelineNameDenseOnly:
		return search.PipelineDenseOnly, nil
	case PipelineNameSparseOnly:
		return search.PipelineSparseOnly, nil
	case PipelineNameFullRerank:
		return search.PipelineFullRerank, nil
	default:
		return search.PipelineSpec{}, fmt.Errorf("unknown pipeline %q", name)
	}
}

// RoutingTable converts the configured routing entries to the engine's
// routing table. Call after Validate.
func (c *Config) RoutingTable() search.RoutingTable {
	table := make(search.RoutingTable, len(c.Routing))
	for category, pipeline := range c.Routing {
		spec, err := parsePipeline(pipeline)
		if err != nil {
			continue
		}
		table[search.QueryCategory(category)] = spec
	}
	return table
}

// EngineConfig converts the search section to the engine configuration.
func (c *Config) EngineConfig() search.EngineConfig {
	return search.EngineConfig{
		DefaultLimit:   c.Search.DefaultLimit,
		MaxLimit:       c.Search.MaxLimit,
		RRFConstant:    c.Search.RRFConstant,
		RerankPoolSize: c.Search.RerankPoolSize,
		Routes:         c.RoutingTable(),
		SearchTimeout:  c.Search.TimeoutDuration(),
	}
}
