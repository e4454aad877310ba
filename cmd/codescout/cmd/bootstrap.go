package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codescout-dev/codescout/internal/config"
	"github.com/codescout-dev/codescout/internal/embed"
	"github.com/codescout-dev/codescout/internal/logging"
	"github.com/codescout-dev/codescout/internal/search"
	"github.com/codescout-dev/codescout/internal/store"
	"github.com/codescout-dev/codescout/internal/telemetry"
)

// app holds the wired retrieval stack for one CLI invocation.
type app struct {
	cfg      *config.Config
	metadata *store.SQLiteMetadataStore
	sparse   store.SparseIndex
	vectors  *store.HNSWStore
	embedder embed.Embedder
	engine   *search.Engine
	metrics  *telemetry.QueryMetrics

	dataDir  string
	cleanups []func()
}

func (a *app) close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
}

func (a *app) vectorsPath() string {
	return filepath.Join(a.dataDir, "vectors.hnsw")
}

// setupApp loads configuration, installs logging, and wires the stores,
// embedder, optional reranker, and engine. Callers must defer close().
func setupApp(ctx context.Context, quietLogs bool) (*app, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:         cfg.Server.LogLevel,
		FilePath:      cfg.Server.LogFile,
		WriteToStderr: !quietLogs,
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{
		cfg:     cfg,
		dataDir: filepath.Join(root, cfg.Paths.DataDir),
	}
	a.cleanups = append(a.cleanups, logCleanup)

	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	metadata, err := store.NewSQLiteMetadataStore(filepath.Join(a.dataDir, "metadata.db"))
	if err != nil {
		return err
	}
	a.metadata = metadata
	a.cleanups = append(a.cleanups, func() { _ = metadata.Close() })

	if err := a.wireEmbedder(ctx); err != nil {
		return err
	}
	if err := a.wireVectors(); err != nil {
		return err
	}
	if err := a.wireSparse(ctx); err != nil {
		return err
	}
	return a.wireEngine(ctx)
}

// wireEmbedder selects the configured embedder. An unreachable Ollama
// host falls back to the static embedder with a warning so offline
// machines stay usable.
func (a *app) wireEmbedder(ctx context.Context) error {
	if a.cfg.Embedder.Provider == "static" {
		a.embedder = embed.NewStaticEmbedder()
		return nil
	}

	ollama, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
		Host:    a.cfg.Embedder.Host,
		Model:   a.cfg.Embedder.Model,
		Timeout: a.cfg.Embedder.TimeoutDuration(),
	})
	if err != nil {
		slog.Warn("ollama_unavailable_using_static",
			slog.String("host", a.cfg.Embedder.Host),
			slog.String("error", err.Error()))
		a.embedder = embed.NewStaticEmbedder()
		return nil
	}
	a.embedder = ollama
	a.cleanups = append(a.cleanups, func() { _ = ollama.Close() })
	return nil
}

func (a *app) wireVectors() error {
	dims := a.cfg.Vector.Dimensions
	if dims <= 0 {
		dims = a.embedder.Dimensions()
	}

	vectors, err := store.NewHNSWStore(store.VectorConfig{
		Dimensions: dims,
		Metric:     a.cfg.Vector.Metric,
		M:          a.cfg.Vector.M,
		EfSearch:   a.cfg.Vector.EfSearch,
	})
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(a.vectorsPath()); statErr == nil {
		if err := vectors.Load(a.vectorsPath()); err != nil {
			slog.Warn("vector_index_load_failed",
				slog.String("path", a.vectorsPath()),
				slog.String("error", err.Error()))
		}
	}

	a.vectors = vectors
	a.cleanups = append(a.cleanups, func() { _ = vectors.Close() })
	return nil
}

// wireSparse builds the configured sparse backend. The in-memory
// backend is rebuilt from the metadata store on every startup; bleve
// persists its own index on disk.
func (a *app) wireSparse(ctx context.Context) error {
	sparseCfg := store.DefaultSparseConfig()
	sparseCfg.K1 = a.cfg.Sparse.K1
	sparseCfg.B = a.cfg.Sparse.B

	switch a.cfg.Sparse.Backend {
	case "bleve":
		index, err := store.NewBleveSparseIndex(filepath.Join(a.dataDir, "bleve"), sparseCfg)
		if err != nil {
			return err
		}
		a.sparse = index
	default:
		index := store.NewMemorySparseIndex(sparseCfg)
		docs, err := a.metadata.AllDocuments(ctx)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			if err := index.Index(ctx, docs); err != nil {
				return err
			}
			slog.Debug("sparse_index_rebuilt", slog.Int("documents", len(docs)))
		}
		a.sparse = index
	}
	a.cleanups = append(a.cleanups, func() { _ = a.sparse.Close() })
	return nil
}

func (a *app) wireEngine(ctx context.Context) error {
	a.metrics = telemetry.NewQueryMetrics()

	opts := []search.EngineOption{
		search.WithClassifier(search.NewRuleClassifier()),
		search.WithMetrics(a.metrics),
	}

	if a.cfg.Reranker.Enabled {
		scorer, err := search.NewHTTPScorer(ctx, search.HTTPScorerConfig{
			Endpoint: a.cfg.Reranker.Endpoint,
			Model:    a.cfg.Reranker.Model,
			Timeout:  a.cfg.Reranker.TimeoutDuration(),
		})
		if err != nil {
			// Searches still run; rerank pipelines degrade to fused order.
			slog.Warn("reranker_unavailable",
				slog.String("endpoint", a.cfg.Reranker.Endpoint),
				slog.String("error", err.Error()))
		} else {
			opts = append(opts, search.WithReranker(search.NewCrossEncoderReranker(scorer)))
		}
	}

	engine, err := search.NewEngine(
		search.NewSparseSearcher(a.sparse),
		search.NewDenseSearcher(a.embedder, a.vectors),
		a.metadata,
		a.cfg.EngineConfig(),
		opts...,
	)
	if err != nil {
		return err
	}
	a.engine = engine
	a.cleanups = append(a.cleanups, func() { _ = engine.Close() })
	return nil
}

// newIndexer builds an indexer over the wired stores.
func (a *app) newIndexer() (*search.Indexer, error) {
	return search.NewIndexer(a.sparse, a.vectors, a.metadata, a.embedder)
}
