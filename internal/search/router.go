package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	scouterrors "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/store"
	"github.com/codescout-dev/codescout/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine is the adaptive router: it classifies each query, selects a
// pipeline from the routing table, executes sparse and dense retrieval
// concurrently, fuses, optionally reranks, and materializes results.
// Stateless across queries; all per-query state lives on the stack.
type Engine struct {
	classifier Classifier
	sparse     *SparseSearcher
	dense      *DenseSearcher
	metadata   store.MetadataStore
	fusion     *RRFFusion
	reranker   Reranker                 // optional cross-encoder reranker
	metrics    *telemetry.QueryMetrics // optional query telemetry collector
	config     EngineConfig

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time.
var _ Searcher = (*Engine)(nil)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithClassifier replaces the default rule-based classifier.
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

// WithReranker sets an optional cross-encoder reranker. Pipelines with
// the rerank stage degrade to the fused order when no reranker is set.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) {
		e.reranker = r
	}
}

// WithMetrics sets an optional query telemetry collector.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates the adaptive search engine.
// Returns an error if any required dependency is nil.
func NewEngine(
	sparse *SparseSearcher,
	dense *DenseSearcher,
	metadata store.MetadataStore,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if sparse == nil {
		return nil, fmt.Errorf("%w: sparse searcher is required", ErrNilDependency)
	}
	if dense == nil {
		return nil, fmt.Errorf("%w: dense searcher is required", ErrNilDependency)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}

	config = applyConfigDefaults(config)

	e := &Engine{
		classifier: NewRuleClassifier(),
		sparse:     sparse,
		dense:      dense,
		metadata:   metadata,
		fusion:     NewRRFFusionWithK(config.RRFConstant),
		config:     config,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func applyConfigDefaults(c EngineConfig) EngineConfig {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 10
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = 100
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = DefaultRRFConstant
	}
	if c.RerankPoolSize <= 0 {
		c.RerankPoolSize = 50
	}
	if c.Routes == nil {
		c.Routes = DefaultRoutingTable()
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = 5 * time.Second
	}
	return c
}

// Search answers one query. The classified category selects the
// pipeline; sparse and dense retrieval run as concurrent tasks joined
// at a barrier before fusion; reranking is skipped when the latency
// budget is already exhausted.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error) {
	start := time.Now()

	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("engine is closed")
	}
	e.mu.RUnlock()

	query = strings.TrimSpace(query)
	if query == "" {
		return &SearchResponse{
			Results:  []*SearchResult{},
			Category: CategoryDefault,
			Pipeline: e.config.Routes.Resolve(CategoryDefault),
			Took:     time.Since(start),
		}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}

	category := opts.CategoryOverride
	if !ValidCategory(category) {
		category = e.classifier.Classify(query)
	}
	pipeline := e.config.Routes.Resolve(category)
	if opts.DisableRerank {
		pipeline.Rerank = false
	}

	queryCtx, cancel := context.WithTimeout(ctx, e.config.SearchTimeout)
	defer cancel()

	lists, partial, err := e.retrieve(queryCtx, query, pipeline, limit)
	if err != nil {
		return nil, err
	}

	fused := e.fuse(lists)

	ordered, degraded := e.maybeRerank(queryCtx, query, pipeline, fused, start, opts.LatencyBudget)
	degraded = degraded || partial

	if len(ordered.ids) > limit {
		ordered.ids = ordered.ids[:limit]
		ordered.scores = ordered.scores[:limit]
	}

	// After a mid-flight cancellation the query context is already dead;
	// materialize the partial results on a detached context so the
	// best-so-far answer can still be returned.
	materializeCtx := queryCtx
	if partial {
		materializeCtx = context.WithoutCancel(ctx)
	}
	results, err := materialize(materializeCtx, e.metadata, ordered.ids, ordered.scores)
	if err != nil {
		return nil, scouterrors.New(scouterrors.ErrCodeStoreFailed,
			"failed to materialize results", err)
	}

	took := time.Since(start)
	e.recordMetrics(query, category, len(results), took, degraded)

	slog.Info("search_completed",
		slog.String("category", string(category)),
		slog.String("pipeline", pipeline.String()),
		slog.Int("result_count", len(results)),
		slog.Bool("degraded", degraded),
		slog.Duration("took", took))

	return &SearchResponse{
		Results:  results,
		Category: category,
		Pipeline: pipeline,
		Degraded: degraded,
		Took:     took,
	}, nil
}

// retrieve runs the pipeline's retrieval methods as concurrent tasks and
// joins them. A cancelled context yields the lists completed so far with
// partial=true; retrieval failures in required stages propagate.
func (e *Engine) retrieve(ctx context.Context, query string, pipeline PipelineSpec, limit int) ([]RankedList, bool, error) {
	// Over-fetch so fusion has candidates beyond the final cutoff.
	fetchK := limit * 2
	if fetchK < 20 {
		fetchK = 20
	}

	var sparseList, denseList RankedList
	var sparseDone, denseDone bool

	g, gctx := errgroup.WithContext(ctx)

	if pipeline.Sparse {
		g.Go(func() error {
			list, err := e.sparse.Search(gctx, query, fetchK)
			if err != nil {
				return err
			}
			sparseList = list
			sparseDone = true
			return nil
		})
	}
	if pipeline.Dense {
		g.Go(func() error {
			list, err := e.dense.Search(gctx, query, fetchK)
			if err != nil {
				return err
			}
			denseList = list
			denseDone = true
			return nil
		})
	}

	// Barrier: fusion must not start until both methods have finished.
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Return the best result computed so far.
			var lists []RankedList
			if sparseDone {
				lists = append(lists, sparseList)
			}
			if denseDone {
				lists = append(lists, denseList)
			}
			slog.Warn("search_cancelled_midflight",
				slog.Int("completed_lists", len(lists)))
			return lists, true, nil
		}
		return nil, false, err
	}

	var lists []RankedList
	if pipeline.Sparse {
		lists = append(lists, sparseList)
	}
	if pipeline.Dense {
		lists = append(lists, denseList)
	}
	return lists, false, nil
}

// fuse merges the retrieval outputs. A single-method pipeline passes its
// ranked list through directly; fusion only runs when there is something
// to merge.
func (e *Engine) fuse(lists []RankedList) []*FusedResult {
	switch len(lists) {
	case 0:
		return []*FusedResult{}
	case 1:
		results := make([]*FusedResult, len(lists[0].Items))
		for i, item := range lists[0].Items {
			results[i] = &FusedResult{
				DocID:       item.DocID,
				FusedScore:  item.Score,
				MinRank:     item.Rank,
				SourceRanks: map[string]int{lists[0].Method: item.Rank},
			}
		}
		return results
	default:
		return e.fusion.Fuse(lists...)
	}
}

// orderedResults pairs ordered document ids with their final scores.
type orderedResults struct {
	ids    []string
	scores []float64
}

func fusedToOrdered(fused []*FusedResult) orderedResults {
	ids := make([]string, len(fused))
	scores := make([]float64, len(fused))
	for i, r := range fused {
		ids[i] = r.DocID
		scores[i] = r.FusedScore
	}
	return orderedResults{ids: ids, scores: scores}
}

// maybeRerank applies the optional rerank stage. Reranking degrades to
// the fused order on any failure and is skipped entirely when the
// latency budget is exhausted; in both cases the returned flag marks
// the response as degraded.
func (e *Engine) maybeRerank(ctx context.Context, query string, pipeline PipelineSpec, fused []*FusedResult, start time.Time, budget time.Duration) (orderedResults, bool) {
	if !pipeline.Rerank || len(fused) == 0 {
		return fusedToOrdered(fused), false
	}
	if e.reranker == nil {
		return fusedToOrdered(fused), true
	}

	if budget > 0 && time.Since(start) >= budget {
		slog.Warn("rerank_skipped_budget_exhausted",
			slog.Duration("elapsed", time.Since(start)),
			slog.Duration("budget", budget))
		return fusedToOrdered(fused), true
	}

	// Bound the candidate set to keep scorer cost independent of corpus size.
	poolSize := e.config.RerankPoolSize
	if poolSize > len(fused) {
		poolSize = len(fused)
	}
	set := &CandidateSet{Query: query, Candidates: fused[:poolSize]}

	texts, err := e.candidateTexts(ctx, set)
	if err != nil {
		slog.Warn("rerank_degraded",
			slog.String("reason", "candidate text fetch failed"),
			slog.String("error", err.Error()))
		return fusedToOrdered(fused), true
	}

	reranked, err := e.reranker.Rerank(ctx, set, texts, 0)
	if err != nil {
		slog.Warn("rerank_degraded",
			slog.String("reason", "scorer failure"),
			slog.String("error", err.Error()))
		return fusedToOrdered(fused), true
	}

	// Reranked pool first, then the fused tail beyond the pool.
	ids := make([]string, 0, len(fused))
	scores := make([]float64, 0, len(fused))
	for _, item := range reranked {
		ids = append(ids, item.DocID)
		scores = append(scores, item.Score)
	}
	for _, r := range fused[poolSize:] {
		ids = append(ids, r.DocID)
		scores = append(scores, r.FusedScore)
	}
	return orderedResults{ids: ids, scores: scores}, false
}

// candidateTexts fetches document content for the candidate set,
// index-aligned with set.Candidates.
func (e *Engine) candidateTexts(ctx context.Context, set *CandidateSet) ([]string, error) {
	docs, err := e.metadata.GetDocuments(ctx, set.IDs())
	if err != nil {
		return nil, err
	}

	byID := make(map[string]string, len(docs))
	for _, d := range docs {
		byID[d.ID] = d.Content
	}

	texts := make([]string, len(set.Candidates))
	for i, c := range set.Candidates {
		texts[i] = byID[c.DocID]
	}
	return texts, nil
}

func (e *Engine) recordMetrics(query string, category QueryCategory, resultCount int, took time.Duration, degraded bool) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		Category:    string(category),
		ResultCount: resultCount,
		Latency:     took,
		Degraded:    degraded,
		Timestamp:   time.Now(),
	})
}

// Close releases engine resources, including the reranker if set.
// The underlying indices and metadata store are owned by the caller.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	if e.reranker != nil {
		return e.reranker.Close()
	}
	return nil
}
