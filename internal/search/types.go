// Package search implements adaptive multi-strategy retrieval: query
// classification, sparse and dense retrieval, reciprocal rank fusion,
// and optional cross-encoder reranking, orchestrated by a category-keyed
// pipeline router.
package search

import (
	"context"
	"time"

	"github.com/codescout-dev/codescout/internal/store"
)

// QueryCategory is the classification assigned to a search query.
// The enumeration is closed: every input string maps to exactly one value.
type QueryCategory string

const (
	// CategorySpecificTerm marks short identifier-like queries
	// (CamelCase, snake_case, dotted names).
	CategorySpecificTerm QueryCategory = "SPECIFIC_TERM"

	// CategoryHowTo marks interrogative queries ("how to add middleware").
	CategoryHowTo QueryCategory = "HOW_TO"

	// CategoryConcept marks short multi-word conceptual queries
	// ("dependency injection", "error handling strategy").
	CategoryConcept QueryCategory = "CONCEPT"

	// CategoryCodePattern marks queries about code constructs
	// ("async generator", "decorator pattern", "handler(ctx)").
	CategoryCodePattern QueryCategory = "CODE_PATTERN"

	// CategoryDefault is the fallback for everything else, including
	// empty input.
	CategoryDefault QueryCategory = "DEFAULT"
)

// Categories lists all valid query categories.
func Categories() []QueryCategory {
	return []QueryCategory{
		CategorySpecificTerm,
		CategoryHowTo,
		CategoryConcept,
		CategoryCodePattern,
		CategoryDefault,
	}
}

// ValidCategory reports whether c is a member of the closed enumeration.
func ValidCategory(c QueryCategory) bool {
	switch c {
	case CategorySpecificTerm, CategoryHowTo, CategoryConcept, CategoryCodePattern, CategoryDefault:
		return true
	}
	return false
}

// RankedItem is one entry of a RankedList.
type RankedItem struct {
	// DocID is the stable document identifier.
	DocID string

	// Score is the method-specific relevance score. Scores from
	// different retrieval methods are not comparable.
	Score float64

	// Rank is the 1-based position within the list.
	Rank int
}

// RankedList is the ordered output of one retrieval method.
// Ranks are contiguous starting at 1 with no duplicate document ids.
type RankedList struct {
	// Method identifies the producing retrieval method ("sparse", "dense").
	Method string

	// Weight scales this list's contribution during fusion (default 1.0).
	Weight float64

	// Items are ordered best-first.
	Items []RankedItem
}

// NewRankedList builds a RankedList from ordered document ids and scores,
// assigning contiguous 1-based ranks.
func NewRankedList(method string, ids []string, scores []float64) RankedList {
	items := make([]RankedItem, len(ids))
	for i, id := range ids {
		items[i] = RankedItem{DocID: id, Score: scores[i], Rank: i + 1}
	}
	return RankedList{Method: method, Weight: 1.0, Items: items}
}

// FusedResult is a single rank-fused result. Fused scores are rank-based
// and comparable across retrieval methods.
type FusedResult struct {
	// DocID is the document identifier.
	DocID string

	// FusedScore is the summed reciprocal-rank contribution.
	FusedScore float64

	// MinRank is the lowest (best) rank this document held in any
	// contributing list; used as the deterministic tie-break.
	MinRank int

	// SourceRanks maps method name to the document's rank in that
	// method's list (absent methods omitted).
	SourceRanks map[string]int
}

// CandidateSet is the bounded prefix of a fused list handed to the
// reranker. Membership is fixed: the reranker may permute or truncate
// but never add or remove ids.
type CandidateSet struct {
	// Query is the original query text.
	Query string

	// Candidates are the top-N fused results, best-first.
	Candidates []*FusedResult
}

// IDs returns the candidate document ids in order.
func (c *CandidateSet) IDs() []string {
	ids := make([]string, len(c.Candidates))
	for i, r := range c.Candidates {
		ids[i] = r.DocID
	}
	return ids
}

// Stage names a pipeline step.
type Stage string

const (
	StageSparse Stage = "sparse"
	StageDense  Stage = "dense"
	StageFuse   Stage = "fuse"
	StageRerank Stage = "rerank"
)

// PipelineSpec is a tagged description of which retrieval stages to run
// for a query category. It is data, not control flow, so the
// category-to-pipeline mapping stays inspectable and tunable.
type PipelineSpec struct {
	// Sparse enables keyword retrieval.
	Sparse bool

	// Dense enables vector retrieval.
	Dense bool

	// Rerank enables cross-encoder reranking of the fused top slice.
	Rerank bool
}

// Stages returns the ordered stage list this spec executes.
func (p PipelineSpec) Stages() []Stage {
	var stages []Stage
	if p.Sparse {
		stages = append(stages, StageSparse)
	}
	if p.Dense {
		stages = append(stages, StageDense)
	}
	if p.Sparse && p.Dense {
		stages = append(stages, StageFuse)
	}
	if p.Rerank {
		stages = append(stages, StageRerank)
	}
	return stages
}

// Valid reports whether at least one retrieval method is enabled.
func (p PipelineSpec) Valid() bool {
	return p.Sparse || p.Dense
}

// String returns the canonical pipeline name used in configuration
// files and logs.
func (p PipelineSpec) String() string {
	switch {
	case p.Sparse && p.Dense && p.Rerank:
		return "sparse_dense_fuse_rerank"
	case p.Sparse && p.Dense:
		return "sparse_dense_fuse"
	case p.Dense:
		return "dense_only"
	case p.Sparse:
		return "sparse_only"
	default:
		return "none"
	}
}

// Named pipeline variants used by the default routing table.
var (
	// PipelineSparseDenseFuse is the safe moderate-cost default.
	PipelineSparseDenseFuse = PipelineSpec{Sparse: true, Dense: true}

	// PipelineDenseOnly skips keyword retrieval entirely.
	PipelineDenseOnly = PipelineSpec{Dense: true}

	// PipelineSparseOnly skips vector retrieval entirely.
	PipelineSparseOnly = PipelineSpec{Sparse: true}

	// PipelineFullRerank runs both methods, fuses, and reranks.
	PipelineFullRerank = PipelineSpec{Sparse: true, Dense: true, Rerank: true}
)

// RoutingTable maps query categories to pipelines. The mapping is an
// empirical tuning artifact and is loaded from configuration rather
// than hard-coded; see DefaultRoutingTable for the shipped baseline.
type RoutingTable map[QueryCategory]PipelineSpec

// DefaultRoutingTable returns the evaluated per-category baseline.
// Reranking is disabled for how-to queries: evaluation showed it
// reorders good fused results downward for that category.
func DefaultRoutingTable() RoutingTable {
	return RoutingTable{
		CategoryHowTo:        PipelineSparseDenseFuse,
		CategorySpecificTerm: PipelineDenseOnly,
		CategoryConcept:      PipelineFullRerank,
		CategoryCodePattern:  PipelineFullRerank,
		CategoryDefault:      PipelineSparseDenseFuse,
	}
}

// Resolve returns the pipeline for a category, falling back to the
// DEFAULT entry, then to the safe baseline pipeline.
func (t RoutingTable) Resolve(c QueryCategory) PipelineSpec {
	if p, ok := t[c]; ok && p.Valid() {
		return p
	}
	if p, ok := t[CategoryDefault]; ok && p.Valid() {
		return p
	}
	return PipelineSparseDenseFuse
}

// SearchOptions configures one query.
type SearchOptions struct {
	// Limit is the maximum number of results to return (default: 10, max: 100).
	Limit int

	// CategoryOverride forces a category, bypassing classification.
	// Empty means classify normally.
	CategoryOverride QueryCategory

	// LatencyBudget bounds total query time. If elapsed time exceeds
	// the budget before the rerank stage begins, reranking is skipped
	// and the fused order is returned. Zero means no budget.
	LatencyBudget time.Duration

	// DisableRerank drops the rerank stage from whatever pipeline the
	// routing table selects. An explicit opt-out is not degradation.
	DisableRerank bool
}

// SearchResult is one materialized result at the outward boundary.
type SearchResult struct {
	// DocID is the document identifier.
	DocID string

	// Score is the final ordering score (fused or reranker score,
	// depending on the executed pipeline).
	Score float64

	// Snippet is the display text.
	Snippet string

	// FilePath and the line range locate the source.
	FilePath  string
	StartLine int
	EndLine   int
}

// SearchResponse is the full outward answer for one query.
type SearchResponse struct {
	// Results are ordered best-first.
	Results []*SearchResult

	// Category is the classification the router acted on.
	Category QueryCategory

	// Pipeline is the executed pipeline.
	Pipeline PipelineSpec

	// Degraded is true when reranking was planned but skipped or
	// failed; results then carry the pre-rerank fused order.
	Degraded bool

	// Took is the total query duration.
	Took time.Duration
}

// Searcher is the outward boundary of the retrieval core.
type Searcher interface {
	// Search answers a query with ranked, materialized results.
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)

	// Close releases all resources.
	Close() error
}

// Classifier assigns a category to a query string.
type Classifier interface {
	// Classify is total: every string, including empty input, maps to
	// exactly one category.
	Classify(query string) QueryCategory
}

// Scorer computes pairwise query-document relevance. Used only by the
// reranker; scores are not comparable to fusion scores.
type Scorer interface {
	// Score returns one relevance score per document, index-aligned
	// with the input.
	Score(ctx context.Context, query string, documents []string) ([]float64, error)

	// Available checks if the scorer service is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// EngineConfig configures the adaptive router.
type EngineConfig struct {
	// DefaultLimit is the default number of results (default: 10).
	DefaultLimit int

	// MaxLimit is the maximum allowed results (default: 100).
	MaxLimit int

	// RRFConstant is the fusion smoothing constant k (default: 60).
	RRFConstant int

	// RerankPoolSize bounds the candidate set handed to the reranker
	// (default: 50).
	RerankPoolSize int

	// Routes maps categories to pipelines (default: DefaultRoutingTable).
	Routes RoutingTable

	// SearchTimeout is the maximum search duration (default: 5s).
	SearchTimeout time.Duration
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:   10,
		MaxLimit:       100,
		RRFConstant:    DefaultRRFConstant,
		RerankPoolSize: 50,
		Routes:         DefaultRoutingTable(),
		SearchTimeout:  5 * time.Second,
	}
}

// materialize joins ordered (id, score) pairs against document metadata.
func materialize(ctx context.Context, meta store.MetadataStore, ids []string, scores []float64) ([]*SearchResult, error) {
	if len(ids) == 0 {
		return []*SearchResult{}, nil
	}

	docs, err := meta.GetDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*store.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	results := make([]*SearchResult, 0, len(ids))
	for i, id := range ids {
		doc, ok := byID[id]
		if !ok {
			// Indexed but missing metadata; skip rather than fail the query.
			continue
		}
		results = append(results, &SearchResult{
			DocID:     id,
			Score:     scores[i],
			Snippet:   doc.DisplaySnippet(),
			FilePath:  doc.FilePath,
			StartLine: doc.StartLine,
			EndLine:   doc.EndLine,
		})
	}
	return results, nil
}
