// Package store provides the prebuilt retrieval indices the engine reads:
// a sparse (BM25) term index, an HNSW vector store, and SQLite-backed
// document metadata. Index construction happens offline; at query time all
// access is read-only and safe for unbounded concurrent readers.
package store

import (
	"context"
	"fmt"
)

// Document is a retrievable unit of content produced by offline ingestion.
// Immutable once indexed.
type Document struct {
	ID        string    // stable key
	Content   string    // indexable text
	Snippet   string    // display text (falls back to Content if empty)
	FilePath  string    // source file relative to corpus root
	StartLine int       // 1-indexed
	EndLine   int       // inclusive
	Vector    []float32 // precomputed embedding, may be nil for sparse-only corpora
}

// DisplaySnippet returns the snippet, falling back to the indexed content.
func (d *Document) DisplaySnippet() string {
	if d.Snippet != "" {
		return d.Snippet
	}
	return d.Content
}

// SparseResult is a single keyword search result.
type SparseResult struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// SparseStats provides statistics about the sparse index.
type SparseStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// SparseIndex provides keyword search using BM25 scoring.
type SparseIndex interface {
	// Index adds documents to the index.
	Index(ctx context.Context, docs []*Document) error

	// Search returns documents matching query, scored by BM25, best first.
	// An empty index or a query with no matching terms returns an empty
	// slice, never an error.
	Search(ctx context.Context, query string, limit int) ([]*SparseResult, error)

	// Delete removes documents from the index.
	Delete(ctx context.Context, docIDs []string) error

	// Stats returns index statistics.
	Stats() *SparseStats

	// Close releases resources.
	Close() error
}

// SparseConfig configures BM25 scoring.
type SparseConfig struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64

	// StopWords is a list of words to filter out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultSparseConfig returns default BM25 configuration.
func DefaultSparseConfig() SparseConfig {
	return SparseConfig{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords contains programming keywords that carry no ranking signal.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// VectorResult is a single vector search result.
type VectorResult struct {
	ID       string  // document ID
	Distance float32 // lower is more similar (0-2 for cosine)
	Score    float32 // normalized similarity (0-1)
}

// VectorConfig configures the vector store.
type VectorConfig struct {
	// Dimensions is the vector dimension.
	Dimensions int

	// Metric is the distance metric: "cos" (cosine) or "l2" (euclidean).
	Metric string

	// M is HNSW max connections per layer (default: 16).
	M int

	// EfSearch is HNSW query-time search width (default: 20).
	EfSearch int
}

// DefaultVectorConfig returns sensible defaults for the vector store.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// VectorStore provides nearest-neighbor search over document vectors.
type VectorStore interface {
	// Add inserts vectors with their IDs. If an ID exists, it is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Search finds the k nearest neighbors to the query vector, best first.
	// An empty store returns an empty slice, never an error.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)

	// Delete removes vectors by ID.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of vectors.
	Count() int

	// Persistence.
	Save(path string) error
	Load(path string) error
	Close() error
}

// MetadataStore persists document metadata used to materialize final results.
type MetadataStore interface {
	// SaveDocuments upserts document metadata.
	SaveDocuments(ctx context.Context, docs []*Document) error

	// GetDocument fetches a single document by ID.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// GetDocuments fetches documents by ID in a single query.
	// Missing IDs are silently absent from the result.
	GetDocuments(ctx context.Context, ids []string) ([]*Document, error)

	// AllDocuments returns every stored document ordered by ID.
	AllDocuments(ctx context.Context) ([]*Document, error)

	// DeleteDocuments removes documents by ID.
	DeleteDocuments(ctx context.Context, ids []string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// ErrDimensionMismatch indicates a vector dimension mismatch between the
// query embedding and the stored index.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
