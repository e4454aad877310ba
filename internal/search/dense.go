package search

import (
	"context"
	"fmt"

	"github.com/codescout-dev/codescout/internal/embed"
	scouterrors "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/store"
)

// MethodDense names the vector retrieval method in ranked lists.
const MethodDense = "dense"

// DenseSearcher adapts an embedder plus a prebuilt vector index to the
// RankedList contract. An empty vector index yields an empty list; an
// embedding failure is a signaled error because it means the retrieval
// path itself is unusable, not that nothing matched.
type DenseSearcher struct {
	embedder embed.Embedder
	vectors  store.VectorStore
	weight   float64
}

// NewDenseSearcher wraps an embedder and a vector store.
func NewDenseSearcher(embedder embed.Embedder, vectors store.VectorStore) *DenseSearcher {
	return &DenseSearcher{embedder: embedder, vectors: vectors, weight: 1.0}
}

// SetWeight sets the fusion weight for lists this searcher produces.
func (d *DenseSearcher) SetWeight(w float64) {
	if w > 0 {
		d.weight = w
	}
}

// Search encodes the query and returns the k nearest documents by
// similarity, best-first.
func (d *DenseSearcher) Search(ctx context.Context, query string, k int) (RankedList, error) {
	if d.vectors.Count() == 0 {
		return RankedList{Method: MethodDense, Weight: d.weight, Items: []RankedItem{}}, nil
	}

	vec, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return RankedList{}, scouterrors.New(scouterrors.ErrCodeEmbedFailed,
			fmt.Sprintf("failed to embed query %q", query), err)
	}
	if len(vec) == 0 {
		return RankedList{}, scouterrors.New(scouterrors.ErrCodeEmbedFailed,
			"embedder returned an empty vector", nil)
	}

	hits, err := d.vectors.Search(ctx, vec, k)
	if err != nil {
		return RankedList{}, scouterrors.RetrievalError(
			fmt.Sprintf("dense search failed for query %q", query), err)
	}

	items := make([]RankedItem, len(hits))
	for i, h := range hits {
		items[i] = RankedItem{DocID: h.ID, Score: float64(h.Score), Rank: i + 1}
	}
	return RankedList{Method: MethodDense, Weight: d.weight, Items: items}, nil
}
