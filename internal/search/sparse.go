package search

import (
	"context"
	"fmt"

	scouterrors "github.com/codescout-dev/codescout/internal/errors"
	"github.com/codescout-dev/codescout/internal/store"
)

// MethodSparse names the keyword retrieval method in ranked lists.
const MethodSparse = "sparse"

// SparseSearcher adapts a prebuilt keyword index to the RankedList
// contract. Deterministic for a fixed index and query; an empty index
// or a query with no matching terms yields an empty list, never an error.
type SparseSearcher struct {
	index  store.SparseIndex
	weight float64
}

// NewSparseSearcher wraps a sparse index.
func NewSparseSearcher(index store.SparseIndex) *SparseSearcher {
	return &SparseSearcher{index: index, weight: 1.0}
}

// SetWeight sets the fusion weight for lists this searcher produces.
func (s *SparseSearcher) SetWeight(w float64) {
	if w > 0 {
		s.weight = w
	}
}

// Search runs keyword retrieval and returns a ranked list of at most k items.
func (s *SparseSearcher) Search(ctx context.Context, query string, k int) (RankedList, error) {
	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return RankedList{}, scouterrors.RetrievalError(
			fmt.Sprintf("sparse search failed for query %q", query), err)
	}

	items := make([]RankedItem, len(hits))
	for i, h := range hits {
		items[i] = RankedItem{DocID: h.DocID, Score: h.Score, Rank: i + 1}
	}
	return RankedList{Method: MethodSparse, Weight: s.weight, Items: items}, nil
}
