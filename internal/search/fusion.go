package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, etc.).
const DefaultRRFConstant = 60

// RRFFusion merges ranked lists using Reciprocal Rank Fusion.
//
// Algorithm: fused_score(d) = Σ over lists containing d of weight_i / (rank_i + k)
//
// Rank-based fusion is used instead of score blending because sparse and
// dense raw scores live on incomparable scales; RRF needs no
// normalization and rewards cross-method agreement.
type RRFFusion struct {
	K int // smoothing constant (default: 60)
}

// NewRRFFusion creates a fusion instance with default k=60.
func NewRRFFusion() *RRFFusion {
	return &RRFFusion{K: DefaultRRFConstant}
}

// NewRRFFusionWithK creates a fusion instance with custom k.
// If k <= 0, defaults to 60.
func NewRRFFusionWithK(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges any number of ranked lists into one fused ranking.
//
// Each document scores the sum of weight/(rank+k) over the lists that
// contain it; absence from a list contributes zero, never an error. The
// output contains the union of input document ids, sorted by fused
// score descending with ties broken by lowest minimum rank across the
// input lists, then lexicographic document id. The result is invariant
// to the order in which lists are passed.
func (f *RRFFusion) Fuse(lists ...RankedList) []*FusedResult {
	scores := make(map[string]*FusedResult)

	for _, list := range lists {
		weight := list.Weight
		if weight <= 0 {
			weight = 1.0
		}
		for _, item := range list.Items {
			r, ok := scores[item.DocID]
			if !ok {
				r = &FusedResult{
					DocID:       item.DocID,
					MinRank:     item.Rank,
					SourceRanks: make(map[string]int, len(lists)),
				}
				scores[item.DocID] = r
			}
			r.FusedScore += weight / float64(item.Rank+f.K)
			r.SourceRanks[list.Method] = item.Rank
			if item.Rank < r.MinRank {
				r.MinRank = item.Rank
			}
		}
	}

	// Empty slice, not nil, for consistent API behavior.
	results := make([]*FusedResult, 0, len(scores))
	for _, r := range scores {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		return fusedLess(results[i], results[j])
	})

	return results
}

// fusedLess implements the deterministic ordering.
// Returns true if a should rank before b.
//
// Priority:
//  1. Higher fused score
//  2. Lower minimum rank across input lists
//  3. Lexicographically smaller document id
func fusedLess(a, b *FusedResult) bool {
	if a.FusedScore != b.FusedScore {
		return a.FusedScore > b.FusedScore
	}
	if a.MinRank != b.MinRank {
		return a.MinRank < b.MinRank
	}
	return a.DocID < b.DocID
}
