package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// posting records one document's term frequency for a term.
type posting struct {
	docID string
	tf    int
}

// MemorySparseIndex is an in-memory inverted index scored with BM25.
//
// Score for document d and query terms t:
//
//	score(d) = Σ idf(t) * tf(t,d)*(k1+1) / (tf(t,d) + k1*(1 - b + b*len(d)/avgLen))
//	idf(t)   = ln(1 + (N - df(t) + 0.5) / (df(t) + 0.5))
//
// K1 controls term-frequency saturation, B controls length normalization.
// Deterministic for a fixed index and query: ties sort by document ID.
// Thread-safe; reads take a shared lock and never block each other.
type MemorySparseIndex struct {
	mu        sync.RWMutex
	config    SparseConfig
	postings  map[string][]posting // term -> postings
	docLen    map[string]int       // docID -> token count
	totalLen  int
	stopWords map[string]struct{}
	closed    bool
}

// NewMemorySparseIndex creates an empty in-memory BM25 index.
func NewMemorySparseIndex(config SparseConfig) *MemorySparseIndex {
	if config.K1 <= 0 {
		config.K1 = 1.2
	}
	if config.B < 0 || config.B > 1 {
		config.B = 0.75
	}
	if config.MinTokenLength <= 0 {
		config.MinTokenLength = 2
	}
	return &MemorySparseIndex{
		config:    config,
		postings:  make(map[string][]posting),
		docLen:    make(map[string]int),
		stopWords: BuildStopWordMap(config.StopWords),
	}
}

// Index adds documents to the index. Re-indexing an existing ID replaces it.
func (m *MemorySparseIndex) Index(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	for _, doc := range docs {
		if _, exists := m.docLen[doc.ID]; exists {
			m.removeLocked(doc.ID)
		}

		tokens := m.analyze(doc.Content)
		if len(tokens) == 0 {
			continue
		}

		freq := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freq[t]++
		}
		for term, tf := range freq {
			m.postings[term] = append(m.postings[term], posting{docID: doc.ID, tf: tf})
		}
		m.docLen[doc.ID] = len(tokens)
		m.totalLen += len(tokens)
	}

	return nil
}

// Search returns up to limit documents matching the query, best first.
// An empty index or a query with no matching terms returns an empty slice.
func (m *MemorySparseIndex) Search(ctx context.Context, query string, limit int) ([]*SparseResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := m.analyze(query)
	if len(terms) == 0 || len(m.docLen) == 0 {
		return []*SparseResult{}, nil
	}

	// Deduplicate query terms; repeated terms do not double-count.
	seen := make(map[string]struct{}, len(terms))
	n := float64(len(m.docLen))
	avgLen := float64(m.totalLen) / n

	scores := make(map[string]float64)
	matched := make(map[string][]string)

	for _, term := range terms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		plist, ok := m.postings[term]
		if !ok {
			continue
		}

		df := float64(len(plist))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))

		for _, p := range plist {
			tf := float64(p.tf)
			norm := 1 - m.config.B + m.config.B*float64(m.docLen[p.docID])/avgLen
			scores[p.docID] += idf * tf * (m.config.K1 + 1) / (tf + m.config.K1*norm)
			matched[p.docID] = append(matched[p.docID], term)
		}
	}

	if len(scores) == 0 {
		return []*SparseResult{}, nil
	}

	results := make([]*SparseResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, &SparseResult{
			DocID:        id,
			Score:        score,
			MatchedTerms: matched[id],
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes documents from the index.
func (m *MemorySparseIndex) Delete(ctx context.Context, docIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("index is closed")
	}

	for _, id := range docIDs {
		m.removeLocked(id)
	}
	return nil
}

// removeLocked erases one document. Caller holds the write lock.
func (m *MemorySparseIndex) removeLocked(docID string) {
	length, exists := m.docLen[docID]
	if !exists {
		return
	}
	for term, plist := range m.postings {
		kept := plist[:0]
		for _, p := range plist {
			if p.docID != docID {
				kept = append(kept, p)
			}
		}
		if len(kept) == 0 {
			delete(m.postings, term)
		} else {
			m.postings[term] = kept
		}
	}
	delete(m.docLen, docID)
	m.totalLen -= length
}

// Stats returns index statistics.
func (m *MemorySparseIndex) Stats() *SparseStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &SparseStats{
		DocumentCount: len(m.docLen),
		TermCount:     len(m.postings),
	}
	if len(m.docLen) > 0 {
		stats.AvgDocLength = float64(m.totalLen) / float64(len(m.docLen))
	}
	return stats
}

// Close releases resources.
func (m *MemorySparseIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.postings = nil
	m.docLen = nil
	return nil
}

// analyze tokenizes text with code-aware rules and drops stop words.
func (m *MemorySparseIndex) analyze(text string) []string {
	tokens := TokenizeCode(text)
	kept := tokens[:0]
	for _, t := range tokens {
		if len(t) < m.config.MinTokenLength {
			continue
		}
		if _, isStop := m.stopWords[t]; isStop {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// Verify interface implementation.
var _ SparseIndex = (*MemorySparseIndex)(nil)
