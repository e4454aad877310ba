// Package telemetry collects per-query retrieval metrics for pipeline
// tuning. All data stays in process memory; nothing is reported externally.
package telemetry

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent records one completed search query.
type QueryEvent struct {
	Query       string
	Category    string
	ResultCount int
	Latency     time.Duration
	// Degraded is true when reranking was planned but skipped (latency
	// budget) or failed (scorer error); the query still succeeded with
	// the fused order.
	Degraded  bool
	Timestamp time.Time
}

// IsZeroResult returns true if this query returned no results.
func (e QueryEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Snapshot is an immutable view of collected metrics.
type Snapshot struct {
	CategoryCounts      map[string]int64        `json:"category_counts"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	DegradedCount       int64                   `json:"degraded_count"`
	TopTerms            []TermCount             `json:"top_terms"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the percentage of zero-result queries.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// TermCount pairs a query term with its observed frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Config configures the metrics collector.
type Config struct {
	TopTermsCapacity    int // max terms to track (default: 100)
	ZeroResultsCapacity int // max zero-result queries to keep (default: 100)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
	}
}

// QueryMetrics aggregates query telemetry. Thread-safe.
type QueryMetrics struct {
	mu sync.RWMutex

	categories    map[string]int64
	latencies     map[LatencyBucket]int64
	topTerms      *lru.Cache[string, int64]
	zeroResults   *CircularBuffer[string]
	totalQueries  int64
	zeroCount     int64
	degradedCount int64
	startTime     time.Time
}

// NewQueryMetrics creates a collector with default configuration.
func NewQueryMetrics() *QueryMetrics {
	return NewQueryMetricsWithConfig(DefaultConfig())
}

// NewQueryMetricsWithConfig creates a collector with custom configuration.
func NewQueryMetricsWithConfig(cfg Config) *QueryMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	terms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	return &QueryMetrics{
		categories:  make(map[string]int64),
		latencies:   make(map[LatencyBucket]int64),
		topTerms:    terms,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		startTime:   time.Now(),
	}
}

// Record ingests one query event.
func (m *QueryMetrics) Record(e QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalQueries++
	m.categories[e.Category]++
	m.latencies[LatencyToBucket(e.Latency)]++

	if e.Degraded {
		m.degradedCount++
	}
	if e.IsZeroResult() {
		m.zeroCount++
		m.zeroResults.Add(e.Query)
	}

	for _, term := range ExtractTerms(e.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}
}

// Snapshot returns an immutable copy of the current aggregates.
func (m *QueryMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	categories := make(map[string]int64, len(m.categories))
	for k, v := range m.categories {
		categories[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	terms := make([]TermCount, 0, m.topTerms.Len())
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: count})
		}
	}

	return &Snapshot{
		CategoryCounts:      categories,
		LatencyDistribution: latencies,
		ZeroResultQueries:   m.zeroResults.Items(),
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroCount,
		DegradedCount:       m.degradedCount,
		TopTerms:            terms,
		Since:               m.startTime,
	}
}

// ExtractTerms extracts searchable terms from a query string.
// Terms are lowercased and filtered to minimum length 3.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 {
		return nil
	}
	return terms
}
