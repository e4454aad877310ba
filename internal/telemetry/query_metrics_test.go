package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{25 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{250 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, LatencyToBucket(tt.d))
	}
}

func TestQueryMetrics_RecordAndSnapshot(t *testing.T) {
	m := NewQueryMetrics()

	m.Record(QueryEvent{
		Query:       "connection pooling",
		Category:    "CONCEPT",
		ResultCount: 5,
		Latency:     8 * time.Millisecond,
		Timestamp:   time.Now(),
	})
	m.Record(QueryEvent{
		Query:       "nonexistent thing",
		Category:    "DEFAULT",
		ResultCount: 0,
		Latency:     30 * time.Millisecond,
		Timestamp:   time.Now(),
	})
	m.Record(QueryEvent{
		Query:       "async handler",
		Category:    "CODE_PATTERN",
		ResultCount: 3,
		Latency:     120 * time.Millisecond,
		Degraded:    true,
		Timestamp:   time.Now(),
	})

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, int64(1), snap.DegradedCount)
	assert.Equal(t, int64(1), snap.CategoryCounts["CONCEPT"])
	assert.Equal(t, int64(1), snap.CategoryCounts["DEFAULT"])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP50])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP500])
	assert.Equal(t, []string{"nonexistent thing"}, snap.ZeroResultQueries)
	assert.InDelta(t, 33.33, snap.ZeroResultPercentage(), 0.1)
}

func TestCircularBuffer_Eviction(t *testing.T) {
	b := NewCircularBuffer[int](3)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}

	assert.Equal(t, 3, b.Size())
	assert.Equal(t, []int{3, 4, 5}, b.Items())
}

func TestCircularBuffer_Empty(t *testing.T) {
	b := NewCircularBuffer[string](2)
	assert.Empty(t, b.Items())
	assert.Zero(t, b.Size())
}

func TestExtractTerms(t *testing.T) {
	assert.Equal(t, []string{"connection", "pooling"}, ExtractTerms("Connection Pooling"))
	assert.Nil(t, ExtractTerms(""))
	assert.Nil(t, ExtractTerms("a b"))
}

func TestQueryMetrics_TopTerms(t *testing.T) {
	m := NewQueryMetrics()
	for i := 0; i < 3; i++ {
		m.Record(QueryEvent{Query: "fusion algorithm", Category: "CONCEPT", ResultCount: 1})
	}

	snap := m.Snapshot()
	counts := make(map[string]int64)
	for _, tc := range snap.TopTerms {
		counts[tc.Term] = tc.Count
	}
	assert.Equal(t, int64(3), counts["fusion"])
	assert.Equal(t, int64(3), counts["algorithm"])
	require.Equal(t, int64(3), snap.TotalQueries)
}
