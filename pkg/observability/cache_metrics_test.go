package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
)

func TestCacheMetrics_RecordTier(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	cm, err := observability.NewCacheMetrics(meter)
	require.NoError(t, err)

	cm.RecordTier(context.Background(), observability.CacheTierStats{
		Tier:     "l1_memory",
		Hits:     10,
		Misses:   3,
		Duration: 5 * time.Millisecond,
	})
	cm.RecordTier(context.Background(), observability.CacheTierStats{
		Tier:     "l3_disk",
		Hits:     2,
		Misses:   1,
		Duration: 40 * time.Millisecond,
	})

	rm := collectMetrics(t, reader)

	hits := findMetric(rm, "testintel.cache.hits.total")
	require.NotNil(t, hits, "testintel.cache.hits.total metric not found")

	misses := findMetric(rm, "testintel.cache.misses.total")
	require.NotNil(t, misses, "testintel.cache.misses.total metric not found")

	lookups := findMetric(rm, "testintel.cache.lookups.total")
	require.NotNil(t, lookups, "testintel.cache.lookups.total metric not found")
}

func TestCacheMetrics_NilReceiverIsNoop(t *testing.T) {
	t.Parallel()

	var cm *observability.CacheMetrics

	assert.NotPanics(t, func() {
		cm.RecordTier(context.Background(), observability.CacheTierStats{Tier: "l1_memory"})
		cm.RecordTraversalVisits(context.Background(), "forward", 5)
	})
}

func TestCacheMetrics_RecordTraversalVisits(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	cm, err := observability.NewCacheMetrics(meter)
	require.NoError(t, err)

	cm.RecordTraversalVisits(context.Background(), "reverse", 12)

	rm := collectMetrics(t, reader)

	visits := findMetric(rm, "testintel.traversal.nodes_visited.total")
	require.NotNil(t, visits, "testintel.traversal.nodes_visited.total metric not found")

	sum, ok := visits.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum data type for traversal visits")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(12), sum.DataPoints[0].Value)
}
