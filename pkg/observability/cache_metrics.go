package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricLookupsTotal    = "testintel.cache.lookups.total"
	metricHitsTotal       = "testintel.cache.hits.total"
	metricMissesTotal     = "testintel.cache.misses.total"
	metricEvictionsTotal  = "testintel.cache.evictions.total"
	metricLookupDuration  = "testintel.cache.lookup.duration.seconds"
	metricTraversalVisits = "testintel.traversal.nodes_visited.total"

	attrTier = "tier"
)

// CacheMetrics holds OTel instruments shared by the blob store, compilation
// cache tiers, and syntax tree pool.
type CacheMetrics struct {
	lookupsTotal   metric.Int64Counter
	hitsTotal      metric.Int64Counter
	missesTotal    metric.Int64Counter
	evictionsTotal metric.Int64Counter
	lookupDuration metric.Float64Histogram
	traversalNodes metric.Int64Counter
}

// CacheTierStats summarizes one read-through check against a single cache tier.
type CacheTierStats struct {
	Tier      string
	Hits      int64
	Misses    int64
	Evictions int64
	Duration  time.Duration
}

// NewCacheMetrics creates cache metric instruments from the given meter.
func NewCacheMetrics(mt metric.Meter) (*CacheMetrics, error) {
	lookups, err := mt.Int64Counter(metricLookupsTotal,
		metric.WithDescription("Total cache lookups by tier"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLookupsTotal, err)
	}

	hits, err := mt.Int64Counter(metricHitsTotal,
		metric.WithDescription("Cache hits by tier"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricHitsTotal, err)
	}

	misses, err := mt.Int64Counter(metricMissesTotal,
		metric.WithDescription("Cache misses by tier"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricMissesTotal, err)
	}

	evictions, err := mt.Int64Counter(metricEvictionsTotal,
		metric.WithDescription("Cache evictions by tier"),
		metric.WithUnit("{eviction}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricEvictionsTotal, err)
	}

	lookupDur, err := mt.Float64Histogram(metricLookupDuration,
		metric.WithDescription("Per-tier lookup duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLookupDuration, err)
	}

	visits, err := mt.Int64Counter(metricTraversalVisits,
		metric.WithDescription("Total call graph nodes visited during BFS traversal"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricTraversalVisits, err)
	}

	return &CacheMetrics{
		lookupsTotal:   lookups,
		hitsTotal:      hits,
		missesTotal:    misses,
		evictionsTotal: evictions,
		lookupDuration: lookupDur,
		traversalNodes: visits,
	}, nil
}

// RecordTier records one read-through check against a single cache tier.
// Safe to call on a nil receiver (no-op).
func (cm *CacheMetrics) RecordTier(ctx context.Context, stats CacheTierStats) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrTier, stats.Tier))

	cm.lookupsTotal.Add(ctx, stats.Hits+stats.Misses, attrs)
	cm.hitsTotal.Add(ctx, stats.Hits, attrs)
	cm.missesTotal.Add(ctx, stats.Misses, attrs)
	cm.evictionsTotal.Add(ctx, stats.Evictions, attrs)
	cm.lookupDuration.Record(ctx, stats.Duration.Seconds(), attrs)
}

// RecordTraversalVisits records the number of call graph nodes visited
// during a single BFS traversal call.
func (cm *CacheMetrics) RecordTraversalVisits(ctx context.Context, direction string, count int64) {
	if cm == nil {
		return
	}

	cm.traversalNodes.Add(ctx, count, metric.WithAttributes(attribute.String("direction", direction)))
}
