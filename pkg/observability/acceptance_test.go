package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
)

// acceptanceSpanCount is the expected number of spans in the acceptance test
// (root + tier lookup + traversal).
const acceptanceSpanCount = 3

// acceptanceVisitCount is the simulated BFS visit count used in log assertions.
const acceptanceVisitCount = 42

// TestAcceptance_EndToEnd verifies all three observability signals (traces,
// metrics, structured logs with trace context) work together across a
// simulated cache lookup and traversal run.
func TestAcceptance_EndToEnd(t *testing.T) {
	t.Parallel()

	// Setup: in-memory trace exporter.
	spanExporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanExporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("testintel")

	// Setup: in-memory metric reader.
	metricReader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	meter := mp.Meter("testintel")

	red, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	cacheMetrics, err := observability.NewCacheMetrics(meter)
	require.NoError(t, err)

	// Setup: structured logger with trace context.
	var logBuf bytes.Buffer

	innerHandler := slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	tracingHandler := observability.NewTracingHandler(innerHandler, "testintel", "test", observability.ModeLibrary)
	logger := slog.New(tracingHandler)

	// Simulate a cache-backed traversal: root span, child spans, metrics, logs.
	ctx, rootSpan := tracer.Start(context.Background(), "cache.traversal.run")

	_, tierSpan := tracer.Start(ctx, "cache.tier.lookup")
	tierSpan.End()

	_, bfsSpan := tracer.Start(ctx, "cache.traversal.bfs")
	bfsSpan.End()

	// Record metrics within the trace context.
	red.RecordRequest(ctx, "traversal.run", "ok", time.Second)

	cacheMetrics.RecordTier(ctx, observability.CacheTierStats{
		Tier:     "l2_shared",
		Hits:     100,
		Misses:   10,
		Duration: 50 * time.Millisecond,
	})
	cacheMetrics.RecordTraversalVisits(ctx, "forward", acceptanceVisitCount)

	// Emit a log line within the trace context.
	logger.InfoContext(ctx, "traversal.complete", "nodes_visited", acceptanceVisitCount)

	rootSpan.End()

	// Assert: Traces.
	spans := spanExporter.GetSpans()
	require.Len(t, spans, acceptanceSpanCount, "expected root + 2 child spans")

	spanNames := make(map[string]bool, len(spans))
	for _, s := range spans {
		spanNames[s.Name] = true
	}

	assert.True(t, spanNames["cache.traversal.run"], "root span should exist")
	assert.True(t, spanNames["cache.tier.lookup"], "tier lookup span should exist")
	assert.True(t, spanNames["cache.traversal.bfs"], "bfs span should exist")

	// All spans share the same trace ID.
	traceID := spans[0].SpanContext.TraceID()
	for _, s := range spans[1:] {
		assert.Equal(t, traceID, s.SpanContext.TraceID(),
			"span %q should share trace ID", s.Name)
	}

	// Assert: Metrics.
	var rm metricdata.ResourceMetrics

	err = metricReader.Collect(ctx, &rm)
	require.NoError(t, err)

	reqTotal := findMetric(rm, "testintel.requests.total")
	require.NotNil(t, reqTotal, "request counter should be recorded")

	reqDuration := findMetric(rm, "testintel.request.duration.seconds")
	require.NotNil(t, reqDuration, "duration histogram should be recorded")

	// Assert: cache metrics.
	hitsTotal := findMetric(rm, "testintel.cache.hits.total")
	require.NotNil(t, hitsTotal, "cache hits counter should be recorded")

	missesTotal := findMetric(rm, "testintel.cache.misses.total")
	require.NotNil(t, missesTotal, "cache misses counter should be recorded")

	lookupDuration := findMetric(rm, "testintel.cache.lookup.duration.seconds")
	require.NotNil(t, lookupDuration, "lookup duration histogram should be recorded")

	visits := findMetric(rm, "testintel.traversal.nodes_visited.total")
	require.NotNil(t, visits, "traversal visit counter should be recorded")

	// Assert: Logs contain trace_id.
	var logRecord map[string]any

	err = json.Unmarshal(logBuf.Bytes(), &logRecord)
	require.NoError(t, err)

	assert.Equal(t, traceID.String(), logRecord["trace_id"],
		"log line should contain the active trace_id")
	assert.Contains(t, logRecord, "span_id",
		"log line should contain span_id")
	assert.Equal(t, "testintel", logRecord["service"],
		"log line should contain service name")

	visitsLogged, ok := logRecord["nodes_visited"].(float64)
	require.True(t, ok, "nodes_visited should be a number")
	assert.InDelta(t, acceptanceVisitCount, visitsLogged, 0,
		"log line should contain custom attributes")
}
