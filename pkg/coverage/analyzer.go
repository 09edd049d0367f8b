package coverage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/traversal"
)

// Analyzer is CoverageAnalyzer: it answers "which tests cover this method"
// and "how much of this change is covered" questions against a call graph
// kept current by a CallGraphCache and a CallGraphBuilder collaborator.
type Analyzer struct {
	cache      *callgraph.Cache
	builder    CallGraphBuilder
	traversal  *traversal.Traversal
	classifier *traversal.Classifier
	logger     *slog.Logger

	stats Statistics
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New builds an Analyzer backed by cache for current-graph lookups,
// builder for cache misses, t for BFS traversal, and classifier for
// production/category decisions used by GenerateCoverageReport.
func New(cache *callgraph.Cache, builder CallGraphBuilder, t *traversal.Traversal, classifier *traversal.Classifier, opts ...Option) *Analyzer {
	a := &Analyzer{
		cache:      cache,
		builder:    builder,
		traversal:  t,
		classifier: classifier,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// ensureGraph returns the current call graph for solution, building it via
// the collaborator on a cache miss and storing the result.
func (a *Analyzer) ensureGraph(ctx context.Context, solution Solution) (*callgraph.CallGraph, error) {
	if solution.Path == "" {
		return nil, fmt.Errorf("%w: empty solution path", ErrInvalidArgument)
	}

	if entry, ok := a.cache.Get(solution.Path, solution.Dependencies); ok {
		return entry.Graph(), nil
	}

	start := time.Now()

	graph, err := a.builder.Build(ctx, solution.ProjectPaths)
	if err != nil {
		a.stats.BuildFailures.Add(1)

		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}

	a.stats.Builds.Add(1)

	if err := a.cache.Store(solution.Path, solution.Dependencies, graph.Forward, graph.Reverse, graph.Definitions, time.Since(start), nil); err != nil {
		a.logger.WarnContext(ctx, "coverage: failed to cache built graph", "solution", solution.Path, "error", err)
	}

	return graph, nil
}

// TraceTestExecution returns the ExecutionTrace for a single test.
func (a *Analyzer) TraceTestExecution(ctx context.Context, testID callgraph.MethodId, solution Solution) (*traversal.ExecutionTrace, error) {
	graph, err := a.ensureGraph(ctx, solution)
	if err != nil {
		return nil, err
	}

	a.stats.Queries.Add(1)

	return a.traversal.TraceForward(ctx, testID, graph)
}

// TraceMultipleTests returns ExecutionTrace results for every id in
// testIDs, built against a single shared graph fetch.
func (a *Analyzer) TraceMultipleTests(ctx context.Context, testIDs []callgraph.MethodId, solution Solution) (map[callgraph.MethodId]traversal.ExecutionTrace, error) {
	graph, err := a.ensureGraph(ctx, solution)
	if err != nil {
		return nil, err
	}

	out := make(map[callgraph.MethodId]traversal.ExecutionTrace, len(testIDs))

	for _, id := range testIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("coverage: trace multiple tests: %w", err)
		}

		trace, err := a.traversal.TraceForward(ctx, id, graph)
		if err != nil {
			return nil, err
		}

		a.stats.Queries.Add(1)

		out[id] = *trace
	}

	return out, nil
}

// TestsCoveringMethod returns every test transitively reaching methodID in
// solution's current call graph.
func (a *Analyzer) TestsCoveringMethod(ctx context.Context, methodID callgraph.MethodId, solution Solution) ([]CoverageRecord, error) {
	graph, err := a.ensureGraph(ctx, solution)
	if err != nil {
		return nil, err
	}

	refs, err := a.traversal.TraceReverse(ctx, methodID, graph)
	if err != nil {
		return nil, err
	}

	a.stats.Queries.Add(1)

	return []CoverageRecord{{ProductionMethod: methodID, CoveringTests: refs}}, nil
}

// TestsCoveringMethods runs a reverse trace for every id in ids against a
// single shared graph fetch, returning only ids with at least one
// covering test.
func (a *Analyzer) TestsCoveringMethods(ctx context.Context, ids []callgraph.MethodId, solution Solution) (map[callgraph.MethodId][]traversal.TestReference, error) {
	graph, err := a.ensureGraph(ctx, solution)
	if err != nil {
		return nil, err
	}

	out := make(map[callgraph.MethodId][]traversal.TestReference)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("coverage: tests covering methods: %w", err)
		}

		refs, err := a.traversal.TraceReverse(ctx, id, graph)
		if err != nil {
			return nil, err
		}

		a.stats.Queries.Add(1)

		if len(refs) > 0 {
			out[id] = refs
		}
	}

	return out, nil
}

// BuildCoverageMap forward-traces every known test in solution's graph and
// inverts the result into a production-method-to-covering-tests mapping.
func (a *Analyzer) BuildCoverageMap(ctx context.Context, solution Solution) (map[callgraph.MethodId][]callgraph.MethodId, error) {
	graph, err := a.ensureGraph(ctx, solution)
	if err != nil {
		return nil, err
	}

	coverage := make(map[callgraph.MethodId][]callgraph.MethodId)

	for id, info := range graph.Definitions {
		if !info.IsTest {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("coverage: build coverage map: %w", err)
		}

		trace, err := a.traversal.TraceForward(ctx, id, graph)
		if err != nil {
			return nil, err
		}

		a.stats.Queries.Add(1)

		for _, executed := range trace.Executed {
			coverage[executed.ID] = append(coverage[executed.ID], id)
		}
	}

	for method, tests := range coverage {
		sort.Slice(tests, func(i, j int) bool { return tests[i] < tests[j] })
		coverage[method] = tests
	}

	return coverage, nil
}
