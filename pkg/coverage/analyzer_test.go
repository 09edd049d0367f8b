package coverage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/blobstore"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/config"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/coverage"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/traversal"
)

var errBuildFailed = errors.New("injected build failure")

type fakeBuilder struct {
	graph   *callgraph.CallGraph
	err     error
	calls   int
}

func (f *fakeBuilder) Build(_ context.Context, _ []string) (*callgraph.CallGraph, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	return f.graph, nil
}

func sampleSolutionGraph() *callgraph.CallGraph {
	g := callgraph.New()
	g.AddDefinition(callgraph.MethodInfo{ID: "Tests.FooTests.TestFoo", Name: "TestFoo", IsTest: true})
	g.AddDefinition(callgraph.MethodInfo{ID: "App.Foo.Run", Name: "Run", ContainingType: "App.Service.Foo"})
	g.AddDefinition(callgraph.MethodInfo{ID: "App.Bar.Run", Name: "Run", ContainingType: "App.Service.Bar"})
	g.AddEdge("Tests.FooTests.TestFoo", "App.Foo.Run")

	return g
}

func newAnalyzer(t *testing.T, builder coverage.CallGraphBuilder) *coverage.Analyzer {
	t.Helper()

	store, err := blobstore.New(t.TempDir())
	require.NoError(t, err)

	cache := callgraph.New(store, "csharp-12.0")
	t.Cleanup(func() { cache.Close() })

	cfg := config.TraversalConfig{MaxDepth: 20, MaxBreadthPerTier: 50, MaxVisitedNodes: 5000}
	classifier := traversal.NewClassifier(cfg)
	tr := traversal.New(cfg, classifier)

	return coverage.New(cache, builder, tr, classifier)
}

func testSolution(dir string) coverage.Solution {
	return coverage.Solution{Path: dir, ProjectPaths: []string{dir}}
}

func TestTestsCoveringMethod_FindsDirectCaller(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{graph: sampleSolutionGraph()}
	analyzer := newAnalyzer(t, builder)

	records, err := analyzer.TestsCoveringMethod(context.Background(), "App.Foo.Run", testSolution(t.TempDir()))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].CoveringTests, 1)
	assert.Equal(t, callgraph.MethodId("Tests.FooTests.TestFoo"), records[0].CoveringTests[0].TestID)
}

func TestTestsCoveringMethod_BuildsOnceThenReusesCache(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{graph: sampleSolutionGraph()}
	analyzer := newAnalyzer(t, builder)

	solution := testSolution(t.TempDir())

	_, err := analyzer.TestsCoveringMethod(context.Background(), "App.Foo.Run", solution)
	require.NoError(t, err)

	_, err = analyzer.TestsCoveringMethod(context.Background(), "App.Bar.Run", solution)
	require.NoError(t, err)

	assert.Equal(t, 1, builder.calls)
}

func TestTestsCoveringMethod_BuildFailureSurfacesAsError(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{err: errBuildFailed}
	analyzer := newAnalyzer(t, builder)

	_, err := analyzer.TestsCoveringMethod(context.Background(), "App.Foo.Run", testSolution(t.TempDir()))
	require.Error(t, err)
	assert.ErrorIs(t, err, coverage.ErrBuild)
	assert.ErrorIs(t, err, errBuildFailed)
}

func TestTestsCoveringMethods_OnlyReturnsCoveredIDs(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{graph: sampleSolutionGraph()}
	analyzer := newAnalyzer(t, builder)

	result, err := analyzer.TestsCoveringMethods(
		context.Background(),
		[]callgraph.MethodId{"App.Foo.Run", "App.Bar.Run"},
		testSolution(t.TempDir()),
	)
	require.NoError(t, err)

	_, fooCovered := result["App.Foo.Run"]
	_, barCovered := result["App.Bar.Run"]
	assert.True(t, fooCovered)
	assert.False(t, barCovered)
}

func TestBuildCoverageMap_InvertsForwardTraces(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{graph: sampleSolutionGraph()}
	analyzer := newAnalyzer(t, builder)

	m, err := analyzer.BuildCoverageMap(context.Background(), testSolution(t.TempDir()))
	require.NoError(t, err)

	require.Contains(t, m, callgraph.MethodId("App.Foo.Run"))
	assert.Equal(t, []callgraph.MethodId{"Tests.FooTests.TestFoo"}, m["App.Foo.Run"])
	assert.NotContains(t, m, callgraph.MethodId("App.Bar.Run"))
}

func TestTraceMultipleTests_EmptySolutionPathIsInvalidArgument(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{graph: sampleSolutionGraph()}
	analyzer := newAnalyzer(t, builder)

	_, err := analyzer.TraceMultipleTests(context.Background(), []callgraph.MethodId{"Tests.FooTests.TestFoo"}, coverage.Solution{})
	assert.ErrorIs(t, err, coverage.ErrInvalidArgument)
}
