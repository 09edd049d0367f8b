package coverage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
)

func TestTestsCoveringMethodStream_YieldsEveryCoveringTestThenCloses(t *testing.T) {
	t.Parallel()

	g := sampleSolutionGraph()
	g.AddDefinition(callgraph.MethodInfo{ID: "Tests.BarTests.TestBar", IsTest: true})
	g.AddEdge("Tests.BarTests.TestBar", "App.Foo.Run")

	builder := &fakeBuilder{graph: g}
	analyzer := newAnalyzer(t, builder)

	stream, err := analyzer.TestsCoveringMethodStream(context.Background(), "App.Foo.Run", testSolution(t.TempDir()))
	require.NoError(t, err)

	var records int

	for range stream {
		records++
	}

	assert.Equal(t, 2, records)
}

func TestTestsCoveringMethodStream_ClosesPromptlyOnCancellation(t *testing.T) {
	t.Parallel()

	g := sampleSolutionGraph()
	g.AddDefinition(callgraph.MethodInfo{ID: "Tests.BarTests.TestBar", IsTest: true})
	g.AddEdge("Tests.BarTests.TestBar", "App.Foo.Run")

	builder := &fakeBuilder{graph: g}
	analyzer := newAnalyzer(t, builder)

	ctx, cancel := context.WithCancel(context.Background())

	stream, err := analyzer.TestsCoveringMethodStream(ctx, "App.Foo.Run", testSolution(t.TempDir()))
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-stream:
		if ok {
			// a record may still have been in flight; drain until close.
			for range stream {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not close promptly after cancellation")
	}
}
