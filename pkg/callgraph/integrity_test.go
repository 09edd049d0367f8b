package callgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
)

func TestCheckIntegrity_ConsistentGraphIsValid(t *testing.T) {
	t.Parallel()

	g := callgraph.New()
	g.AddEdge("Test.M1", "Prod.A")
	g.AddEdge("Prod.A", "Prod.B")

	result := callgraph.CheckIntegrity(g, 0)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
}

func TestCheckIntegrity_OneDirectionalEdgeIsNoteNotCritical(t *testing.T) {
	t.Parallel()

	g := callgraph.New()
	g.Forward["Test.M1"] = callgraph.NewMethodSet("Prod.A")
	// Reverse deliberately left unmirrored.

	result := callgraph.CheckIntegrity(g, 0)

	assert.True(t, result.Valid)
	assert.Len(t, result.Issues, 1)
	assert.Equal(t, callgraph.SeverityNote, result.Issues[0].Severity)
}

func TestCheckIntegrity_EmptyCalleeIdIsCritical(t *testing.T) {
	t.Parallel()

	g := callgraph.New()
	g.Forward["Test.M1"] = callgraph.NewMethodSet("")

	result := callgraph.CheckIntegrity(g, 0)

	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, callgraph.SeverityCritical, result.Issues[0].Severity)
}

func TestCheckIntegrity_TruncatesAtMaxIssues(t *testing.T) {
	t.Parallel()

	g := callgraph.New()

	for i := range 20 {
		id := callgraph.MethodId(string(rune('a' + i%26)))
		g.Forward[id] = callgraph.NewMethodSet(callgraph.MethodId(string(rune('A' + i%26))))
	}

	result := callgraph.CheckIntegrity(g, 5)

	assert.Len(t, result.Issues, 5)
	assert.True(t, result.Truncated)
}
