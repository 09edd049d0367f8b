package coverage

import (
	"context"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
)

// CallGraphBuilder is the source-level analyzer collaborator: given a set
// of project paths, it produces the call graph. Building a graph from
// source is out of scope for this module; it is always supplied by the
// embedder.
type CallGraphBuilder interface {
	Build(ctx context.Context, projectPaths []string) (*callgraph.CallGraph, error)
}

// DiffParser turns a diff source (patch text, file path, or similar) into
// a structured ChangeSet. Git plumbing itself stays out of scope; an
// embedder wires a DiffParser that already knows how to talk to git, a
// patch file, or any other source of truth.
type DiffParser interface {
	Parse(ctx context.Context, source string) (ChangeSet, error)
}
