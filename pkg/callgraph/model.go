// Package callgraph implements the domain-aware cache wrapper over
// CompressedBlobStore: fingerprint-keyed call-graph storage with
// project-freshness validation, dependency/compiler-version checks, an
// integrity checker, and an advisory file-change watcher. Building a
// CallGraph from source is out of scope; it is consumed from an external
// CallGraphBuilder collaborator.
package callgraph

import (
	"sort"
	"time"
)

// MethodId identifies a method by fully-qualified name plus normalized
// parameter types. Comparable by value; immutable once minted.
type MethodId string

// MethodInfo is the immutable descriptor of a single method definition.
type MethodInfo struct {
	ID             MethodId `json:"id"`
	Name           string   `json:"name"`
	ContainingType string   `json:"containing_type"`
	FilePath       string   `json:"file_path"`
	Line           int      `json:"line"`
	IsTest         bool     `json:"is_test"`
}

// MethodSet is a set of method ids, serialized as a JSON object whose keys
// are the member ids.
type MethodSet map[MethodId]struct{}

// NewMethodSet builds a MethodSet from the given ids.
func NewMethodSet(ids ...MethodId) MethodSet {
	set := make(MethodSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}

	return set
}

// Contains reports whether id is a member of the set.
func (s MethodSet) Contains(id MethodId) bool {
	_, ok := s[id]

	return ok
}

// Add inserts id into the set.
func (s MethodSet) Add(id MethodId) {
	s[id] = struct{}{}
}

// Sorted returns the set's members in ascending lexical order, for
// deterministic traversal.
func (s MethodSet) Sorted() []MethodId {
	out := make([]MethodId, 0, len(s))
	for id := range s {
		out = append(out, id)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// CallGraph is the immutable, in-memory representation of a project's call
// graph: forward (caller to callees) and reverse (callee to callers) edge
// maps, plus the definitions of every known method.
//
// INVARIANT: b is in Forward[a] if and only if a is in Reverse[b].
// INVARIANT: every id appearing in an edge either has a Definitions entry
// or is external (no known definition, and therefore never a test).
type CallGraph struct {
	Forward     map[MethodId]MethodSet  `json:"forward"`
	Reverse     map[MethodId]MethodSet  `json:"reverse"`
	Definitions map[MethodId]MethodInfo `json:"definitions"`
}

// New returns an empty CallGraph ready for incremental construction.
func New() *CallGraph {
	return &CallGraph{
		Forward:     make(map[MethodId]MethodSet),
		Reverse:     make(map[MethodId]MethodSet),
		Definitions: make(map[MethodId]MethodInfo),
	}
}

// AddEdge records a caller-callee edge, maintaining the forward/reverse
// invariant in one step.
func (g *CallGraph) AddEdge(caller, callee MethodId) {
	if _, ok := g.Forward[caller]; !ok {
		g.Forward[caller] = make(MethodSet)
	}

	g.Forward[caller].Add(callee)

	if _, ok := g.Reverse[callee]; !ok {
		g.Reverse[callee] = make(MethodSet)
	}

	g.Reverse[callee].Add(caller)
}

// AddDefinition records a method's definition.
func (g *CallGraph) AddDefinition(info MethodInfo) {
	g.Definitions[info.ID] = info
}

// CallGraphEntry is the cached, on-disk representation of a CallGraph for a
// specific project and dependency set.
type CallGraphEntry struct {
	ProjectPath      string                  `json:"project_path"`
	CreatedAt        time.Time               `json:"created_at"`
	DependenciesHash string                  `json:"dependencies_hash"`
	CompilerVersion  string                  `json:"compiler_version"`
	Forward          map[MethodId]MethodSet  `json:"forward"`
	Reverse          map[MethodId]MethodSet  `json:"reverse"`
	Definitions      map[MethodId]MethodInfo `json:"definitions"`
	UncompressedSize int64                   `json:"uncompressed_size"`
	BuildTime        time.Duration           `json:"build_time"`
	Metadata         map[string]string       `json:"metadata"`
}

// Graph reconstructs the CallGraph view of this entry.
func (e *CallGraphEntry) Graph() *CallGraph {
	return &CallGraph{Forward: e.Forward, Reverse: e.Reverse, Definitions: e.Definitions}
}
