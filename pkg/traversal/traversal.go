package traversal

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/config"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
)

const (
	defaultMaxDepth        = 20
	defaultMaxBreadthLevel = 50
	defaultMaxVisitedNodes = 5000
)

// queueEntry is one pending BFS frontier node: the method id, its depth
// from the origin, and the path taken to reach it.
type queueEntry struct {
	id    callgraph.MethodId
	depth int
	path  []callgraph.MethodId
}

// Traversal performs bounded BFS walks of a CallGraph, producing
// ExecutionTrace and reverse coverage results. It holds no graph state of
// its own; every call takes the graph explicitly, since a CallGraph is
// immutable and safely shared across concurrent traversals.
type Traversal struct {
	maxDepth        int
	maxBreadthLevel int
	maxVisitedNodes int
	classifier      *Classifier
	confidence      ConfidenceFunc
	metrics         *observability.CacheMetrics
}

// Option configures a Traversal.
type Option func(*Traversal)

// WithConfidenceFunc overrides the default reverse-trace confidence
// scoring function.
func WithConfidenceFunc(fn ConfidenceFunc) Option {
	return func(t *Traversal) {
		if fn != nil {
			t.confidence = fn
		}
	}
}

// WithMetrics wires OTel traversal instruments. Nil is safe: every
// CacheMetrics method is a no-op on a nil receiver.
func WithMetrics(metrics *observability.CacheMetrics) Option {
	return func(t *Traversal) {
		t.metrics = metrics
	}
}

// New builds a Traversal bounded by cfg (falling back to the spec defaults
// for any zero-valued field) and classifying methods via classifier.
func New(cfg config.TraversalConfig, classifier *Classifier, opts ...Option) *Traversal {
	t := &Traversal{
		maxDepth:        cfg.MaxDepth,
		maxBreadthLevel: cfg.MaxBreadthPerTier,
		maxVisitedNodes: cfg.MaxVisitedNodes,
		classifier:      classifier,
		confidence:      DefaultConfidence,
	}

	if t.maxDepth <= 0 {
		t.maxDepth = defaultMaxDepth
	}

	if t.maxBreadthLevel <= 0 {
		t.maxBreadthLevel = defaultMaxBreadthLevel
	}

	if t.maxVisitedNodes <= 0 {
		t.maxVisitedNodes = defaultMaxVisitedNodes
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// sortedNeighbors returns set (graph.Forward[id] or graph.Reverse[id]) as a
// deterministically id-sorted, breadth-capped slice.
func sortedNeighbors(set callgraph.MethodSet, maxBreadth int) []callgraph.MethodId {
	sorted := set.Sorted()
	if len(sorted) > maxBreadth {
		sorted = sorted[:maxBreadth]
	}

	return sorted
}

// TraceForward walks graph.Forward from testID, producing an
// ExecutionTrace of every non-test method reached within the configured
// depth, breadth, and visited-node bounds.
func (t *Traversal) TraceForward(ctx context.Context, testID callgraph.MethodId, graph *callgraph.CallGraph) (*ExecutionTrace, error) {
	if graph == nil || testID == "" {
		return nil, fmt.Errorf("%w: nil graph or empty test id", ErrInvalidArgument)
	}

	testInfo := graph.Definitions[testID]

	trace := &ExecutionTrace{
		TestID:    testID,
		TestName:  testInfo.Name,
		TestClass: testInfo.ContainingType,
		Timestamp: time.Now(),
	}

	visited := map[callgraph.MethodId]struct{}{testID: {}}
	queue := []queueEntry{{id: testID, depth: 0, path: []callgraph.MethodId{testID}}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("traversal: trace forward: %w", err)
		}

		current := queue[0]
		queue = queue[1:]

		info, known := graph.Definitions[current.id]

		if current.id != testID && !(known && info.IsTest) {
			category := CategoryBusinessLogic
			if known {
				category = t.classifier.Classify(info)
			}

			trace.Executed = append(trace.Executed, ExecutedMethod{
				ID:           current.id,
				Depth:        current.depth,
				Path:         current.path,
				Category:     category,
				IsProduction: t.classifier.IsProduction(category),
			})
		}

		if current.depth >= t.maxDepth {
			continue
		}

		for _, callee := range sortedNeighbors(graph.Forward[current.id], t.maxBreadthLevel) {
			if len(visited) >= t.maxVisitedNodes {
				break
			}

			if _, seen := visited[callee]; seen {
				continue
			}

			visited[callee] = struct{}{}

			path := make([]callgraph.MethodId, len(current.path)+1)
			copy(path, current.path)
			path[len(current.path)] = callee

			queue = append(queue, queueEntry{id: callee, depth: current.depth + 1, path: path})
		}
	}

	sort.Slice(trace.Executed, func(i, j int) bool { return trace.Executed[i].ID < trace.Executed[j].ID })

	t.metrics.RecordTraversalVisits(ctx, "forward", int64(len(visited)))

	return trace, nil
}

// TraceReverse walks graph.Reverse from targetID, returning every test
// method that transitively calls it within the configured bounds.
// Depth is bounded only by max_depth/max_visited_nodes: there is no
// separate, lower cap on reverse traces.
func (t *Traversal) TraceReverse(ctx context.Context, targetID callgraph.MethodId, graph *callgraph.CallGraph) ([]TestReference, error) {
	if graph == nil || targetID == "" {
		return nil, fmt.Errorf("%w: nil graph or empty target id", ErrInvalidArgument)
	}

	var refs []TestReference

	visited := map[callgraph.MethodId]struct{}{targetID: {}}
	queue := []queueEntry{{id: targetID, depth: 0, path: []callgraph.MethodId{targetID}}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("traversal: trace reverse: %w", err)
		}

		current := queue[0]
		queue = queue[1:]

		if current.id != targetID {
			if info, known := graph.Definitions[current.id]; known && info.IsTest {
				// current.path runs target -> ... -> test (the direction we
				// walked); reverse it so the stored path matches the
				// test-to-method convention used by forward traces.
				path := make([]callgraph.MethodId, len(current.path))
				for i, id := range current.path {
					path[len(current.path)-1-i] = id
				}

				refs = append(refs, TestReference{
					TestID:     current.id,
					Path:       path,
					Confidence: t.confidence(current.depth),
				})
			}
		}

		if current.depth >= t.maxDepth {
			continue
		}

		for _, caller := range sortedNeighbors(graph.Reverse[current.id], t.maxBreadthLevel) {
			if len(visited) >= t.maxVisitedNodes {
				break
			}

			if _, seen := visited[caller]; seen {
				continue
			}

			visited[caller] = struct{}{}

			path := make([]callgraph.MethodId, len(current.path)+1)
			copy(path, current.path)
			path[len(current.path)] = caller

			queue = append(queue, queueEntry{id: caller, depth: current.depth + 1, path: path})
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].TestID < refs[j].TestID })

	t.metrics.RecordTraversalVisits(ctx, "reverse", int64(len(visited)))

	return refs, nil
}
