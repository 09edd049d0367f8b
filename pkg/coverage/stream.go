package coverage

import (
	"context"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/callgraph"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/traversal"
)

// TestsCoveringMethodStream runs a reverse trace for methodID, then returns a
// receive-only channel yielding one CoverageRecord per covering test that
// trace found. The trace completes before the channel is returned. The channel
// is finite and non-restartable: it closes once every covering test has
// been emitted, or immediately if ctx is cancelled first. The caller must
// drain the channel (or cancel ctx) to avoid leaking the producing
// goroutine.
func (a *Analyzer) TestsCoveringMethodStream(ctx context.Context, methodID callgraph.MethodId, solution Solution) (<-chan CoverageRecord, error) {
	graph, err := a.ensureGraph(ctx, solution)
	if err != nil {
		return nil, err
	}

	refs, err := a.traversal.TraceReverse(ctx, methodID, graph)
	if err != nil {
		return nil, err
	}

	a.stats.Queries.Add(1)
	a.stats.StreamsStarted.Add(1)

	out := make(chan CoverageRecord)

	go func() {
		defer close(out)

		for _, ref := range refs {
			record := CoverageRecord{
				ProductionMethod: methodID,
				CoveringTests:    []traversal.TestReference{ref},
			}

			select {
			case <-ctx.Done():
				a.stats.StreamsCanceled.Add(1)

				return
			case out <- record:
			}
		}
	}()

	return out, nil
}
