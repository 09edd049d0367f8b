package coverage

import "sync/atomic"

// Statistics holds atomic counters for analyzer activity.
type Statistics struct {
	Builds          atomic.Int64
	BuildFailures   atomic.Int64
	Queries         atomic.Int64
	StreamsStarted  atomic.Int64
	StreamsCanceled atomic.Int64
}

// Snapshot is a point-in-time copy of Statistics.
type Snapshot struct {
	Builds          int64
	BuildFailures   int64
	Queries         int64
	StreamsStarted  int64
	StreamsCanceled int64
}

// Statistics returns a snapshot of the analyzer's counters.
func (a *Analyzer) Statistics() Snapshot {
	return Snapshot{
		Builds:          a.stats.Builds.Load(),
		BuildFailures:   a.stats.BuildFailures.Load(),
		Queries:         a.stats.Queries.Load(),
		StreamsStarted:  a.stats.StreamsStarted.Load(),
		StreamsCanceled: a.stats.StreamsCanceled.Load(),
	}
}
