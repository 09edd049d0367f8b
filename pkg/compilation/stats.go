package compilation

import "sync/atomic"

// Statistics holds atomic counters for tier activity.
type Statistics struct {
	L1Hits              atomic.Int64
	L2Hits              atomic.Int64
	L3Hits              atomic.Int64
	Misses              atomic.Int64
	Builds              atomic.Int64
	StaleManifests      atomic.Int64
	SchemaRejected      atomic.Int64
	SingleflightHit     atomic.Int64
	SemanticModelHits   atomic.Int64
	SemanticModelMisses atomic.Int64
}

// Snapshot is a point-in-time copy of Statistics.
type Snapshot struct {
	L1Hits              int64
	L2Hits              int64
	L3Hits              int64
	Misses              int64
	Builds              int64
	StaleManifests      int64
	SchemaRejected      int64
	SingleflightHit     int64
	SemanticModelHits   int64
	SemanticModelMisses int64
}

// Statistics returns a snapshot of the tiers' counters.
func (t *Tiers) Statistics() Snapshot {
	return Snapshot{
		L1Hits:              t.stats.L1Hits.Load(),
		L2Hits:              t.stats.L2Hits.Load(),
		L3Hits:              t.stats.L3Hits.Load(),
		Misses:              t.stats.Misses.Load(),
		Builds:              t.stats.Builds.Load(),
		StaleManifests:      t.stats.StaleManifests.Load(),
		SchemaRejected:      t.stats.SchemaRejected.Load(),
		SingleflightHit:     t.stats.SingleflightHit.Load(),
		SemanticModelHits:   t.stats.SemanticModelHits.Load(),
		SemanticModelMisses: t.stats.SemanticModelMisses.Load(),
	}
}
