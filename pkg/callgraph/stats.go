package callgraph

import (
	"sync/atomic"
	"time"
)

// Statistics holds atomic counters for cache activity, mirroring
// CacheStatistics.
type Statistics struct {
	Hits          atomic.Int64
	Misses        atomic.Int64
	Invalidations atomic.Int64
	Corruption    atomic.Int64
	Stores        atomic.Int64
}

// Snapshot is a point-in-time copy of Statistics.
type Snapshot struct {
	Hits                  int64
	Misses                int64
	Invalidations         int64
	Corruption            int64
	Stores                int64
	TotalEntries          int64
	TotalCompressedSize   int64
	TotalUncompressedSize int64
	LastMaintenance       time.Time
}

// Statistics returns a snapshot of the cache's counters, combined with the
// underlying blob store's size and entry-count gauges and the timestamp of
// the last Maintenance run.
func (c *Cache) Statistics() Snapshot {
	storeStats := c.store.Statistics()

	c.mu.RLock()
	lastMaintenance := c.lastMaintenance
	c.mu.RUnlock()

	return Snapshot{
		Hits:                  c.stats.Hits.Load(),
		Misses:                c.stats.Misses.Load(),
		Invalidations:         c.stats.Invalidations.Load(),
		Corruption:            c.stats.Corruption.Load(),
		Stores:                c.stats.Stores.Load(),
		TotalEntries:          storeStats.Entries,
		TotalCompressedSize:   storeStats.TotalCompressedSize,
		TotalUncompressedSize: storeStats.TotalUncompressedSize,
		LastMaintenance:       lastMaintenance,
	}
}
