package blobstore

import "sync/atomic"

// Statistics holds atomic counters for blob store activity. The zero value
// is ready to use.
type Statistics struct {
	hits                  atomic.Int64
	misses                atomic.Int64
	stores                atomic.Int64
	corruption            atomic.Int64
	evictions             atomic.Int64
	entries               atomic.Int64
	totalCompressedSize   atomic.Int64
	totalUncompressedSize atomic.Int64
}

// Snapshot is a point-in-time copy of Statistics suitable for reporting.
// Fields are read independently and are not mutually consistent under
// concurrent writes — callers needing a single consistent view should not
// rely on cross-field invariants.
type Snapshot struct {
	Hits                  int64
	Misses                int64
	Stores                int64
	Corruption            int64
	Evictions             int64
	Entries               int64
	TotalCompressedSize   int64
	TotalUncompressedSize int64
}

// Statistics returns a snapshot of the store's current counters.
func (s *Store) Statistics() Snapshot {
	return Snapshot{
		Hits:                  s.stats.hits.Load(),
		Misses:                s.stats.misses.Load(),
		Stores:                s.stats.stores.Load(),
		Corruption:            s.stats.corruption.Load(),
		Evictions:             s.stats.evictions.Load(),
		Entries:               s.stats.entries.Load(),
		TotalCompressedSize:   s.stats.totalCompressedSize.Load(),
		TotalUncompressedSize: s.stats.totalUncompressedSize.Load(),
	}
}
