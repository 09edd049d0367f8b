// Package treepool provides a bounded-resource cache and reuse pool for
// parsed syntax trees, amortizing the cost of repeated parsing across a
// large source tree. Parsing itself (grammar selection, invoking the
// tree-sitter runtime) stays the caller's concern; this package only pools
// the resulting trees.
//
// Pool is generic over the tree type so that production code can plug in
// *sitter.Tree from github.com/alexaandru/go-tree-sitter-bare (see
// NewSitterPool) while tests exercise the pooling logic itself against a
// lightweight stand-in, without needing a real grammar loaded.
package treepool

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/alg/lru"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
)

// ParseFunc performs the actual parse. old, when non-nil (the zero value
// for pointer tree types), is a previously detached tree offered as an
// incremental-parse base recycled from the reuse pool; implementations are
// free to ignore it and parse from scratch.
type ParseFunc[T any] func(ctx context.Context, old T, content []byte) (T, error)

// cacheKey identifies a parsed tree by source path and content digest, so
// that an unchanged file is never reparsed even if touched (mtime bump
// without a content change).
type cacheKey struct {
	path        string
	contentHash string
}

// Pool bounds the resources spent on parsing: an LRU content cache of
// (path, content-hash) -> T, and a bounded reuse pool of detached trees
// available as incremental-parse bases.
type Pool[T any] struct {
	content *lru.Cache[cacheKey, T]
	reuse   chan T
	parse   ParseFunc[T]
	closeFn func(T)
	logger  *slog.Logger
	metrics *observability.CacheMetrics

	reuseCapacity int
	stats         Statistics
}

// Statistics holds atomic counters for pool activity.
type Statistics struct {
	TotalRequests atomic.Int64
	CacheHits     atomic.Int64
	PoolHits      atomic.Int64
	NewCreations  atomic.Int64
}

// Snapshot is a point-in-time copy of Statistics.
type Snapshot struct {
	TotalRequests int64
	CacheHits     int64
	PoolHits      int64
	NewCreations  int64
}

// New creates a Pool. contentCapacity bounds the number of distinct parsed
// trees kept alive; reuseCapacity bounds the number of detached trees held
// for reuse as incremental-parse bases. closeFn releases a tree's native
// resources when it is dropped rather than reused; it may be nil if T
// requires no explicit release. metrics may be nil: every CacheMetrics
// method is a no-op on a nil receiver.
func New[T any](contentCapacity, reuseCapacity int, parse ParseFunc[T], closeFn func(T), logger *slog.Logger, metrics *observability.CacheMetrics) *Pool[T] {
	if logger == nil {
		logger = slog.Default()
	}

	if closeFn == nil {
		closeFn = func(T) {}
	}

	return &Pool[T]{
		content: lru.New[cacheKey, T](
			lru.WithMaxEntries[cacheKey, T](contentCapacity),
		),
		reuse:         make(chan T, reuseCapacity),
		reuseCapacity: reuseCapacity,
		parse:         parse,
		closeFn:       closeFn,
		logger:        logger,
		metrics:       metrics,
	}
}

// GetOrParse returns the parsed tree for path/content, reusing a cached
// tree when the content is unchanged, or parsing fresh (optionally reusing
// a detached tree from the pool as an incremental base) otherwise.
func (p *Pool[T]) GetOrParse(ctx context.Context, path string, content []byte) (T, error) {
	start := time.Now()
	p.stats.TotalRequests.Add(1)

	key := cacheKey{path: path, contentHash: hashContent(content)}

	if tree, ok := p.content.Get(key); ok {
		p.stats.CacheHits.Add(1)
		p.metrics.RecordTier(ctx, observability.CacheTierStats{Tier: "treepool", Hits: 1, Duration: time.Since(start)})

		return tree, nil
	}

	var (
		base T
		ok   bool
	)

	select {
	case base, ok = <-p.reuse:
		if ok {
			p.stats.PoolHits.Add(1)
		}
	default:
		p.stats.NewCreations.Add(1)
	}

	tree, err := p.parse(ctx, base, content)
	if err != nil {
		var zero T

		return zero, fmt.Errorf("treepool: parse %s: %w", path, err)
	}

	p.content.Put(key, tree)
	p.metrics.RecordTier(ctx, observability.CacheTierStats{Tier: "treepool", Misses: 1, Duration: time.Since(start)})

	return tree, nil
}

// Return offers a detached tree back to the reuse pool as a future
// incremental-parse base. If the pool is full, the tree is dropped (its
// native resources released via closeFn) rather than leaked. A nil tree is
// ignored.
func (p *Pool[T]) Return(tree T) {
	if v := reflect.ValueOf(any(tree)); !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return
	}

	select {
	case p.reuse <- tree:
	default:
		p.closeFn(tree)
	}
}

// Clear empties both the content cache and the reuse pool, releasing
// native resources held by every pooled tree, and resets the counters.
func (p *Pool[T]) Clear() {
	p.content.Clear()
	p.stats.TotalRequests.Store(0)
	p.stats.CacheHits.Store(0)
	p.stats.PoolHits.Store(0)
	p.stats.NewCreations.Store(0)

	for {
		select {
		case tree := <-p.reuse:
			p.closeFn(tree)
		default:
			return
		}
	}
}

// Cleanup trims the reuse pool to half its capacity. The content cache is
// self-bounding (it evicts on every Put once at capacity), so this only
// needs to manage reuse-pool pressure on a periodic schedule.
func (p *Pool[T]) Cleanup() {
	target := p.reuseCapacity / 2
	if target < 1 {
		return
	}

	for len(p.reuse) > target {
		select {
		case tree := <-p.reuse:
			p.closeFn(tree)
		default:
			return
		}
	}
}

// Len returns the number of entries currently in the content cache.
func (p *Pool[T]) Len() int {
	return p.content.Len()
}

// ReuseLen returns the number of detached trees currently held in the
// reuse pool.
func (p *Pool[T]) ReuseLen() int {
	return len(p.reuse)
}

// Statistics returns a snapshot of the pool's counters.
func (p *Pool[T]) Statistics() Snapshot {
	return Snapshot{
		TotalRequests: p.stats.TotalRequests.Load(),
		CacheHits:     p.stats.CacheHits.Load(),
		PoolHits:      p.stats.PoolHits.Load(),
		NewCreations:  p.stats.NewCreations.Load(),
	}
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:])
}
