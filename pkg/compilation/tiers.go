package compilation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/alg/lru"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/persist"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/safeconv"
)

// SharedCache is the optional L2 tier: a manifest store shared across
// processes on the same host or over a network, supplied by the embedder.
// It never carries the reconstructed Compilation itself, only the manifest
// needed to rebuild one.
type SharedCache interface {
	GetManifest(ctx context.Context, key string) (Manifest, bool, error)
	SetManifest(ctx context.Context, key string, manifest Manifest) error
}

// statFunc abstracts os.Stat for freshness checks in tests.
type statFunc func(path string) (os.FileInfo, error)

// Tiers is the three-tier compilation cache: an in-process L1, an optional
// shared L2, and an on-disk L3 manifest tier, with promotion on hit and
// per-key single-flight deduplication of cold builds.
type Tiers struct {
	l1               *lru.Cache[string, *Compilation]
	l2               SharedCache
	l3Dir            string
	l3TTL            time.Duration
	promotionOnHit   bool
	reconstruct      ReconstructFunc
	stat             statFunc
	logger           *slog.Logger
	metrics          *observability.CacheMetrics
	semanticModels   *lru.Cache[string, *SemanticModel]
	semanticModelTTL time.Duration

	group singleflight.Group
	stats Statistics
}

// Option configures a Tiers instance.
type Option func(*Tiers)

// WithSharedCache wires an L2 tier. Without it, the cache operates on L1
// and L3 only.
func WithSharedCache(cache SharedCache) Option {
	return func(t *Tiers) {
		t.l2 = cache
	}
}

// WithManifestTTL bounds how long an L2 or L3 manifest is trusted, counted
// from its LastWriteTime, before it is treated as a miss regardless of
// freshness against source files.
func WithManifestTTL(ttl time.Duration) Option {
	return func(t *Tiers) {
		t.l3TTL = ttl
	}
}

// WithPromotionOnHit controls whether an L3 (or L2) hit is copied up into
// faster tiers. Defaults to true.
func WithPromotionOnHit(enabled bool) Option {
	return func(t *Tiers) {
		t.promotionOnHit = enabled
	}
}

// WithReconstructFunc supplies the function used to rebuild a Compilation
// from a manifest recovered from L2 or L3.
func WithReconstructFunc(fn ReconstructFunc) Option {
	return func(t *Tiers) {
		t.reconstruct = fn
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tiers) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithMetrics wires OTel cache-tier instruments. Nil is safe: every
// CacheMetrics method is a no-op on a nil receiver.
func WithMetrics(metrics *observability.CacheMetrics) Option {
	return func(t *Tiers) {
		t.metrics = metrics
	}
}

// WithSemanticModelCapacity overrides the default L1-only semantic-model
// cache capacity.
func WithSemanticModelCapacity(n int) Option {
	return func(t *Tiers) {
		if n > 0 {
			t.semanticModels = lru.New[string, *SemanticModel](lru.WithMaxEntries[string, *SemanticModel](n))
		}
	}
}

// WithSemanticModelTTL overrides the default 15-minute semantic-model TTL.
func WithSemanticModelTTL(ttl time.Duration) Option {
	return func(t *Tiers) {
		if ttl > 0 {
			t.semanticModelTTL = ttl
		}
	}
}

// New creates a Tiers cache backed by l1Capacity in-process entries and an
// on-disk manifest directory at l3Dir, which is created if missing.
func New(l1Capacity int, l3Dir string, opts ...Option) (*Tiers, error) {
	if err := os.MkdirAll(l3Dir, 0o755); err != nil {
		return nil, fmt.Errorf("compilation: create l3 dir: %w", err)
	}

	t := &Tiers{
		l1: lru.New[string, *Compilation](
			lru.WithMaxEntries[string, *Compilation](l1Capacity),
			lru.WithBloomFilter[string, *Compilation](func(k string) []byte { return []byte(k) }, safeconv.MustIntToUint(l1Capacity*4)),
		),
		l3Dir:          l3Dir,
		promotionOnHit: true,
		stat:           os.Stat,
		logger:         slog.Default(),
		semanticModels: lru.New[string, *SemanticModel](
			lru.WithMaxEntries[string, *SemanticModel](defaultSemanticModelCapacity),
		),
		semanticModelTTL: defaultSemanticModelTTL,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// GetOrCreateCompilation returns the cached Compilation for key, reading
// through L1, L2, and L3 in order, and falling back to factory on a full
// miss. Concurrent calls for the same key dedup onto a single factory
// invocation.
func (t *Tiers) GetOrCreateCompilation(ctx context.Context, key string, factory Factory) (*Compilation, error) {
	start := time.Now()

	if compilation, ok := t.l1.Get(key); ok {
		t.stats.L1Hits.Add(1)
		t.metrics.RecordTier(ctx, observability.CacheTierStats{Tier: "l1", Hits: 1, Duration: time.Since(start)})

		return compilation, nil
	}

	if compilation, ok := t.tryL2(ctx, key); ok {
		t.stats.L2Hits.Add(1)
		t.metrics.RecordTier(ctx, observability.CacheTierStats{Tier: "l2", Hits: 1, Duration: time.Since(start)})

		if t.promotionOnHit {
			t.l1.Put(key, compilation)
		}

		return compilation, nil
	}

	if compilation, ok := t.tryL3(ctx, key); ok {
		t.stats.L3Hits.Add(1)
		t.metrics.RecordTier(ctx, observability.CacheTierStats{Tier: "l3", Hits: 1, Duration: time.Since(start)})

		if t.promotionOnHit {
			t.l1.Put(key, compilation)

			if t.l2 != nil {
				_ = t.l2.SetManifest(ctx, key, compilation.Manifest)
			}
		}

		return compilation, nil
	}

	t.stats.Misses.Add(1)
	t.metrics.RecordTier(ctx, observability.CacheTierStats{Tier: "l3", Misses: 1, Duration: time.Since(start)})

	result, err, shared := t.group.Do(key, func() (any, error) {
		return t.build(ctx, key, factory)
	})
	if shared {
		t.stats.SingleflightHit.Add(1)
	}

	if err != nil {
		return nil, err
	}

	compilation, ok := result.(*Compilation)
	if !ok {
		return nil, fmt.Errorf("compilation: unexpected factory result type %T", result)
	}

	return compilation, nil
}

// build runs the factory, persists the resulting manifest to L3 (and L2,
// if configured), and populates L1.
func (t *Tiers) build(ctx context.Context, key string, factory Factory) (*Compilation, error) {
	t.stats.Builds.Add(1)

	compilation, manifest, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("compilation: factory for %q: %w", key, err)
	}

	manifest.Key = key
	compilation.Manifest = *manifest
	compilation.Reused = false

	if err := t.writeManifest(key, *manifest); err != nil {
		t.logger.Warn("compilation: failed to persist manifest", "key", key, "error", err)
	}

	if t.l2 != nil {
		if err := t.l2.SetManifest(ctx, key, *manifest); err != nil {
			t.logger.Warn("compilation: failed to write shared manifest", "key", key, "error", err)
		}
	}

	t.l1.Put(key, compilation)

	return compilation, nil
}

// tryL2 attempts an L2 hit, validating schema and freshness before
// accepting it.
func (t *Tiers) tryL2(ctx context.Context, key string) (*Compilation, bool) {
	if t.l2 == nil {
		return nil, false
	}

	manifest, found, err := t.l2.GetManifest(ctx, key)
	if err != nil || !found {
		return nil, false
	}

	return t.acceptManifest(ctx, manifest)
}

// tryL3 attempts an on-disk manifest hit.
func (t *Tiers) tryL3(ctx context.Context, key string) (*Compilation, bool) {
	manifest, err := t.readManifest(key)
	if err != nil {
		return nil, false
	}

	return t.acceptManifest(ctx, manifest)
}

// acceptManifest validates a manifest's schema and freshness, then
// reconstructs a Compilation from it via the configured ReconstructFunc.
func (t *Tiers) acceptManifest(ctx context.Context, manifest Manifest) (*Compilation, bool) {
	if err := validateManifest(manifest); err != nil {
		t.stats.SchemaRejected.Add(1)

		return nil, false
	}

	if t.l3TTL > 0 && time.Since(manifest.LastWriteTime) > t.l3TTL {
		t.stats.StaleManifests.Add(1)

		return nil, false
	}

	if !t.isFresh(manifest) {
		t.stats.StaleManifests.Add(1)

		return nil, false
	}

	if t.reconstruct == nil {
		return nil, false
	}

	compilation, err := t.reconstruct(ctx, manifest)
	if err != nil {
		t.logger.Warn("compilation: reconstruct failed", "key", manifest.Key, "error", err)

		return nil, false
	}

	compilation.Reused = true

	return compilation, true
}

// isFresh reports whether every source file recorded in manifest still has
// the modification time the manifest captured at build time.
func (t *Tiers) isFresh(manifest Manifest) bool {
	for _, path := range manifest.SourceFiles {
		recorded, tracked := manifest.SourceFileTimes[path]
		if !tracked {
			continue
		}

		info, err := t.stat(path)
		if err != nil {
			return false
		}

		if !info.ModTime().Equal(recorded) {
			return false
		}
	}

	return true
}

// manifestPath derives a stable on-disk basename for key, since keys may
// contain path separators unsafe to use directly as filenames.
func (t *Tiers) manifestPath(key string) (dir, basename string) {
	sum := sha256.Sum256([]byte(key))

	return t.l3Dir, hex.EncodeToString(sum[:])
}

func (t *Tiers) readManifest(key string) (Manifest, error) {
	dir, basename := t.manifestPath(key)

	var manifest Manifest

	if err := persist.LoadState(dir, basename, persist.NewJSONCodec(), &manifest); err != nil {
		return Manifest{}, fmt.Errorf("compilation: load manifest: %w", err)
	}

	return manifest, nil
}

func (t *Tiers) writeManifest(key string, manifest Manifest) error {
	dir, basename := t.manifestPath(key)

	if err := persist.SaveState(dir, basename, persist.NewJSONCodec(), &manifest); err != nil {
		return fmt.Errorf("compilation: save manifest: %w", err)
	}

	return nil
}

// Invalidate drops key from every tier, including its on-disk manifest.
func (t *Tiers) Invalidate(key string) {
	t.l1.Delete(key)

	dir, basename := t.manifestPath(key)
	path := filepath.Join(dir, basename+persist.NewJSONCodec().Extension())

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("compilation: failed to remove manifest", "key", key, "error", err)
	}
}

// Clear drops every tier: L1, the on-disk L3 manifest directory, and the
// L1-only semantic-model cache. It does not touch an optional L2, since
// that tier is owned and cleared by the embedder.
func (t *Tiers) Clear() error {
	t.l1.Clear()
	t.semanticModels.Clear()

	entries, err := os.ReadDir(t.l3Dir)
	if err != nil {
		return fmt.Errorf("compilation: read l3 dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		if err := os.Remove(filepath.Join(t.l3Dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("compilation: remove manifest %s: %w", e.Name(), err)
		}
	}

	return nil
}
