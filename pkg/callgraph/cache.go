package callgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/blobstore"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/fingerprint"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
)

// defaultFileExtensions is the set of project/source file extensions
// scanned for freshness when none is supplied by the embedder.
var defaultFileExtensions = []string{".cs", ".vb", ".fs", ".csproj", ".vbproj", ".fsproj"}

// defaultMaxIntegrityIssues bounds how many issues CheckIntegrity reports
// per Get before truncating.
const defaultMaxIntegrityIssues = 10

// Cache is a domain-aware wrapper over blobstore.Store: it tracks project
// freshness, dependency and compiler-version identity, and call-graph
// integrity, on top of the store's opaque byte persistence.
type Cache struct {
	store           *blobstore.Store
	hasher          *fingerprint.Hasher
	compilerVersion string
	fileExtensions  []string
	logger          *slog.Logger
	metrics         *observability.CacheMetrics

	mu              sync.RWMutex
	tracked         map[string]struct{}            // project_path -> present
	projectKeys     map[string]map[string]struct{} // project_path -> cache keys stored under it
	lastMaintenance time.Time

	stats Statistics

	watcher       *Watcher
	invalidations chan string
	done          chan struct{}
	closeOnce     sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithFileExtensions overrides the set of extensions scanned for project
// freshness.
func WithFileExtensions(exts []string) Option {
	return func(c *Cache) {
		if len(exts) > 0 {
			c.fileExtensions = exts
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics wires OTel cache-tier instruments. Nil is safe: every
// CacheMetrics method is a no-op on a nil receiver.
func WithMetrics(metrics *observability.CacheMetrics) Option {
	return func(c *Cache) {
		c.metrics = metrics
	}
}

// WithWatcher wires an advisory fsnotify-backed Watcher. The watcher posts
// changed project paths onto a channel the Cache drains in a background
// goroutine; it holds no back-reference into the Cache itself.
func WithWatcher(watcher *Watcher) Option {
	return func(c *Cache) {
		c.watcher = watcher
	}
}

// New creates a Cache backed by store, stamping every stored entry with
// compilerVersion.
func New(store *blobstore.Store, compilerVersion string, opts ...Option) *Cache {
	c := &Cache{
		store:           store,
		hasher:          fingerprint.New(),
		compilerVersion: compilerVersion,
		fileExtensions:  defaultFileExtensions,
		logger:          slog.Default(),
		tracked:         make(map[string]struct{}),
		projectKeys:     make(map[string]map[string]struct{}),
		invalidations:   make(chan string, 64),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.drainInvalidations()

	if c.watcher != nil {
		go c.watcher.Run(c.invalidations)
	}

	return c
}

// drainInvalidations consumes project paths posted by the watcher and
// invalidates them. It runs for the Cache's lifetime; correctness never
// depends on this goroutine observing an event (every Get re-checks file
// stats independently).
func (c *Cache) drainInvalidations() {
	for {
		select {
		case projectPath, ok := <-c.invalidations:
			if !ok {
				return
			}

			c.InvalidateProject(projectPath)
		case <-c.done:
			return
		}
	}
}

// Close stops the background invalidation drain and, if configured, the
// underlying watcher.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})

	if c.watcher != nil {
		return c.watcher.Close()
	}

	return nil
}

// cacheKey computes the fingerprint key for a project/dependency pair.
func (c *Cache) cacheKey(projectPath string, deps []string) string {
	depHashes := make([]string, len(deps))
	copy(depHashes, deps)

	return c.hasher.CacheKey(projectPath, c.compilerVersion, depHashes)
}

// Get returns the cached CallGraphEntry for projectPath/deps if it exists,
// is fresh, matches the current compiler version and dependency set, and
// passes integrity validation.
func (c *Cache) Get(projectPath string, deps []string) (*CallGraphEntry, bool) {
	start := time.Now()
	key := c.cacheKey(projectPath, deps)

	raw, ok := c.store.Get(key)
	if !ok {
		c.mu.RLock()
		_, tracked := c.tracked[projectPath]
		c.mu.RUnlock()

		if tracked {
			c.stats.Invalidations.Add(1)
		} else {
			c.stats.Misses.Add(1)
		}

		c.recordLookup(0, 1, time.Since(start))

		return nil, false
	}

	var entry CallGraphEntry

	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("callgraph: corrupt cache entry removed", "project_path", projectPath, "error", err)
		c.store.Remove(key)
		c.stats.Corruption.Add(1)
		c.recordLookup(0, 1, time.Since(start))

		return nil, false
	}

	if entry.ProjectPath != projectPath || entry.CompilerVersion != c.compilerVersion ||
		entry.DependenciesHash != c.hasher.HashSorted(deps) {
		c.store.Remove(key)
		c.stats.Invalidations.Add(1)
		c.recordLookup(0, 1, time.Since(start))

		return nil, false
	}

	newest, err := newestModTime(projectPath, c.fileExtensions)
	if err == nil && newest.After(entry.CreatedAt) {
		c.store.Remove(key)
		c.stats.Invalidations.Add(1)
		c.recordLookup(0, 1, time.Since(start))

		return nil, false
	}

	result := CheckIntegrity(entry.Graph(), defaultMaxIntegrityIssues)
	if !result.Valid {
		c.logger.Warn("callgraph: integrity check failed", "project_path", projectPath, "issues", len(result.Issues))
		c.store.Remove(key)
		c.stats.Corruption.Add(1)
		c.recordLookup(0, 1, time.Since(start))

		return nil, false
	}

	c.stats.Hits.Add(1)
	c.recordLookup(1, 0, time.Since(start))

	return &entry, true
}

// recordLookup forwards one Get outcome to the wired OTel metrics, if any.
func (c *Cache) recordLookup(hits, misses int64, duration time.Duration) {
	c.metrics.RecordTier(context.Background(), observability.CacheTierStats{
		Tier:     "callgraph",
		Hits:     hits,
		Misses:   misses,
		Duration: duration,
	})
}

// Store writes a CallGraphEntry built from forward/reverse/definitions for
// projectPath/deps, and registers projectPath in the tracked set.
func (c *Cache) Store(
	projectPath string,
	deps []string,
	forward, reverse map[MethodId]MethodSet,
	definitions map[MethodId]MethodInfo,
	buildTime time.Duration,
	metadata map[string]string,
) error {
	if projectPath == "" {
		return fmt.Errorf("%w: empty project path", ErrInvalidArgument)
	}

	key := c.cacheKey(projectPath, deps)

	entry := CallGraphEntry{
		ProjectPath:      projectPath,
		CreatedAt:        time.Now(),
		DependenciesHash: c.hasher.HashSorted(deps),
		CompilerVersion:  c.compilerVersion,
		Forward:          forward,
		Reverse:          reverse,
		Definitions:      definitions,
		BuildTime:        buildTime,
		Metadata:         metadata,
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("callgraph: marshal entry: %w", err)
	}

	entry.UncompressedSize = int64(len(data))

	if err := c.store.Set(key, data, 0); err != nil {
		return fmt.Errorf("callgraph: store entry: %w", err)
	}

	c.stats.Stores.Add(1)

	c.mu.Lock()
	c.tracked[projectPath] = struct{}{}

	if c.projectKeys[projectPath] == nil {
		c.projectKeys[projectPath] = make(map[string]struct{})
	}

	c.projectKeys[projectPath][key] = struct{}{}
	c.mu.Unlock()

	if c.watcher != nil {
		if err := c.watcher.Watch(projectPath); err != nil {
			c.logger.Warn("callgraph: failed to watch project", "project_path", projectPath, "error", err)
		}
	}

	return nil
}

// InvalidateProject removes projectPath from the tracked set and
// best-effort sweeps every cache key known to have been stored under it.
func (c *Cache) InvalidateProject(projectPath string) {
	c.mu.Lock()
	keys := c.projectKeys[projectPath]
	delete(c.tracked, projectPath)
	delete(c.projectKeys, projectPath)
	c.mu.Unlock()

	for key := range keys {
		if c.store.Remove(key) {
			c.stats.Invalidations.Add(1)
		}
	}
}

// Maintenance sweeps the underlying blob store for expired and
// size-overflow entries, recording the completion time for Statistics.
func (c *Cache) Maintenance() (blobstore.MaintenanceResult, error) {
	result, err := c.store.Maintenance()
	if err != nil {
		return result, fmt.Errorf("callgraph: maintenance: %w", err)
	}

	c.mu.Lock()
	c.lastMaintenance = result.LastMaintenance
	c.mu.Unlock()

	return result, nil
}

// Clear empties the underlying blob store and resets the tracked-project
// and project-key bookkeeping to match.
func (c *Cache) Clear() error {
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("callgraph: clear: %w", err)
	}

	c.mu.Lock()
	c.tracked = make(map[string]struct{})
	c.projectKeys = make(map[string]map[string]struct{})
	c.mu.Unlock()

	return nil
}

// newestModTime scans root recursively for files matching extensions and
// returns the newest modification time found.
func newestModTime(root string, extensions []string) (time.Time, error) {
	matches := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		matches[ext] = struct{}{}
	}

	var newest time.Time

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil //nolint:nilerr // best-effort scan; unreadable entries are skipped
		}

		if _, ok := matches[filepath.Ext(path)]; !ok {
			return nil
		}

		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}

		return nil
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("callgraph: scan project: %w", err)
	}

	return newest, nil
}
