package callgraph

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSkipDirs are directory names never descended into while registering
// watches: version control, build output, and dependency trees churn
// constantly and carry no source-freshness signal.
var watchSkipDirs = map[string]struct{}{
	".git": {}, "bin": {}, "obj": {}, "node_modules": {}, "vendor": {},
}

const watchDebounce = 500 * time.Millisecond

// Watcher is an advisory file-change observer: it watches tracked project
// directories for create/write events on relevant extensions and posts the
// owning project path onto an invalidation channel. It holds no reference
// to a Cache; correctness of Cache.Get never depends on an event actually
// being delivered.
type Watcher struct {
	fsw        *fsnotify.Watcher
	extensions map[string]struct{}
	logger     *slog.Logger

	mu    sync.RWMutex
	roots []string // tracked project roots, longest-prefix matched against event paths
}

// NewWatcher creates a Watcher observing the given extensions (defaults to
// defaultFileExtensions when empty).
func NewWatcher(extensions []string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if len(extensions) == 0 {
		extensions = defaultFileExtensions
	}

	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[ext] = struct{}{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Watcher{fsw: fsw, extensions: extSet, logger: logger}, nil
}

// Watch registers projectPath (and its subdirectories, skipping
// watchSkipDirs) with the underlying fsnotify watcher.
func (w *Watcher) Watch(projectPath string) error {
	err := filepath.Walk(projectPath, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if os.IsPermission(walkErr) {
				return filepath.SkipDir
			}

			return nil //nolint:nilerr // best-effort: unreadable subtree is skipped, not fatal
		}

		if !info.IsDir() {
			return nil
		}

		if _, skip := watchSkipDirs[filepath.Base(path)]; skip && path != projectPath {
			return filepath.SkipDir
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			w.logger.Warn("callgraph: watcher failed to add directory", "path", path, "error", addErr)
		}

		return nil
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.roots = append(w.roots, projectPath)
	sort.Slice(w.roots, func(i, j int) bool { return len(w.roots[i]) > len(w.roots[j]) })
	w.mu.Unlock()

	return nil
}

// projectFor resolves a changed file's path to the longest matching
// tracked root, or "" if none matches.
func (w *Watcher) projectFor(path string) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, root := range w.roots {
		if strings.HasPrefix(path, root) {
			return root
		}
	}

	return ""
}

func (w *Watcher) matchesExtension(path string) bool {
	_, ok := w.extensions[filepath.Ext(path)]

	return ok
}

// Run drives the fsnotify event loop, posting debounced project-path
// invalidations onto invalidate, until the watcher is closed. Intended to
// run in its own goroutine.
func (w *Watcher) Run(invalidate chan<- string) {
	pending := make(map[string]*time.Timer)

	var mu sync.Mutex

	fire := func(projectPath string) {
		mu.Lock()
		delete(pending, projectPath)
		mu.Unlock()

		select {
		case invalidate <- projectPath:
		default:
		}
	}

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			if !w.matchesExtension(event.Name) {
				continue
			}

			projectPath := w.projectFor(event.Name)
			if projectPath == "" {
				continue
			}

			mu.Lock()

			if timer, exists := pending[projectPath]; exists {
				timer.Stop()
			}

			pending[projectPath] = time.AfterFunc(watchDebounce, func() { fire(projectPath) })

			mu.Unlock()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			w.logger.Warn("callgraph: watcher error", "error", err)
		}
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
