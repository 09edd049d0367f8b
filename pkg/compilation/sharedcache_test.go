package compilation_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/compilation"
)

// memorySharedCache is a minimal in-memory SharedCache stand-in for an L2
// tier normally backed by a networked cache shared across processes.
type memorySharedCache struct {
	mu        sync.Mutex
	manifests map[string]compilation.Manifest
}

func newMemorySharedCache() *memorySharedCache {
	return &memorySharedCache{manifests: make(map[string]compilation.Manifest)}
}

func (m *memorySharedCache) GetManifest(_ context.Context, key string) (compilation.Manifest, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	manifest, ok := m.manifests[key]

	return manifest, ok, nil
}

func (m *memorySharedCache) SetManifest(_ context.Context, key string, manifest compilation.Manifest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.manifests[key] = manifest

	return nil
}

func TestGetOrCreateCompilation_L2HitPromotesToL1(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "E.cs")
	require.NoError(t, os.WriteFile(path, []byte("class E {}"), 0o600))

	info, err := os.Stat(path)
	require.NoError(t, err)

	shared := newMemorySharedCache()

	reconstruct := func(_ context.Context, manifest compilation.Manifest) (*compilation.Compilation, error) {
		return &compilation.Compilation{Manifest: manifest, BuiltAt: time.Now()}, nil
	}

	require.NoError(t, shared.SetManifest(context.Background(), "l2-key", compilation.Manifest{
		Key:             "l2-key",
		AssemblyName:    "Demo",
		Language:        "csharp",
		SourceFiles:     []string{path},
		SourceFileTimes: map[string]time.Time{path: info.ModTime()},
	}))

	tiers, err := compilation.New(10, t.TempDir(),
		compilation.WithSharedCache(shared),
		compilation.WithReconstructFunc(reconstruct),
	)
	require.NoError(t, err)

	compiled, err := tiers.GetOrCreateCompilation(context.Background(), "l2-key", func(context.Context) (*compilation.Compilation, *compilation.Manifest, error) {
		t.Fatal("factory should not run on an L2 hit")

		return nil, nil, nil
	})
	require.NoError(t, err)
	assert.True(t, compiled.Reused)

	stats := tiers.Statistics()
	assert.Equal(t, int64(1), stats.L2Hits)
}
