package compilation

import (
	"context"
	"fmt"
	"time"
)

// defaultSemanticModelCapacity bounds the number of per-file semantic
// models held in L1; there is no L2/L3 tier for this cache.
const defaultSemanticModelCapacity = 1024

// defaultSemanticModelTTL is the TTL applied when WithSemanticModelTTL is
// not set.
const defaultSemanticModelTTL = 15 * time.Minute

// SemanticModel is the opaque per-file artifact cached by
// GetOrCreateSemanticModel. Unlike Compilation, it is keyed by a single
// source file path rather than a source-set key, and never persists past
// L1: a cold process always rebuilds it.
type SemanticModel struct {
	Path       string
	Value      any
	BuiltAt    time.Time
	SourceTime time.Time
}

// SemanticModelFactory builds a fresh semantic model value for path.
type SemanticModelFactory func(ctx context.Context, path string) (any, error)

// GetOrCreateSemanticModel returns the cached semantic model for path if
// one is present, its TTL has not elapsed, and path's current mtime has
// not advanced past the mtime recorded when it was built; otherwise it
// rebuilds via factory and caches the result. This tier is L1-only: there
// is no L2/L3 fallback or promotion.
func (t *Tiers) GetOrCreateSemanticModel(ctx context.Context, path string, factory SemanticModelFactory) (*SemanticModel, error) {
	if model, ok := t.semanticModels.Get(path); ok {
		if t.isSemanticModelFresh(path, model) {
			t.stats.SemanticModelHits.Add(1)

			return model, nil
		}

		t.semanticModels.Delete(path)
	}

	t.stats.SemanticModelMisses.Add(1)

	info, err := t.stat(path)
	if err != nil {
		return nil, fmt.Errorf("compilation: stat semantic model source %q: %w", path, err)
	}

	value, err := factory(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("compilation: semantic model factory for %q: %w", path, err)
	}

	model := &SemanticModel{
		Path:       path,
		Value:      value,
		BuiltAt:    time.Now(),
		SourceTime: info.ModTime(),
	}

	t.semanticModels.Put(path, model)

	return model, nil
}

// isSemanticModelFresh reports whether model is still within its TTL and
// path's current mtime has not advanced past the mtime recorded at build.
func (t *Tiers) isSemanticModelFresh(path string, model *SemanticModel) bool {
	if t.semanticModelTTL > 0 && time.Since(model.BuiltAt) > t.semanticModelTTL {
		return false
	}

	info, err := t.stat(path)
	if err != nil {
		return false
	}

	return !info.ModTime().After(model.SourceTime)
}
