// Package compilation implements the multi-tier compilation cache: an
// in-process L1, an optional shared L2, and an on-disk L3 manifest tier,
// with promotion on hit and per-key single-flight deduplication.
package compilation

import (
	"context"
	"time"
)

// Manifest is the minimal record needed to reconstruct a Compilation by
// re-reading its source files and references. The compiled artifact
// itself is never serialized.
type Manifest struct {
	Key             string               `json:"key"`
	LastWriteTime   time.Time            `json:"last_write_time"`
	AssemblyName    string               `json:"assembly_name"`
	Language        string               `json:"language"`
	SourceFiles     []string             `json:"source_files"`
	SourceFileTimes map[string]time.Time `json:"source_file_times"`
	ReferencePaths  []string             `json:"reference_paths"`
}

// Compilation is the opaque, reconstructed artifact handed back to
// callers. It carries only the manifest that produced it plus a
// reconstruction timestamp; this module never models the compiler's
// actual in-memory representation.
type Compilation struct {
	Manifest Manifest
	BuiltAt  time.Time
	Reused   bool // true when reconstructed from a cached manifest rather than freshly built
}

// Factory builds a fresh Compilation and the Manifest describing it, for
// use on a cold cache miss across all three tiers.
type Factory func(ctx context.Context) (*Compilation, *Manifest, error)

// ReconstructFunc rebuilds a Compilation from a validated manifest by
// re-reading the manifest's recorded source files and references. It is
// supplied by the embedder, since reading and re-compiling sources is
// outside this cache's scope.
type ReconstructFunc func(ctx context.Context, manifest Manifest) (*Compilation, error)
