// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging shared across the cache, traversal, and coverage engines.
package observability

import (
	"log/slog"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/version"
)

// AppMode identifies the execution mode the engine is embedded in.
type AppMode string

const (
	// ModeLibrary is the default in-process embedding mode.
	ModeLibrary AppMode = "library"
	// ModeWorker is a standalone worker process hosting the cache tiers.
	ModeWorker AppMode = "worker"
)

const (
	// defaultServiceName is the default OTel service name.
	defaultServiceName = "testintel-engine"

	// defaultShutdownTimeoutSec is the default shutdown timeout in seconds.
	defaultShutdownTimeoutSec = 5
)

// Config holds all observability configuration.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the semantic version of the running binary.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production", "staging", "dev").
	Environment string

	// Mode identifies how the engine is embedded.
	Mode AppMode

	// StdoutTrace enables a stdout span exporter for local debugging.
	// When false, the tracer still generates real trace/span IDs for log
	// correlation but spans are never exported anywhere.
	StdoutTrace bool

	// DebugTrace forces 100% trace sampling when true.
	DebugTrace bool

	// SampleRatio is the trace sampling ratio (0.0 to 1.0) when DebugTrace is false.
	// Zero uses the OTel SDK default (parent-based with always-on root).
	SampleRatio float64

	// LogLevel controls the minimum slog severity.
	LogLevel slog.Level

	// TraceVerbose enables hot-path spans (per-node BFS visit, per-blob I/O).
	// When false (default), only structural operation spans are recorded.
	TraceVerbose bool

	// LogJSON enables JSON-formatted log output.
	LogJSON bool

	// ShutdownTimeoutSec is the maximum seconds to wait for flush on shutdown.
	ShutdownTimeoutSec int
}

// DefaultConfig returns a Config with sensible defaults for zero-config startup.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		ServiceVersion:     version.Version,
		Mode:               ModeLibrary,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}
