package observability_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Chris-Cullins/TestIntel-sub003/pkg/observability"
	"github.com/Chris-Cullins/TestIntel-sub003/pkg/version"
)

func TestDefaultConfig_HasSensibleDefaults(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()

	assert.Equal(t, "testintel-engine", cfg.ServiceName)
	assert.Equal(t, observability.ModeLibrary, cfg.Mode)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5, cfg.ShutdownTimeoutSec)
	assert.False(t, cfg.StdoutTrace)
	assert.False(t, cfg.DebugTrace)
	assert.Equal(t, version.Version, cfg.ServiceVersion)
	assert.Empty(t, cfg.Environment)
}
