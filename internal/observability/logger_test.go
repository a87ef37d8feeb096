package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/archokshi/optiinfra-sub000/internal/config"
)

// discardSyncer satisfies zapcore.WriteSyncer without touching stdout.
type discardSyncer struct{}

func (discardSyncer) Write(p []byte) (int, error) { return len(p), nil }
func (discardSyncer) Sync() error                 { return nil }

func TestInitializeStoresGlobalLogger(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "optiinfra-test",
	}, discardSyncer{})

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestInitializeRunsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	Initialize(config.LoggerConfig{Level: "error", Format: "json", ServiceName: "first"}, discardSyncer{})
	first := GetLogger()

	// A second initialization must not replace the stored logger.
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "second"}, discardSyncer{})
	assert.Same(t, first, GetLogger())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	Initialize(config.LoggerConfig{Level: "verbose", Format: "console", ServiceName: "optiinfra-test"}, discardSyncer{})

	logger := GetLogger()
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	// Must return a usable fallback, never nil.
	assert.NotNil(t, GetLogger())
}
