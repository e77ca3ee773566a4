package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dunamismax/transformd/internal/config"
)

func TestNewLevel(t *testing.T) {
	logger, err := NewWith(config.LogConfig{Level: "warn"}, func(cfg *zap.Config) {
		cfg.OutputPaths = []string{"stderr"}
	}, "api")
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewDevelopmentDefaultsToDebug(t *testing.T) {
	logger, err := New(config.LogConfig{Development: true}, "worker")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, "")
	assert.Error(t, err)
}
