package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/ryandielhenn/dtngossip/internal/config"
)

func TestNewLevels(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := New(config.LoggerConfig{Level: "warn", Format: format})
		require.NoError(t, err, format)
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(config.LoggerConfig{Level: "loud", Format: "json"})
	require.Error(t, err)

	_, err = New(config.LoggerConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}
