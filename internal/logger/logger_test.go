package logger

import (
	"medicine_importer/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("production logger honours level", func(t *testing.T) {
		l, err := New(config.LogConfig{Level: "warn"})
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("development logger", func(t *testing.T) {
		l, err := New(config.LogConfig{Level: "debug", Development: true})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := New(config.LogConfig{Level: "loud"})
		assert.Error(t, err)
	})
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
