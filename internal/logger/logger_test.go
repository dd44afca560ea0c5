package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG").Level())
	assert.Equal(t, zapcore.WarnLevel, parseLevel(" warn ").Level())
	assert.Equal(t, zapcore.InfoLevel, parseLevel("").Level())
	assert.Equal(t, zapcore.InfoLevel, parseLevel("loud").Level())
}

func TestNew(t *testing.T) {
	l, err := New("production", "error")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))

	dev, err := New("development", "debug")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}
