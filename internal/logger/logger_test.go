package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("Error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("INFO"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}

func TestNew_RespectsLevel(t *testing.T) {
	l := New("ERROR", FormatJSON)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))

	l = New("DEBUG", FormatConsole)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestFor_Named(t *testing.T) {
	assert.NotNil(t, For(ComponentOrchestrator))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := For(ComponentCLI)
	assert.Same(t, l, OrNop(l))
}
