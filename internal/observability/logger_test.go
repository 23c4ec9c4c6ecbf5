// internal/observability/logger_test.go
package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/profenpoche/daav-sub000/internal/config"
)

// arrayEncoderStub captures appended strings from a level encoder.
type arrayEncoderStub struct {
	zapcore.PrimitiveArrayEncoder
	values []string
}

func (s *arrayEncoderStub) AppendString(v string) { s.values = append(s.values, v) }

func TestColorizedLevelEncoder(t *testing.T) {
	t.Parallel()

	colors := config.ColorConfig{Info: "green", Error: "red"}
	encode := colorizedLevelEncoder(colors)

	t.Run("configured level is wrapped in ANSI codes", func(t *testing.T) {
		stub := &arrayEncoderStub{}
		encode(zapcore.InfoLevel, stub)
		assert.Len(t, stub.values, 1)
		assert.True(t, strings.HasPrefix(stub.values[0], "\x1b[32m"))
		assert.Contains(t, stub.values[0], "INFO")
		assert.True(t, strings.HasSuffix(stub.values[0], colorReset))
	})

	t.Run("unconfigured level stays plain", func(t *testing.T) {
		stub := &arrayEncoderStub{}
		encode(zapcore.WarnLevel, stub)
		assert.Equal(t, []string{"WARN"}, stub.values)
	})
}

func TestNewEncoderFormatSelection(t *testing.T) {
	t.Parallel()

	// Console and JSON encoders render an entry differently; checking the
	// concrete type would couple the test to zap internals, so render instead.
	entry := zapcore.Entry{Level: zapcore.InfoLevel, Message: "hello"}

	consoleBuf, err := newEncoder("console", config.ColorConfig{}).EncodeEntry(entry, nil)
	assert.NoError(t, err)
	jsonBuf, err := newEncoder("json", config.ColorConfig{}).EncodeEntry(entry, nil)
	assert.NoError(t, err)

	assert.NotEqual(t, consoleBuf.String(), jsonBuf.String())
	assert.True(t, strings.HasPrefix(strings.TrimSpace(jsonBuf.String()), "{"))
}

func TestGetLoggerFallback(t *testing.T) {
	// Intentionally not parallel: reads the global logger state.
	assert.NotNil(t, GetLogger())
}
