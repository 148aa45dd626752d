package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type printerMock struct {
	lines []string
}

func (p *printerMock) Output(_ int, s string) error {
	p.lines = append(p.lines, s)
	return nil
}

func Test_BWLogger(t *testing.T) {
	t.Run("debug output is printed only in debug mode", func(t *testing.T) {
		p := &printerMock{}
		lg := NewBWLogger(p, false)

		lg.Debugf("hidden %d", 1)
		lg.Successf("migrated [%s]", "1.0.0")
		lg.Infof("info")
		lg.Error(errors.New("boom"))

		assert.Equal(t, []string{"kvtern: migrated [1.0.0]", "kvtern: info", "kvtern error: boom"}, p.lines)
	})

	t.Run("debug mode", func(t *testing.T) {
		p := &printerMock{}
		NewBWLogger(p, true).Debugf("shown %d", 2)
		assert.Equal(t, []string{"kvtern debug: shown 2"}, p.lines)
	})
}

func Test_ColoredLogger(t *testing.T) {
	p := &printerMock{}
	lg := NewColorLogger(p, true)

	lg.Successf("migrated [%s]", "1.0.0")
	lg.Debugf("debug")
	lg.Error(errors.New("boom"))

	require.Len(t, p.lines, 3)
	assert.Contains(t, p.lines[0], "kvtern: migrated [1.0.0]")
	assert.Contains(t, p.lines[1], "kvtern debug: debug")
	assert.Contains(t, p.lines[2], "kvtern error: boom")
	assert.NotEqual(t, "kvtern: migrated [1.0.0]", p.lines[0])
}

func Test_ZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lg := NewZapLogger(zap.New(core))

	lg.Successf("migrated [%s]", "1.0.0")
	lg.Debugf("debug %d", 1)
	lg.Error(errors.New("boom"))

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, "migrated [1.0.0]", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, true, entries[0].ContextMap()["success"])
	assert.Equal(t, "kvtern", entries[0].ContextMap()["service"])

	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["error"])

	assert.NotPanics(t, func() { NewZapLogger(nil).Infof("nop") })
}

func Test_ZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	lg := NewZerologLogger(zerolog.New(&buf))

	lg.Successf("migrated [%s]", "1.0.0")
	lg.Error(errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"migrated [1.0.0]"`)
	assert.Contains(t, lines[0], `"service":"kvtern"`)
	assert.Contains(t, lines[0], `"success":true`)
	assert.Contains(t, lines[1], `"level":"error"`)
	assert.Contains(t, lines[1], `"error":"boom"`)
}
