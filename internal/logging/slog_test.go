package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestSetup_Sinks(t *testing.T) {
	t.Run("file set keeps stdout quiet", func(t *testing.T) {
		stop := captureStdout(t)
		var file bytes.Buffer
		m := NewSlogManager()
		m.Setup(&file, "info", nil)
		m.Logger().Info("boiler charged")

		assert.Empty(t, stop())
		assert.Contains(t, file.String(), "boiler charged")
	})

	t.Run("no file falls back to stdout", func(t *testing.T) {
		stop := captureStdout(t)
		m := NewSlogManager()
		m.Setup(nil, "info", nil)
		m.Logger().Info("console only")

		assert.Contains(t, stop(), "console only")
	})

	t.Run("extra handlers receive records", func(t *testing.T) {
		var file, graylog bytes.Buffer
		m := NewSlogManager()
		m.Setup(&file, "info", sdklog.NewLoggerProvider(), slog.NewTextHandler(&graylog, nil))
		m.Logger().Info("derailed")

		assert.Contains(t, file.String(), "derailed")
		assert.Contains(t, graylog.String(), "derailed")
	})

	t.Run("re-setup moves output", func(t *testing.T) {
		var initLog, coreLog bytes.Buffer
		m := NewSlogManager()
		m.Setup(&initLog, "info", nil)
		m.Setup(&coreLog, "info", nil)
		m.Logger().Info("spawned")

		assert.NotContains(t, initLog.String(), "spawned")
		assert.Contains(t, coreLog.String(), "spawned")
	})
}

func TestSetup_LevelFilter(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"debug", true},
		{"info", false},
		{"WARN", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tt.level, nil)
			m.Logger().Debug("piston stroke")

			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("piston stroke")))
		})
	}
}

func TestSetup_TrainContext(t *testing.T) {
	var buf bytes.Buffer
	active, journey, fleet := "", "", 0
	m := NewSlogManager()
	m.GetActiveTrain = func() string { return active }
	m.GetJourneyID = func() string { return journey }
	m.GetFleetSize = func() int { return fleet }
	m.Setup(&buf, "info", nil)

	m.Logger().Info("idle")
	assert.NotContains(t, buf.String(), "activeTrain=")
	assert.NotContains(t, buf.String(), "journey=")
	assert.Contains(t, buf.String(), "fleet=0")

	buf.Reset()
	active, journey, fleet = "train-7", "j-1", 2
	m.Logger().Info("driving")
	out := buf.String()
	assert.Contains(t, out, "activeTrain=train-7")
	assert.Contains(t, out, "journey=j-1")
	assert.Contains(t, out, "fleet=2")
}

func TestWriteLog(t *testing.T) {
	t.Run("before setup is a no-op", func(t *testing.T) {
		NewSlogManager().WriteLog(":TICK:", "ignored", "WARN")
	})

	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR", "bogus"} {
		t.Run(level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, "debug", nil)
			m.WriteLog(":SPAWN:", "wheel set rejected", level)

			assert.Contains(t, buf.String(), "wheel set rejected")
			assert.Contains(t, buf.String(), "function=:SPAWN:")
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"Error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestLoggerAndFlush_BeforeSetup(t *testing.T) {
	m := NewSlogManager()
	assert.Equal(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Flush(context.Background()))
}

func TestFlush_WithProvider(t *testing.T) {
	var buf bytes.Buffer
	m := NewSlogManager()
	m.Setup(&buf, "info", sdklog.NewLoggerProvider())
	assert.NoError(t, m.Flush(context.Background()))
}

// captureStdout swaps the console writer for a pipe; the returned func
// restores it and yields what was written.
func captureStdout(t *testing.T) func() string {
	t.Helper()
	r, w, err := osPipe()
	require.NoError(t, err)

	orig := osStdout
	osStdout = w
	return func() string {
		_ = w.Close()
		osStdout = orig
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(r)
		_ = r.Close()
		return buf.String()
	}
}
