package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RogersSierra/extension/internal/dispatcher"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "raw: %s", buf.String())
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		log   func(dl *DispatcherLogger)
		level string
		msg   string
	}{
		{"debug", func(dl *DispatcherLogger) { dl.Debug("handling event", "command", ":TICK:") }, "debug", "handling event"},
		{"info", func(dl *DispatcherLogger) { dl.Info("train spawned", "command", ":SPAWN:") }, "info", "train spawned"},
		{"error", func(dl *DispatcherLogger) { dl.Error("event failed", "command", ":TICK:") }, "error", "event failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

			tt.log(dl)

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["message"])
			assert.NotEmpty(t, entry["command"])
		})
	}
}

func TestDispatcherLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf))

	dl.Info("tick", "dt", 0.016, "train", "a", "error", errors.New("boom"), 42, "ignored", "dangling")

	entry := decodeLine(t, &buf)
	assert.Equal(t, 0.016, entry["dt"])
	assert.Equal(t, "a", entry["train"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotContains(t, entry, "dangling")
}

func TestDispatcherLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	dl := NewDispatcherLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))

	dl.Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestNewZerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerolog(&buf, "warn")

	logger.Info().Msg("quiet")
	logger.Warn().Str("train", "a").Msg("loud")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "loud")
	assert.Contains(t, out, "train=a")
}

func TestParseZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, parseZerologLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, parseZerologLevel("DEBUG"))
	assert.Equal(t, zerolog.ErrorLevel, parseZerologLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseZerologLevel("nonsense"))
}

func TestDispatcherLogger_ImplementsInterface(t *testing.T) {
	var _ dispatcher.Logger = NewDispatcherLogger(zerolog.Nop())
}
