package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGelf struct {
	messages []*gelf.Message
}

func (f *fakeGelf) WriteMessage(m *gelf.Message) error {
	f.messages = append(f.messages, m)
	return nil
}

func TestGelfHandler_WritesMessage(t *testing.T) {
	w := &fakeGelf{}
	logger := slog.New(newGelfHandler(w, slog.LevelInfo, "sierra"))

	logger.With("train", "a").WithGroup("boiler").Warn("safety valve lifted", "pressure", 260.5)
	logger.Debug("filtered")

	require.Len(t, w.messages, 1)
	m := w.messages[0]
	assert.Equal(t, "1.1", m.Version)
	assert.Equal(t, "safety valve lifted", m.Short)
	assert.Equal(t, int32(4), m.Level)
	assert.Equal(t, "sierra", m.Facility)
	assert.Equal(t, "a", m.Extra["_train"])
	assert.Equal(t, "260.5", m.Extra["_boiler.pressure"])
	assert.Greater(t, m.TimeUnix, 0.0)
}

func TestGelfHandler_Groups(t *testing.T) {
	w := &fakeGelf{}
	h := newGelfHandler(w, slog.LevelDebug, "sierra")

	assert.Same(t, h, h.WithGroup(""))
	logger := slog.New(h)
	logger.Info("tick", slog.Group("pose", "angle", 90))

	require.Len(t, w.messages, 1)
	assert.Equal(t, "90", w.messages[0].Extra["_pose.angle"])
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestSyslogLevel(t *testing.T) {
	assert.Equal(t, int32(7), syslogLevel(slog.LevelDebug))
	assert.Equal(t, int32(6), syslogLevel(slog.LevelInfo))
	assert.Equal(t, int32(4), syslogLevel(slog.LevelWarn))
	assert.Equal(t, int32(3), syslogLevel(slog.LevelError))
}
