package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
)

// gelfWriter is the part of *gelf.Writer the handler needs.
type gelfWriter interface {
	WriteMessage(m *gelf.Message) error
}

// GelfHandler ships slog records to Graylog as GELF messages.
type GelfHandler struct {
	w        gelfWriter
	level    slog.Level
	host     string
	facility string
	attrs    []slog.Attr
	group    string
}

// NewGelfHandler dials the Graylog UDP input at addr.
func NewGelfHandler(addr, level, facility string) (*GelfHandler, *gelf.Writer, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GELF writer: %w", err)
	}
	w.Facility = facility
	return newGelfHandler(w, parseLevel(level), facility), w, nil
}

func newGelfHandler(w gelfWriter, level slog.Level, facility string) *GelfHandler {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GelfHandler{w: w, level: level, host: host, facility: facility}
}

// Enabled implements slog.Handler.
func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle implements slog.Handler.
func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addGelfField(extra, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addGelfField(extra, h.group, a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return h.w.WriteMessage(&gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(ts.UnixNano()) / float64(time.Second),
		Level:    syslogLevel(r.Level),
		Facility: h.facility,
		Extra:    extra,
	})
}

// WithAttrs implements slog.Handler.
func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), prefixed(h.group, attrs)...)
	return &next
}

// WithGroup implements slog.Handler.
func (h *GelfHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	if next.group != "" {
		name = next.group + "." + name
	}
	next.group = name
	return &next
}

func prefixed(group string, attrs []slog.Attr) []slog.Attr {
	if group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: group + "." + a.Key, Value: a.Value}
	}
	return out
}

// addGelfField flattens groups into dotted keys. GELF additional fields carry
// a leading underscore.
func addGelfField(extra map[string]any, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			addGelfField(extra, key, ga)
		}
		return
	}
	extra["_"+key] = v.String()
}

// syslogLevel maps slog levels onto syslog severities.
func syslogLevel(l slog.Level) int32 {
	switch {
	case l >= slog.LevelError:
		return 3
	case l >= slog.LevelWarn:
		return 4
	case l >= slog.LevelInfo:
		return 6
	default:
		return 7
	}
}
