package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Indirections so tests can capture console output.
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager manages slog-based logging with optional OTel and Graylog output.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	// Dynamic context callbacks, evaluated on every record.
	GetActiveTrain func() string
	GetJourneyID   func() string
	GetFleetSize   func() int
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// handlerOptions formats timestamps as RFC3339 UTC.
func handlerOptions(lvl slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup initializes the logging system. Records go to file, or to stdout when
// file is nil, plus the OTel bridge when provider is set and any extra
// handlers (e.g. Graylog).
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	lvl := parseLevel(level)
	m.logProvider = provider
	opts := handlerOptions(lvl)

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, opts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, opts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("sierra-core", otelslog.WithLoggerProvider(provider)))
	}
	handlers = append(handlers, extra...)

	m.logger = slog.New(NewContextHandler(NewMultiHandler(handlers...), m.contextAttrs))
	m.logger.Info("Logging initialized", "level", level)
}

// contextAttrs reports the active train and journey on every record.
func (m *SlogManager) contextAttrs() []slog.Attr {
	var attrs []slog.Attr
	if m.GetActiveTrain != nil {
		if id := m.GetActiveTrain(); id != "" {
			attrs = append(attrs, slog.String("activeTrain", id))
		}
	}
	if m.GetJourneyID != nil {
		if id := m.GetJourneyID(); id != "" {
			attrs = append(attrs, slog.String("journey", id))
		}
	}
	if m.GetFleetSize != nil {
		attrs = append(attrs, slog.Int("fleet", m.GetFleetSize()))
	}
	return attrs
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a log entry tagged with the calling function.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}
	m.logger.Log(context.Background(), parseLevel(level), data, "function", functionName)
}
