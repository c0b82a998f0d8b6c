package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/nevc-media/vidstream/common/middleware"
)

// Logger wraps slog.Logger and adds request-scoped attributes taken from the
// context (currently the request ID set by middleware.RequestID).
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to stdout.
// format is "json" or "text"; anything else falls back to json.
func New(level slog.Level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{Logger: slog.New(contextHandler{handler})}
}

// contextHandler adds the request ID stored in the record's context, so every
// slog.*Context call made while serving a request carries it.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		r.AddAttrs(slog.String(FieldRequestID, reqID))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// With returns a new Logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel converts "debug", "info", "warn" or "error" to a slog.Level.
// Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs l as the process-wide slog default.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
