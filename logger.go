package segfile

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger with segfile-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithScope adds a scope field to the logger.
func (l *Logger) WithScope(scope string) *Logger {
	return &Logger{
		Logger: l.Logger.With("scope", scope),
	}
}

// WithFile tags the logger with a file's resource description and id.
func (l *Logger) WithFile(resource string, id uuid.UUID) *Logger {
	return &Logger{
		Logger: l.Logger.With("resource", resource, "id", id.String()),
	}
}

// LogCreate logs the construction of a CREATE handle.
func (l *Logger) LogCreate(ctx context.Context, bufferSize int) {
	l.DebugContext(ctx, "file created",
		"buffer", bufferSize,
	)
}

// LogFlush logs a content segment write.
func (l *Logger) LogFlush(ctx context.Context, segment uint32, size int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "segment flush failed",
			"segment", segment,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "segment flushed",
			"segment", segment,
			"size", size,
		)
	}
}

// LogClose logs the commit of a file.
func (l *Logger) LogClose(ctx context.Context, length uint64, segments uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"length", length,
			"segments", segments,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "file committed",
			"length", length,
			"segments", segments,
		)
	}
}

// LogOpen logs a READ-mode open.
func (l *Logger) LogOpen(ctx context.Context, resource string, length uint64, err error) {
	if err != nil {
		l.WarnContext(ctx, "open failed",
			"resource", resource,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "file opened",
			"resource", resource,
			"length", length,
		)
	}
}

// LogOrphans logs the result of an orphan scan.
func (l *Logger) LogOrphans(ctx context.Context, scope string, orphans int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "orphan scan failed",
			"scope", scope,
			"error", err,
		)
	} else if orphans > 0 {
		l.WarnContext(ctx, "orphaned files found",
			"scope", scope,
			"orphans", orphans,
		)
	} else {
		l.InfoContext(ctx, "no orphaned files",
			"scope", scope,
		)
	}
}
