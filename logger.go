package binvecdb

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with binvecdb-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogIngest logs a batch ingestion operation.
func (l *Logger) LogIngest(ctx context.Context, count, batches int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"count", count,
			"batches", batches,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "ingest completed",
			"count", count,
			"batches", batches,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

// LogRemove logs a document removal.
func (l *Logger) LogRemove(ctx context.Context, id int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"id", id,
		)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, hits int, confident bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"k", k,
			"hits", hits,
			"confident", confident,
		)
	}
}

// LogSearchPhase logs the timing of a single search phase.
func (l *Logger) LogSearchPhase(ctx context.Context, phase string, candidates int, duration time.Duration) {
	l.DebugContext(ctx, "search phase completed",
		"phase", phase,
		"candidates", candidates,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogSave logs an index snapshot save.
func (l *Logger) LogSave(ctx context.Context, count int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index save failed",
			"count", count,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index saved",
			"count", count,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
