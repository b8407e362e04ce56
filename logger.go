package vecsim

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with pipeline-specific helpers.
// Field names are consistent across stages.
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
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithRun adds a run_id field to the logger.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.Logger.With("run_id", runID)}
}

// WithMetric adds a metric field to the logger.
func (l *Logger) WithMetric(metric string) *Logger {
	return &Logger{Logger: l.Logger.With("metric", metric)}
}

// LogGenerate logs a matrix generation.
func (l *Logger) LogGenerate(ctx context.Context, rows, dimension int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "generate failed",
			"rows", rows,
			"dimension", dimension,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "generate completed",
		"rows", rows,
		"dimension", dimension,
		"elapsed", elapsed,
	)
}

// LogConvert logs a wide-to-long conversion.
func (l *Logger) LogConvert(ctx context.Context, edges int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "convert failed", "error", err)
		return
	}
	l.DebugContext(ctx, "convert completed", "edges", edges)
}

// LogRank logs a ranking pass.
func (l *Logger) LogRank(ctx context.Context, edges, groups int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "rank failed",
			"edges", edges,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "rank completed",
		"edges", edges,
		"groups", groups,
	)
}

// LogExport logs an artifact export.
func (l *Logger) LogExport(ctx context.Context, blob string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "export failed",
			"blob", blob,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "export completed",
		"blob", blob,
		"bytes", bytes,
	)
}
