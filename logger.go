package mondoc

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with mondoc-specific context.
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

	return &Logger{Logger: slog.New(handler)}
}

// NopLogger creates a Logger that discards all log output.
func NopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})

	return &Logger{Logger: slog.New(handler)}
}

// WithEntity adds the entity name to the logger.
func (l *Logger) WithEntity(name string) *Logger {
	return &Logger{Logger: l.Logger.With("entity", name)}
}
