// Package logging provides structured logging for tremor.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.InitWriter(os.Stderr, slog.LevelInfo, false) // Text format
//	logging.InitWriter(os.Stderr, slog.LevelDebug, true) // JSON format for batch runs
//
//	// Get a component logger
//	log := logging.Component("calc")
//	log.Info("risk inputs built", "blocks", 8)
//
//	// Log with context
//	log := logging.WithContext(ctx)
//	log.Error("block failed", "error", err, "block", i)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu sync.RWMutex

	// Logger is the global logger instance.
	Logger *slog.Logger
)

// InitWriter initializes the global logger writing to w with the specified
// level and format. If jsonFormat is true, logs are output as JSON; otherwise,
// human-readable text. The CLI passes stderr so that tables and query results
// on stdout stay clean.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	InitWithHandler(handler)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	l := slog.New(handler)

	mu.Lock()
	Logger = l
	mu.Unlock()

	slog.SetDefault(l)
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func logger() *slog.Logger {
	mu.RLock()
	l := Logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	InitWriter(os.Stderr, slog.LevelInfo, false)
	mu.RLock()
	defer mu.RUnlock()
	return Logger
}

// With returns a new logger with additional attributes.
func With(args ...any) *slog.Logger {
	return logger().With(args...)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("aggregate")
//	log.Info("merged") // Output: time=... level=INFO component=aggregate msg=merged
func Component(name string) *slog.Logger {
	return logger().With("component", name)
}

// WithContext returns a logger that includes context values.
func WithContext(ctx context.Context) *slog.Logger {
	l := logger()

	if calcID, ok := ctx.Value(contextKeyCalcID).(string); ok {
		l = l.With("calc_id", calcID)
	}
	if taxonomy, ok := ctx.Value(contextKeyTaxonomy).(string); ok {
		l = l.With("taxonomy", taxonomy)
	}
	if block, ok := ctx.Value(contextKeyBlock).(int); ok {
		l = l.With("block", block)
	}

	return l
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyCalcID contextKey = iota
	contextKeyTaxonomy
	contextKeyBlock
)

// ContextWithCalcID adds a calculation ID to the context for logging.
func ContextWithCalcID(ctx context.Context, calcID string) context.Context {
	return context.WithValue(ctx, contextKeyCalcID, calcID)
}

// ContextWithTaxonomy adds a taxonomy to the context for logging.
func ContextWithTaxonomy(ctx context.Context, taxonomy string) context.Context {
	return context.WithValue(ctx, contextKeyTaxonomy, taxonomy)
}

// ContextWithBlock adds a risk input block index to the context for logging.
func ContextWithBlock(ctx context.Context, block int) context.Context {
	return context.WithValue(ctx, contextKeyBlock, block)
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}
