// Package logging provides structured logging for the archivist application.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, false) // Text format
//	logging.Init(slog.LevelDebug, true) // JSON format for production
//
//	// Get a component logger
//	log := logging.Component("archive")
//	log.Info("opened archive", "path", path)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	InitWithWriter(os.Stdout, level, jsonFormat)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(w io.Writer, level slog.Level, jsonFormat bool) {
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
	logger = l
	mu.Unlock()
	slog.SetDefault(l)
}

// Logger returns the global logger, initializing a text logger at info
// level on first use.
func Logger() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(slog.LevelInfo, false)
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// With returns a new logger with additional attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("bot")
//	log.Info("started") // Output: time=... level=INFO component=bot msg=started
func Component(name string) *slog.Logger {
	return Logger().With("component", name)
}

// WithContext returns a logger that includes context values.
func WithContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = Logger()
	}
	if channel, ok := ctx.Value(contextKeyChannel).(string); ok {
		base = base.With("channel", channel)
	}
	if path, ok := ctx.Value(contextKeyPath).(string); ok {
		base = base.With("path", path)
	}
	return base
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyChannel contextKey = iota
	contextKeyPath
)

// ContextWithChannel adds a channel name to the context for logging.
func ContextWithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, contextKeyChannel, channel)
}

// ContextWithPath adds an archive path to the context for logging.
func ContextWithPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, contextKeyPath, path)
}
