// Package logging owns the process-wide structured logger. Packages take
// component-scoped child loggers via WithComponent instead of constructing
// their own handlers.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// Logger returns the shared logger, lazily built from the environment:
//   - TICKETPILOT_LOG_FORMAT: "json" (default) or "text"
//   - TICKETPILOT_LOG_LEVEL:  debug | info | warn | error
//   - TICKETPILOT_LOG_SOURCE: "1" to include source positions
func Logger() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = build()
	}
	return defaultLogger
}

// SetLogger replaces the shared logger. Tests use this to capture output.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// WithComponent returns the shared logger scoped to one component.
func WithComponent(component string) *slog.Logger {
	return Logger().With("component", component)
}

func build() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(os.Getenv("TICKETPILOT_LOG_LEVEL")),
		AddSource: os.Getenv("TICKETPILOT_LOG_SOURCE") == "1",
	}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("TICKETPILOT_LOG_FORMAT"), "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", "ticketpilot")
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
