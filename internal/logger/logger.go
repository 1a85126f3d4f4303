// Package logger provides structured logging setup for rhythm-ls.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/rhythm-ls/internal/config"
)

const (
	asyncBuffer  = 1024
	asyncWorkers = 2
)

// level is shared by every logger built here so SetLevel applies to all of them.
var level slog.LevelVar

// New creates a *slog.Logger from the given Logging config writing JSON to stdout.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a *slog.Logger writing JSON to w with a "service"
// attribute on every record. The stdio and MCP transports own stdout, so
// they log to stderr instead.
func NewWithWriter(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	level.Set(parseLevel(cfg.Level))

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: &level,
	})
	var closer Closer = nopCloser{}
	if cfg.Async {
		async := NewAsyncHandler(handler, asyncBuffer, asyncWorkers)
		handler = async
		closer = async
	}
	// Request IDs are resolved before records are queued.
	handler = &contextHandler{inner: handler}

	return slog.New(handler).With("service", cfg.Service), closer
}

// SetLevel changes the minimum level of all loggers created by New.
func SetLevel(s string) {
	level.Set(parseLevel(s))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
