package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/terraconstructs/estate/internal/config"
)

// New creates the process logger from configuration. Output goes to stderr
// so command output on stdout stays machine readable.
func New(cfg config.LoggingConfig, version string) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg, version)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "estateapi"),
		slog.String("version", version),
	})
	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Default is used before configuration is loaded.
func Default() *slog.Logger {
	return New(config.LoggingConfig{Level: "info", Format: "text"}, "dev")
}

// Discard returns a logger that drops every record. Intended for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
