// Package logging sets up the structured logger shared by ripple's
// commands and servers, and carries it through context.Context.
//
// Output goes to stderr so command output on stdout stays machine-readable:
//
//	logger := logging.New(cfg.Log, os.Stderr)
//	ctx := logging.WithLogger(ctx, logger)
//	logging.FromContext(ctx).Info("job submitted", "execution_id", id)
//
// Callers must not log credentials. Log their presence instead:
//
//	logger.Info("relay ready", "key_present", key != "")
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/msalah0e/ripple/internal/config"
)

// ParseLevel maps a config level name to a slog level. Unknown names map
// to Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// New builds a logger writing to w in the configured format.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if cfg.Format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("app", "ripple")
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type key struct{}

// WithLogger returns a new context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// FromContext returns the logger carried by ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(key{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
