// Package log provides structured logging for the console.
// It wraps slog with sensible defaults for production use.
package log

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once

	tapMu sync.RWMutex
	taps  []slog.Handler
)

// Init initializes the global logger.
// Valid levels: "debug", "info", "warn", "error".
// Valid formats: "json", "text"; empty picks JSON when GO_ENV=production.
func Init(level, format string) {
	once.Do(func() {
		var lvl slog.Level
		switch level {
		case "debug":
			lvl = slog.LevelDebug
		case "warn":
			lvl = slog.LevelWarn
		case "error":
			lvl = slog.LevelError
		default:
			lvl = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{
			Level: lvl,
		}

		var base slog.Handler
		switch {
		case format == "json":
			base = slog.NewJSONHandler(os.Stdout, opts)
		case format == "" && os.Getenv("GO_ENV") == "production":
			base = slog.NewJSONHandler(os.Stdout, opts)
		default:
			base = slog.NewTextHandler(os.Stdout, opts)
		}

		logger = slog.New(&teeHandler{base: base})
		slog.SetDefault(logger)
	})
}

// Tee registers an additional handler that receives a copy of every
// record. The dashboard log tail hooks in here.
func Tee(h slog.Handler) {
	tapMu.Lock()
	taps = append(taps, h)
	tapMu.Unlock()
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info", "")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// teeHandler forwards records to the base handler and to every
// registered tap. Taps are global so derived loggers keep teeing.
type teeHandler struct {
	base slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.base.Enabled(ctx, lvl)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.base.Handle(ctx, r)
	tapMu.RLock()
	defer tapMu.RUnlock()
	for _, t := range taps {
		if t.Enabled(ctx, r.Level) {
			_ = t.Handle(ctx, r.Clone())
		}
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{base: h.base.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{base: h.base.WithGroup(name)}
}
