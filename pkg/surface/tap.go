package surface

import (
	"context"
	"log/slog"
	"strings"
)

// logTap adapts the dashboard log ring to a slog.Handler so the
// process log stream can be teed onto connected dashboards.
type logTap struct {
	s *Server
}

// LogHandler returns a slog.Handler that mirrors info-and-above
// records onto the dashboard log feed.
func (s *Server) LogHandler() slog.Handler {
	return &logTap{s: s}
}

func (t *logTap) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (t *logTap) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(a.String())
		return true
	})
	t.s.AddLog(strings.ToLower(r.Level.String()), b.String())
	return nil
}

func (t *logTap) WithAttrs(attrs []slog.Attr) slog.Handler { return t }

func (t *logTap) WithGroup(name string) slog.Handler { return t }
