// Package xlog wraps log/slog with the time-stamped, level-prefixed line
// format the core uses for recoverable-error reporting (spec.md section 7).
package xlog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// lineHandler renders one line per record: "2006-01-02 15:04:05 LEVEL msg key=val ...".
type lineHandler struct {
	out   io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
	level slog.Leveler
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.Format(time.DateTime))
	b.WriteByte(' ')
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next = append(next, h.attrs...)
	next = append(next, attrs...)
	return &lineHandler{out: h.out, mu: h.mu, attrs: next, level: h.level}
}

func (h *lineHandler) WithGroup(_ string) slog.Handler {
	// Groups are not represented in the flat line format; flatten instead.
	return h
}

// New returns a logger that writes one line per record to out.
func New(out io.Writer, level slog.Leveler) *slog.Logger {
	if out == nil {
		out = os.Stderr
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return slog.New(&lineHandler{out: out, mu: &sync.Mutex{}, level: level})
}

// Discard returns a logger that drops every record; used by tests that don't
// care about log output but still need a non-nil *slog.Logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
