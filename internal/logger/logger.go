// Package logger builds the [slog.Logger] shared by every fetch component.
//
// Records are written to the error stream as single lines of the form
//
//	<level>: <message> [key=value ...]
//
// which keeps diagnostics greppable from build scripts. The level is
// derived from the verbose, silent and show-error switches via [Level].
package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

// LevelOff is above every level emitted by fetch, silencing the logger.
const LevelOff = slog.LevelError + 100

// Level maps the verbosity switches to a minimum level. The default is
// warn, verbose lowers it to info, silent disables logging unless
// showError keeps errors visible.
func Level(verbose, silent, showError bool) slog.Level {
	switch {
	case silent && showError:
		return slog.LevelError
	case silent:
		return LevelOff
	case verbose:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// New returns a logger writing to w at the given minimum level.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(NewHandler(w, level))
}

// Handler is a [slog.Handler] producing "<level>: <message>" lines.
type Handler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

// NewHandler creates a Handler. A nil level defaults to warn.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelWarn
	}

	return &Handler{
		mu:    &sync.Mutex{},
		w:     w,
		level: level,
	}
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	buf.WriteString(strings.ToLower(r.Level.String()))
	buf.WriteString(": ")
	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		appendAttr(&buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.prefix, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cpy := *h
	cpy.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	cpy.attrs = append(cpy.attrs, h.attrs...)
	for _, a := range attrs {
		cpy.attrs = append(cpy.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}

	return &cpy
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	cpy := *h
	cpy.prefix = h.prefix + name + "."

	return &cpy
}

func appendAttr(buf *bytes.Buffer, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(buf, prefix+a.Key+".", ga)
		}
		return
	}

	val := a.Value.String()
	if val == "" || strings.ContainsAny(val, " \t\"=") {
		val = strconv.Quote(val)
	}

	buf.WriteByte(' ')
	buf.WriteString(prefix)
	buf.WriteString(a.Key)
	buf.WriteByte('=')
	buf.WriteString(val)
}
