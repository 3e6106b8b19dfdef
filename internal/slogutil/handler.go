// Package slogutil provides the slog handlers and logger constructors used
// across docxref.
package slogutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// timeLayout keeps log timestamps fixed-width.
const timeLayout = "2006-01-02T15:04:05.000Z"

// TextHandler writes one line per record:
//
//	2026-01-02T15:04:05.000Z [warn] Link cache unavailable | path=/x error="disk full"
//
// Attributes from WithAttrs are rendered once, when the child handler is
// created. Group names become dotted key prefixes.
type TextHandler struct {
	w          io.Writer
	opts       slog.HandlerOptions
	prefix     string   // Dotted group path for keys added later
	groups     []string // Group names, for ReplaceAttr
	preformats []byte   // Rendered attributes from WithAttrs
	mu         *sync.Mutex
}

// NewTextHandler creates a text handler. A nil opts logs at info.
func NewTextHandler(w io.Writer, opts *slog.HandlerOptions) *TextHandler {
	h := &TextHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	if h.opts.Level == nil {
		h.opts.Level = slog.LevelInfo
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *TextHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle formats and writes the log record.
func (h *TextHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)

	if ts, ok := h.builtin(slog.TimeKey, slog.TimeValue(r.Time)); ok && !r.Time.IsZero() {
		buf = append(buf, formatTime(ts)...)
		buf = append(buf, ' ')
	}
	buf = append(buf, '[')
	buf = append(buf, levelString(r.Level)...)
	buf = append(buf, "] "...)
	buf = append(buf, r.Message...)

	attrs := h.preformats
	if r.NumAttrs() > 0 {
		attrs = append([]byte(nil), h.preformats...)
		r.Attrs(func(a slog.Attr) bool {
			attrs = h.appendAttr(attrs, h.prefix, h.groups, a)
			return true
		})
	}
	if len(attrs) > 0 {
		buf = append(buf, " |"...)
		buf = append(buf, attrs...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

// WithAttrs returns a handler that renders attrs on every record.
func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	child := h.clone()
	child.preformats = append([]byte(nil), h.preformats...)
	for _, a := range attrs {
		child.preformats = h.appendAttr(child.preformats, h.prefix, h.groups, a)
	}
	return child
}

// WithGroup returns a handler that prefixes later keys with name.
func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	child := h.clone()
	child.prefix = h.prefix + name + "."
	child.groups = append(append([]string(nil), h.groups...), name)
	return child
}

func (h *TextHandler) clone() *TextHandler {
	c := *h
	return &c
}

// builtin applies ReplaceAttr to a built-in attribute. It reports false when
// the attribute was removed.
func (h *TextHandler) builtin(key string, v slog.Value) (slog.Value, bool) {
	if h.opts.ReplaceAttr == nil {
		return v, true
	}
	a := h.opts.ReplaceAttr(nil, slog.Attr{Key: key, Value: v})
	if a.Key == "" {
		return slog.Value{}, false
	}
	return a.Value, true
}

// appendAttr renders " key=value" for a, expanding groups into dotted keys.
// Empty attributes are dropped.
func (h *TextHandler) appendAttr(buf []byte, prefix string, groups []string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() != slog.KindGroup && h.opts.ReplaceAttr != nil {
		a = h.opts.ReplaceAttr(groups, a)
		a.Value = a.Value.Resolve()
	}
	if a.Equal(slog.Attr{}) {
		return buf
	}

	if a.Value.Kind() == slog.KindGroup {
		inner := a.Value.Group()
		if len(inner) == 0 {
			return buf
		}
		if a.Key != "" {
			prefix += a.Key + "."
			groups = append(append([]string(nil), groups...), a.Key)
		}
		for _, ga := range inner {
			buf = h.appendAttr(buf, prefix, groups, ga)
		}
		return buf
	}

	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return append(buf, formatValue(a.Value)...)
}

// levelString returns a lowercase string for the log level.
func levelString(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

func formatTime(v slog.Value) string {
	if v.Kind() == slog.KindTime {
		return v.Time().UTC().Format(timeLayout)
	}
	return formatValue(v)
}

// formatValue renders v so a line stays splittable on spaces and '|'.
func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=|") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return formatValue(slog.StringValue(err.Error()))
		}
		return formatValue(slog.StringValue(fmt.Sprint(v.Any())))
	default:
		return v.String()
	}
}
