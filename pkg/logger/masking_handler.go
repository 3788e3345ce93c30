package logger

import (
	"context"
	"log/slog"
	"strings"
)

// Keys whose values never reach log output. Phone codes, 2FA passwords and
// exported session tokens all travel through handler attrs at some point.
var redactedKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"session_token": {},
	"secret":        {},
	"api_hash":      {},
	"code":          {},
	"authorization": {},
}

const redacted = "***"

// MaskingHandler redacts sensitive attributes before delegating to the
// wrapped handler.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		clean[i] = redact(attr)
	}
	return &MaskingHandler{next: h.next.WithAttrs(clean)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	clean := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		clean.AddAttrs(redact(attr))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func redact(attr slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(attr.Key)]; ok {
		attr.Value = slog.StringValue(redacted)
	}
	return attr
}

// teeHandler fans records out to every wrapped handler. Used to pair the
// stdout handler with the Sentry one.
type teeHandler struct {
	handlers []slog.Handler
}

func newTeeHandler(handlers ...slog.Handler) *teeHandler {
	return &teeHandler{handlers: handlers}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, next := range h.handlers {
		if next.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.fanout(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.fanout(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

func (h *teeHandler) fanout(wrap func(slog.Handler) slog.Handler) *teeHandler {
	wrapped := make([]slog.Handler, len(h.handlers))
	for i, next := range h.handlers {
		wrapped[i] = wrap(next)
	}
	return &teeHandler{handlers: wrapped}
}

func (h *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, next := range h.handlers {
		if !next.Enabled(ctx, record.Level) {
			continue
		}
		if err := next.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
