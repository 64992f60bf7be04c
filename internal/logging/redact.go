// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package logging

import (
	"context"
	"log/slog"
	"regexp"
)

// DefaultRedaction is the replacement text for filtered values.
const DefaultRedaction = "[REDACTED]"

// SensitiveKeys are the attribute names redacted by default. Anything
// that can identify a person or unlock an account stays out of logs.
var SensitiveKeys = []string{"email", "password", "hashed_password", "session_id"}

// Redact replaces the value of each named field in a serialized
// key=value message with the redaction string. Fields are matched as
// `field=value<separator>`, so the separator must terminate every field
// occurrence for it to be caught.
func Redact(fields []string, redaction, message, separator string) string {
	for _, field := range fields {
		re := regexp.MustCompile(regexp.QuoteMeta(field) + `=.*?` + regexp.QuoteMeta(separator))
		message = re.ReplaceAllString(message, field+"="+redaction+separator)
	}
	return message
}

// RedactHandler wraps a slog.Handler and blanks the values of sensitive
// string attributes before they reach the underlying handler.
type RedactHandler struct {
	handler   slog.Handler
	keys      map[string]struct{}
	redaction string
}

// NewRedactHandler creates a RedactHandler over h. An empty key list
// falls back to SensitiveKeys.
func NewRedactHandler(h slog.Handler, redaction string, keys ...string) *RedactHandler {
	if len(keys) == 0 {
		keys = SensitiveKeys
	}
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	return &RedactHandler{handler: h, keys: keySet, redaction: redaction}
}

// Handle rewrites sensitive attributes and forwards the record.
func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(h.redactAttr(a))
		return true
	})
	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, nr)
}

// Enabled reports whether the level is enabled.
func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a handler with the given attributes, redacted.
func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}
	return &RedactHandler{
		handler:   h.handler.WithAttrs(redacted),
		keys:      h.keys,
		redaction: h.redaction,
	}
}

// WithGroup returns a handler with the given group.
func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{
		handler:   h.handler.WithGroup(name),
		keys:      h.keys,
		redaction: h.redaction,
	}
}

func (h *RedactHandler) redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		redacted := make([]any, 0, len(members))
		for _, m := range members {
			redacted = append(redacted, h.redactAttr(m))
		}
		return slog.Group(a.Key, redacted...)
	}
	if _, sensitive := h.keys[a.Key]; sensitive {
		return slog.String(a.Key, h.redaction)
	}
	return a
}
