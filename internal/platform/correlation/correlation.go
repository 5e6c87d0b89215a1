// Package correlation tags log records with the request or simulation tick they belong to.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// Header carries a caller-supplied correlation ID on HTTP requests and responses.
// LegacyHeader is accepted inbound from proxies that still use it.
const (
	Header       = "X-Request-ID"
	LegacyHeader = "X-Correlation-ID"
)

const maxIDLength = 64

type scopeKey struct{}

// scope is what a context carries. A request has only an ID; a scheduler cycle
// also has its tick sequence number.
type scope struct {
	id   string
	tick uint64
}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

// NewID returns 8 hex characters.
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// FromRequest returns the inbound ID when it is safe to log, otherwise a fresh one.
func FromRequest(h http.Header) string {
	for _, name := range []string{Header, LegacyHeader} {
		if v := h.Get(name); isSafeID(v) {
			return v
		}
	}
	return NewID()
}

func isSafeID(v string) bool {
	if v == "" || len(v) > maxIDLength {
		return false
	}
	return strings.IndexFunc(v, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '.')
	}) < 0
}

func WithID(ctx context.Context, id string) context.Context {
	s := scopeFrom(ctx)
	s.id = id
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithTick marks ctx as belonging to scheduler cycle seq, starting at 1.
func WithTick(ctx context.Context, seq uint64) context.Context {
	s := scopeFrom(ctx)
	s.tick = seq
	return context.WithValue(ctx, scopeKey{}, s)
}

func ID(ctx context.Context) (string, bool) {
	id := scopeFrom(ctx).id
	return id, id != ""
}

func Tick(ctx context.Context) (uint64, bool) {
	seq := scopeFrom(ctx).tick
	return seq, seq != 0
}

// Handler wraps a slog.Handler and adds "correlation_id" and "tick" from the context.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	s := scopeFrom(ctx)
	if s.id != "" {
		r.AddAttrs(slog.String("correlation_id", s.id))
	}
	if s.tick != 0 {
		r.AddAttrs(slog.Uint64("tick", s.tick))
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
