package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(NewHandler(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func TestNewID(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewID()
		assert.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestScope(t *testing.T) {
	ctx := context.Background()

	_, ok := ID(ctx)
	assert.False(t, ok)
	_, ok = Tick(ctx)
	assert.False(t, ok)

	ctx = WithTick(WithID(ctx, "abc12345"), 7)
	id, ok := ID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc12345", id)
	seq, ok := Tick(ctx)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), seq)

	ctx = WithID(ctx, "")
	_, ok = ID(ctx)
	assert.False(t, ok, "empty id counts as absent")
	seq, _ = Tick(ctx)
	assert.Equal(t, uint64(7), seq, "replacing the id keeps the tick")
}

func TestHandler_AddsScopeAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf).With("component", "scheduler")

	ctx := WithTick(WithID(context.Background(), "tick0001"), 42)
	logger.InfoContext(ctx, "Simulation sweep completed", "beds", 3)

	output := buf.String()
	assert.Contains(t, output, "correlation_id=tick0001")
	assert.Contains(t, output, "tick=42")
	assert.Contains(t, output, "component=scheduler")
	assert.Contains(t, output, "beds=3")
}

func TestHandler_RequestScopeHasNoTick(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.InfoContext(WithID(context.Background(), "req12345"), "Request")
	logger.InfoContext(context.Background(), "no scope")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "correlation_id=req12345")
	assert.NotContains(t, lines[0], "tick=")
	assert.NotContains(t, lines[1], "correlation_id")
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"plain id kept", map[string]string{Header: "req-42_a.b"}, "req-42_a.b"},
		{"uuid kept", map[string]string{Header: "3f2c8a4e-9d1b-4c2f-8e7a-1b2c3d4e5f60"}, "3f2c8a4e-9d1b-4c2f-8e7a-1b2c3d4e5f60"},
		{"legacy header used", map[string]string{LegacyHeader: "proxy-7"}, "proxy-7"},
		{"primary wins over legacy", map[string]string{Header: "primary", LegacyHeader: "legacy"}, "primary"},
		{"unsafe primary falls back to legacy", map[string]string{Header: "bad id", LegacyHeader: "legacy"}, "legacy"},
		{"missing generates", nil, ""},
		{"spaces rejected", map[string]string{Header: "id with spaces"}, ""},
		{"newline rejected", map[string]string{Header: "abc\nforged=1"}, ""},
		{"too long rejected", map[string]string{Header: strings.Repeat("a", 65)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}

			got := FromRequest(h)
			if tt.want != "" {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.Len(t, got, 8)
			for _, v := range tt.headers {
				assert.NotEqual(t, v, got)
			}
		})
	}
}
