package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name       string
		err        *Error
		wantType   ErrorType
		wantStatus int
		wantCause  error
	}{
		{"validation", ValidationError("limit must be positive"), TypeValidation, http.StatusBadRequest, nil},
		{"not_found", NotFoundError("Paciente no encontrado"), TypeNotFound, http.StatusNotFound, nil},
		{"conflict", ConflictError("already acknowledged"), TypeConflict, http.StatusConflict, nil},
		{"unavailable", UnavailableError("alert stream not configured"), TypeUnavailable, http.StatusServiceUnavailable, nil},
		{"external", ExternalError("redis unreachable", cause), TypeExternal, http.StatusBadGateway, cause},
		{"internal", InternalError("failed to persist", cause), TypeInternal, http.StatusInternalServerError, cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus())
			assert.Equal(t, tt.wantCause, tt.err.Cause)
			assert.NotNil(t, tt.err.Context)
			assert.Contains(t, tt.err.Error(), string(tt.wantType))
		})
	}
}

func TestError_MessageIncludesCause(t *testing.T) {
	err := InternalError("failed to persist", errors.New("disk full"))
	assert.Equal(t, "internal: failed to persist: disk full", err.Error())

	assert.NotContains(t, InternalError("boom", nil).Error(), "<nil>")
}

func TestWithField_Chaining(t *testing.T) {
	err := NotFoundError("Alerta no encontrada").
		WithField("bed_id", "101").
		WithField("alert_index", 5)

	assert.Len(t, err.Context, 2)
	assert.Equal(t, "101", err.Context["bed_id"])
	assert.Equal(t, 5, err.Context["alert_index"])
}

func TestWithField_NilMap(t *testing.T) {
	err := &Error{Type: TypeValidation, Message: "test"}
	err = err.WithField("key", "value")

	require.NotNil(t, err.Context)
	assert.Equal(t, "value", err.Context["key"])
}

func TestToResponse_OmitsCause(t *testing.T) {
	err := InternalError("internal server error", errors.New("secret path /var/data")).WithField("bed_id", "101")

	resp := err.ToResponse()
	assert.Equal(t, "internal server error", resp.Error)
	assert.Equal(t, TypeInternal, resp.Type)
	assert.Equal(t, map[string]any{"bed_id": "101"}, resp.Context)
	assert.NotContains(t, fmt.Sprint(resp), "secret path")
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := ExternalError("stream write failed", fmt.Errorf("xadd: %w", sentinel))

	assert.ErrorIs(t, err, sentinel)
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("structured passes through", func(t *testing.T) {
		original := NotFoundError("Cama no encontrada")
		assert.Same(t, original, AsStructuredError(original))
	})

	t.Run("wrapped structured is found", func(t *testing.T) {
		original := ValidationError("bad index")
		wrapped := fmt.Errorf("handler: %w", original)
		assert.Same(t, original, AsStructuredError(wrapped))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("unexpected")
		got := AsStructuredError(cause)
		assert.Equal(t, TypeInternal, got.Type)
		assert.Equal(t, "internal server error", got.Message)
		assert.Equal(t, cause, got.Cause)
	})
}

func TestTypeForStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{http.StatusBadRequest, TypeValidation},
		{http.StatusNotFound, TypeNotFound},
		{http.StatusConflict, TypeConflict},
		{http.StatusServiceUnavailable, TypeUnavailable},
		{http.StatusBadGateway, TypeExternal},
		{http.StatusMethodNotAllowed, TypeValidation},
		{http.StatusTooManyRequests, TypeValidation},
		{http.StatusInternalServerError, TypeInternal},
		{http.StatusGatewayTimeout, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, TypeForStatus(tt.code))
		})
	}
}

func TestLogAttrs(t *testing.T) {
	t.Run("client errors are info without cause", func(t *testing.T) {
		err := &Error{Type: TypeNotFound, Message: "Cama no encontrada", Cause: errors.New("hidden")}
		err.WithField("bed_id", "999")

		level, msg, attrs := err.LogAttrs()
		assert.Equal(t, slog.LevelInfo, level)
		assert.Equal(t, "Not found", msg)
		assert.Equal(t, []any{"error_type", TypeNotFound, "message", "Cama no encontrada", "http_status", http.StatusNotFound, "bed_id", "999"}, attrs)
	})

	t.Run("backend failures are errors with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		level, msg, attrs := ExternalError("failed to archive alerts", cause).LogAttrs()

		assert.Equal(t, slog.LevelError, level)
		assert.Equal(t, "External service error", msg)
		assert.Equal(t, []any{"cause", cause}, attrs[len(attrs)-2:])
	})

	t.Run("unknown type falls back to internal status", func(t *testing.T) {
		err := &Error{Type: "mystery", Message: "?"}
		level, msg, _ := err.LogAttrs()

		assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
		assert.Equal(t, slog.LevelError, level)
		assert.Equal(t, "Unknown error type", msg)
	})
}
