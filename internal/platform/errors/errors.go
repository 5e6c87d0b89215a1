// Package errors carries typed failures from the monitor core to the HTTP edge.
// Each ErrorType fixes the response status and the log level it is reported at.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

type ErrorType string

const (
	TypeValidation  ErrorType = "validation"
	TypeNotFound    ErrorType = "not_found"
	TypeConflict    ErrorType = "conflict"
	TypeUnavailable ErrorType = "unavailable" // optional component not configured
	TypeExternal    ErrorType = "external"    // alert stream or archive backend
	TypeInternal    ErrorType = "internal"
)

type kind struct {
	status     int
	level      slog.Level
	logMessage string
	logCause   bool
}

var kinds = map[ErrorType]kind{
	TypeValidation:  {http.StatusBadRequest, slog.LevelInfo, "Validation error", false},
	TypeNotFound:    {http.StatusNotFound, slog.LevelInfo, "Not found", false},
	TypeConflict:    {http.StatusConflict, slog.LevelWarn, "Conflict", false},
	TypeUnavailable: {http.StatusServiceUnavailable, slog.LevelWarn, "Service unavailable", false},
	TypeExternal:    {http.StatusBadGateway, slog.LevelError, "External service error", true},
	TypeInternal:    {http.StatusInternalServerError, slog.LevelError, "Internal error", true},
}

func (t ErrorType) kind() kind {
	if k, ok := kinds[t]; ok {
		return k
	}
	return kind{http.StatusInternalServerError, slog.LevelError, "Unknown error type", true}
}

// TypeForStatus classifies an HTTP status produced outside this package, such as a
// router 404 or 405. Unlisted 4xx codes are client errors and everything else is internal.
func TypeForStatus(code int) ErrorType {
	for t, k := range kinds {
		if k.status == code {
			return t
		}
	}
	if code >= 400 && code < 500 {
		return TypeValidation
	}
	return TypeInternal
}

// Error is a typed failure. Message is safe to show to clinicians; Cause is only logged.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) HTTPStatus() int {
	return e.Type.kind().status
}

// LogAttrs returns the level, message and attributes this error is logged with.
// The cause is included only for backend and internal failures.
func (e *Error) LogAttrs() (slog.Level, string, []any) {
	k := e.Type.kind()
	attrs := make([]any, 0, 6+2*len(e.Context))
	attrs = append(attrs, "error_type", e.Type, "message", e.Message, "http_status", k.status)
	for key, v := range e.Context {
		attrs = append(attrs, key, v)
	}
	if k.logCause && e.Cause != nil {
		attrs = append(attrs, "cause", e.Cause)
	}
	return k.level, k.logMessage, attrs
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    t,
		Message: message,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

func ValidationError(message string) *Error {
	return newError(TypeValidation, message, nil)
}

func NotFoundError(message string) *Error {
	return newError(TypeNotFound, message, nil)
}

func ConflictError(message string) *Error {
	return newError(TypeConflict, message, nil)
}

func UnavailableError(message string) *Error {
	return newError(TypeUnavailable, message, nil)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

// WithField adds a context field that is both logged and returned to the client.
func (e *Error) WithField(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError returns the *Error in err's chain, or wraps err as internal.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	return InternalError("internal server error", err)
}
