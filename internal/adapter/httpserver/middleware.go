package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/acairampoma/hc-medico/internal/domain"
	apperrors "github.com/acairampoma/hc-medico/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

// Client-facing messages for domain sentinels.
const (
	msgBedNotFound     = "Paciente no encontrado"
	msgAlertNotFound   = "Alerta no encontrada"
	msgNotConfigured   = "Servicio no configurado"
	msgInternalFailure = "Error interno del servidor"
)

func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			return HandleError(c, err)
		}
	}
}

// fromDomain maps domain sentinels to structured errors; anything else goes through AsStructuredError.
func fromDomain(err error) *apperrors.Error {
	var structured *apperrors.Error
	switch {
	case errors.As(err, &structured):
		return structured
	case errors.Is(err, domain.ErrBedNotFound):
		return apperrors.NotFoundError(msgBedNotFound)
	case errors.Is(err, domain.ErrAlertNotFound):
		return apperrors.NotFoundError(msgAlertNotFound)
	case errors.Is(err, domain.ErrNotConfigured):
		return apperrors.UnavailableError(msgNotConfigured)
	default:
		return apperrors.InternalError(msgInternalFailure, err)
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	level, msg, attrs := err.LogAttrs()
	attrs = append(attrs, "path", c.Request().URL.Path, "method", c.Request().Method)
	if bedID := c.Param("bed_id"); bedID != "" {
		attrs = append(attrs, "bed_id", bedID)
	}
	slog.Log(c.Request().Context(), level, msg, attrs...)
}

func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := fromDomain(err)
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

// routerMessages replaces echo's default English texts for router-level errors.
var routerMessages = map[int]string{
	http.StatusNotFound:              "Recurso no encontrado",
	http.StatusMethodNotAllowed:      "Método no permitido",
	http.StatusRequestEntityTooLarge: "Solicitud demasiado grande",
	http.StatusTooManyRequests:       msgTooManyRequests,
}

// WrapHTTPError converts an echo error into the structured shape.
func WrapHTTPError(httpErr *echo.HTTPError) *apperrors.Error {
	message := msgInternalFailure
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}
	if msg, ok := routerMessages[httpErr.Code]; ok && message == http.StatusText(httpErr.Code) {
		message = msg
	}

	err := &apperrors.Error{
		Type:    apperrors.TypeForStatus(httpErr.Code),
		Message: message,
		Cause:   httpErr.Internal,
		Context: make(map[string]any),
	}
	if err.Type == apperrors.TypeValidation && httpErr.Code != http.StatusBadRequest {
		err.Context["status"] = httpErr.Code
	}
	return err
}
