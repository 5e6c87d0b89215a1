package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/acairampoma/hc-medico/internal/domain"
	apperrors "github.com/acairampoma/hc-medico/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

const (
	defaultAlertLimit = 20
	maxAlertLimit     = 100

	msgSimulationBedNotFound = "Cama no encontrada"
)

func (s *Server) registerVitalsRoutes(rateLimiter echo.MiddlewareFunc) {
	api := s.echo.Group("/api/vital-signs", rateLimiter)

	// Static segments are matched before :bed_id by echo's router.
	api.GET("", s.handleGetAllVitals)
	api.GET("/test/data", s.handleTestData)
	api.GET("/alerts/recent", s.handleRecentAlerts)
	api.POST("/simulate/all", s.handleSimulateAll)

	api.GET("/:bed_id", s.handleGetBedVitals)
	api.POST("/:bed_id/acknowledge-alert/:alert_index", s.handleAcknowledgeAlert)
	api.POST("/:bed_id/simulate", s.handleSimulateBed)
	api.GET("/:bed_id/alerts/history", s.handleAlertHistory)
}

func (s *Server) handleGetAllVitals(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.app.Vitals()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetBedVitals(c echo.Context) error {
	bedID := domain.BedID(c.Param("bed_id"))

	record, err := s.app.Bed(bedID)
	if err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, record); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleAcknowledgeAlert(c echo.Context) error {
	bedID := domain.BedID(c.Param("bed_id"))

	rawIndex := c.Param("alert_index")
	index, err := strconv.Atoi(rawIndex)
	if err != nil {
		return apperrors.ValidationError("El índice de alerta debe ser un número entero").WithField("alert_index", rawIndex)
	}

	if err := s.app.AcknowledgeAlert(c.Request().Context(), bedID, index); err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, map[string]string{"message": "Alerta reconocida"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSimulateBed(c echo.Context) error {
	bedID := domain.BedID(c.Param("bed_id"))

	record, err := s.app.SimulateBed(c.Request().Context(), bedID)
	if errors.Is(err, domain.ErrBedNotFound) {
		return apperrors.NotFoundError(msgSimulationBedNotFound)
	}
	if err != nil {
		return err
	}

	response := map[string]any{
		"message": fmt.Sprintf("Simulación iniciada para cama %s", bedID),
		"data":    record,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSimulateAll(c echo.Context) error {
	s.app.SimulateAll(c.Request().Context())

	if err := c.JSON(http.StatusOK, map[string]string{"message": "Simulación ejecutada para todos los pacientes"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

type testDataResponse struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	TotalPatients int             `json:"total_patients"`
	BedIDs        []domain.BedID  `json:"bed_ids"`
	SampleData    domain.Document `json:"sample_data"`
}

func (s *Server) handleTestData(c echo.Context) error {
	store := s.app.Vitals()
	bedIDs := s.app.BedIDs()

	response := testDataResponse{
		Status:        "success",
		Message:       "Datos cargados correctamente",
		TotalPatients: len(bedIDs),
		BedIDs:        bedIDs,
		SampleData:    domain.Document{Monitoring: store},
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleRecentAlerts(c echo.Context) error {
	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return err
	}

	alerts, err := s.app.RecentAlerts(c.Request().Context(), limit)
	if err != nil {
		return err
	}

	response := map[string]any{"alerts": alerts, "count": len(alerts)}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleAlertHistory(c echo.Context) error {
	bedID := domain.BedID(c.Param("bed_id"))

	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return err
	}

	history, err := s.app.AlertHistory(c.Request().Context(), bedID, limit)
	if err != nil {
		return err
	}

	response := map[string]any{"bed_id": bedID, "alerts": history, "count": len(history)}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// parseLimit reads the limit query parameter, defaulting to defaultAlertLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultAlertLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxAlertLimit {
		return 0, apperrors.ValidationError(fmt.Sprintf("limit debe estar entre 1 y %d", maxAlertLimit)).WithField("limit", raw)
	}
	return limit, nil
}
