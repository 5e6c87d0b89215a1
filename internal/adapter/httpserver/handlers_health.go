package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/acairampoma/hc-medico/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second
)

// HealthCheck is a named dependency probe used by the startup and readiness endpoints.
// The snapshot directory is always probed; the alert stream and archive only when configured.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type probeReport struct {
	Status        string            `json:"status"`
	FailedCheck   string            `json:"failed_check,omitempty"`
	Error         string            `json:"error,omitempty"`
	Checks        map[string]string `json:"checks,omitempty"`
	BedsMonitored int               `json:"beds_monitored"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	return s.writeProbeReport(c, s.probe(ctx))
}

// handleLiveness never touches dependencies; a live process with an empty store is still live.
func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
		"feed":   s.gate.Stats(),
	}
	if s.simulation != nil {
		response["simulation"] = map[string]any{
			"running": s.simulation.Running(),
			"cycles":  s.simulation.Cycles(),
		}
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	return s.writeProbeReport(c, s.probe(ctx))
}

// probe runs every check in order. The first failure is reported as failed_check.
func (s *Server) probe(ctx context.Context) probeReport {
	report := probeReport{
		Status:        "ready",
		BedsMonitored: len(s.app.BedIDs()),
	}
	if len(s.healthChecks) == 0 {
		return report
	}

	report.Checks = make(map[string]string, len(s.healthChecks))
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			report.Checks[hc.Name] = err.Error()
			if report.FailedCheck == "" {
				report.Status = "unhealthy"
				report.FailedCheck = hc.Name
				report.Error = err.Error()
			}
			continue
		}
		report.Checks[hc.Name] = "ok"
	}
	return report
}

func (s *Server) writeProbeReport(c echo.Context, report probeReport) error {
	status := http.StatusOK
	if report.FailedCheck != "" {
		status = http.StatusServiceUnavailable
	}
	if err := c.JSON(status, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
