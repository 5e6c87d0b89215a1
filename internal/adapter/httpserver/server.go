package httpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/acairampoma/hc-medico/internal/broadcast"
	"github.com/acairampoma/hc-medico/internal/domain"
	"github.com/acairampoma/hc-medico/internal/platform/config"
	"github.com/acairampoma/hc-medico/web"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type monitorService interface {
	Vitals() domain.Monitoring
	Bed(bedID domain.BedID) (*domain.PatientVitalsRecord, error)
	BedIDs() []domain.BedID
	AcknowledgeAlert(ctx context.Context, bedID domain.BedID, index int) error
	SimulateBed(ctx context.Context, bedID domain.BedID) (*domain.PatientVitalsRecord, error)
	SimulateAll(ctx context.Context)
	Subscribe(register func(initial []byte) error) error
	RecentAlerts(ctx context.Context, n int) ([]domain.StreamedAlert, error)
	AlertHistory(ctx context.Context, bedID domain.BedID, limit int) ([]domain.ArchivedAlert, error)
}

// simulationStatus reports the state of the tick loop for the liveness endpoint.
type simulationStatus interface {
	Running() bool
	Cycles() uint64
}

type subscriptionHub interface {
	Register(conn broadcast.Conn, initial []byte) (uuid.UUID, error)
	Unregister(id uuid.UUID)
}

// Dependencies groups what the server needs besides its configuration.
type Dependencies struct {
	App          monitorService
	Hub          subscriptionHub
	Registry     *prometheus.Registry
	HTTPMetrics  *metrics.HTTPMetrics
	WSMetrics    *metrics.WebSocketMetrics
	HealthChecks []HealthCheck
	Simulation   simulationStatus
	Clock        clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	app      monitorService
	hub      subscriptionHub
	gate     *SubscriberGate
	upgrader websocket.Upgrader

	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics
	wsMetrics   *metrics.WebSocketMetrics

	templates    *template.Template
	healthChecks []HealthCheck
	simulation   simulationStatus
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) (*Server, error) {
	templates, err := template.ParseFS(web.TemplateFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:   e,
		config: cfg,
		app:    deps.App,
		hub:    deps.Hub,
		gate: NewSubscriberGate(deps.Clock, GateLimits{
			MaxSubscribers:    cfg.MaxWebSocketConnections,
			MaxPerIP:          cfg.MaxWebSocketConnectionsPerIP,
			AttemptsPerSecond: cfg.WebSocketConnectRate,
			AttemptBurst:      cfg.WebSocketConnectBurst,
		}),
		upgrader:     newUpgrader(NewCheckOrigin(cfg.AppURL, cfg.AllowedOrigins(), !cfg.IsProduction())),
		registry:     deps.Registry,
		httpMetrics:  deps.HTTPMetrics,
		wsMetrics:    deps.WSMetrics,
		templates:    templates,
		healthChecks: deps.HealthChecks,
		simulation:   deps.Simulation,
		clock:        deps.Clock,
		startTime:    deps.Clock.Now(),
	}

	e.HTTPErrorHandler = srv.handleHTTPError
	srv.registerRoutes()

	return srv, nil
}

// handleHTTPError renders router and middleware errors in the same JSON shape as handler errors.
func (s *Server) handleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.Code
	} else {
		httpErr = echo.NewHTTPError(status, msgInternalFailure).SetInternal(err)
	}

	structured := WrapHTTPError(httpErr)
	if status >= http.StatusInternalServerError {
		logError(c, structured)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if err := c.JSON(status, structured.ToResponse()); err != nil {
		slog.ErrorContext(c.Request().Context(), "Failed to write error response", "error", err)
	}
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) renderTemplate(c echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.ErrorContext(c.Request().Context(), "Template execution failed", "path", c.Request().URL.Path, "error", err)
		if err := c.String(http.StatusInternalServerError, "Failed to render page"); err != nil {
			return fmt.Errorf("failed to send error response: %w", err)
		}
		return nil
	}
	if err := c.HTMLBlob(http.StatusOK, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to send HTML response: %w", err)
	}
	return nil
}

func (s *Server) webSocketURL(c echo.Context) string {
	scheme := "ws"
	if c.Request().TLS != nil || c.Request().Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws/vital-signs", scheme, c.Request().Host)
}
