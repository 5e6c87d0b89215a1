package httpserver

import (
	"context"
	"html/template"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/acairampoma/hc-medico/internal/broadcast"
	"github.com/acairampoma/hc-medico/internal/domain"
	"github.com/acairampoma/hc-medico/internal/platform/config"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// --- Mock implementations ---

type mockMonitorService struct {
	vitalsFn         func() domain.Monitoring
	bedFn            func(bedID domain.BedID) (*domain.PatientVitalsRecord, error)
	acknowledgeFn    func(ctx context.Context, bedID domain.BedID, index int) error
	simulateBedFn    func(ctx context.Context, bedID domain.BedID) (*domain.PatientVitalsRecord, error)
	simulateAllFn    func(ctx context.Context)
	initialMessageFn func() ([]byte, error)
	recentAlertsFn   func(ctx context.Context, n int) ([]domain.StreamedAlert, error)
	alertHistoryFn   func(ctx context.Context, bedID domain.BedID, limit int) ([]domain.ArchivedAlert, error)
}

func (m *mockMonitorService) Vitals() domain.Monitoring {
	if m.vitalsFn != nil {
		return m.vitalsFn()
	}
	return testMonitoring()
}

func (m *mockMonitorService) Bed(bedID domain.BedID) (*domain.PatientVitalsRecord, error) {
	if m.bedFn != nil {
		return m.bedFn(bedID)
	}
	rec, ok := testMonitoring().PatientsVitals[bedID]
	if !ok {
		return nil, domain.ErrBedNotFound
	}
	return rec, nil
}

func (m *mockMonitorService) BedIDs() []domain.BedID {
	return []domain.BedID{"101", "102"}
}

func (m *mockMonitorService) AcknowledgeAlert(ctx context.Context, bedID domain.BedID, index int) error {
	if m.acknowledgeFn != nil {
		return m.acknowledgeFn(ctx, bedID, index)
	}
	return nil
}

func (m *mockMonitorService) SimulateBed(ctx context.Context, bedID domain.BedID) (*domain.PatientVitalsRecord, error) {
	if m.simulateBedFn != nil {
		return m.simulateBedFn(ctx, bedID)
	}
	return m.Bed(bedID)
}

func (m *mockMonitorService) SimulateAll(ctx context.Context) {
	if m.simulateAllFn != nil {
		m.simulateAllFn(ctx)
	}
}

func (m *mockMonitorService) Subscribe(register func(initial []byte) error) error {
	initial := []byte(`{"type":"initial_data","data":{}}`)
	if m.initialMessageFn != nil {
		var err error
		if initial, err = m.initialMessageFn(); err != nil {
			return err
		}
	}
	return register(initial)
}

func (m *mockMonitorService) RecentAlerts(ctx context.Context, n int) ([]domain.StreamedAlert, error) {
	if m.recentAlertsFn != nil {
		return m.recentAlertsFn(ctx, n)
	}
	return nil, domain.ErrNotConfigured
}

func (m *mockMonitorService) AlertHistory(ctx context.Context, bedID domain.BedID, limit int) ([]domain.ArchivedAlert, error) {
	if m.alertHistoryFn != nil {
		return m.alertHistoryFn(ctx, bedID, limit)
	}
	return nil, domain.ErrNotConfigured
}

type mockHub struct {
	registerFn   func(conn broadcast.Conn, initial []byte) (uuid.UUID, error)
	unregistered chan uuid.UUID
}

func (m *mockHub) Register(conn broadcast.Conn, initial []byte) (uuid.UUID, error) {
	if m.registerFn != nil {
		return m.registerFn(conn, initial)
	}
	return uuid.New(), nil
}

func (m *mockHub) Unregister(id uuid.UUID) {
	if m.unregistered != nil {
		m.unregistered <- id
	}
}

// --- Test fixtures ---

var testEpoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func testMonitoring() domain.Monitoring {
	ts := domain.NewTimestamp(testEpoch)
	return domain.Monitoring{
		PatientsVitals: map[domain.BedID]*domain.PatientVitalsRecord{
			"101": {
				PatientInfo: domain.PatientInfo{Diagnosis: "cáncer de pulmón"},
				CurrentVitals: domain.CurrentVitals{
					HeartRate:        domain.IntReading{Value: 80, Status: domain.StatusNormal},
					BloodPressure:    domain.BloodPressure{Systolic: 120, Diastolic: 80, Status: domain.StatusNormal},
					Temperature:      domain.TemperatureReading{Value: 36.8, Status: domain.StatusNormal},
					RespiratoryRate:  domain.IntReading{Value: 18},
					OxygenSaturation: domain.IntReading{Value: 88, Status: domain.StatusCritical},
					Timestamp:        ts,
				},
				Alerts: []domain.Alert{{Type: domain.AlertCritical, Message: "SpO2 crítica: 88%", Timestamp: ts}},
			},
			"102": {
				PatientInfo: domain.PatientInfo{Diagnosis: "neumonía"},
				CurrentVitals: domain.CurrentVitals{
					HeartRate:        domain.IntReading{Value: 90, Status: domain.StatusNormal},
					OxygenSaturation: domain.IntReading{Value: 97, Status: domain.StatusNormal},
					Timestamp:        ts,
				},
				Alerts: []domain.Alert{},
			},
		},
		Metadata: domain.Metadata{LastUpdated: ts, RefreshInterval: 5000},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                       "development",
		Port:                         "8000",
		AppURL:                       "http://localhost:8000",
		MaxWebSocketConnections:      100,
		MaxWebSocketConnectionsPerIP: 10,
		WebSocketConnectRate:         100,
		WebSocketConnectBurst:        100,
		APIRateLimit:                 1000,
		APIRateBurst:                 1000,
	}
}

// --- Test helpers ---

func newTestServer(t *testing.T, app monitorService, opts ...func(*Server)) *Server {
	t.Helper()

	tmpl := template.Must(template.New("vital_signs.html").Parse(`Monitor {{.WSURL}} {{.FocusBed}}`))
	cfg := testConfig()
	clock := clockwork.NewRealClock()
	reg := prometheus.NewRegistry()

	e := echo.New()
	srv := &Server{
		echo:        e,
		config:      cfg,
		app:         app,
		hub:         &mockHub{},
		gate:        newGate(clock, cfg.MaxWebSocketConnections, cfg.MaxWebSocketConnectionsPerIP, cfg.WebSocketConnectRate, cfg.WebSocketConnectBurst),
		upgrader:    newUpgrader(NewCheckOrigin(cfg.AppURL, nil, true)),
		registry:    reg,
		httpMetrics: metrics.NewHTTPMetrics(reg),
		wsMetrics:   metrics.NewWebSocketMetrics(reg),
		templates:   tmpl,
		clock:       clock,
		startTime:   clock.Now(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	e.HTTPErrorHandler = srv.handleHTTPError
	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withSimulation(status simulationStatus) func(*Server) {
	return func(s *Server) {
		s.simulation = status
	}
}

func withHub(hub subscriptionHub) func(*Server) {
	return func(s *Server) {
		s.hub = hub
	}
}

func withGate(gate *SubscriberGate) func(*Server) {
	return func(s *Server) {
		s.gate = gate
	}
}

// serve routes a request through the full middleware chain.
func serve(srv *Server, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws/vital-signs"
}
