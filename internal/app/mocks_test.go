package app

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/acairampoma/hc-medico/internal/domain"
	"github.com/acairampoma/hc-medico/internal/vitals"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type mockSnapshotStore struct {
	mu      sync.Mutex
	saved   []domain.Monitoring
	saveErr error
}

func (m *mockSnapshotStore) Load(context.Context) domain.Monitoring {
	return domain.NewMonitoring(testEpoch)
}

func (m *mockSnapshotStore) Save(_ context.Context, doc domain.Monitoring) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, doc)
	return nil
}

func (m *mockSnapshotStore) getSaved() []domain.Monitoring {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Monitoring(nil), m.saved...)
}

type mockPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (m *mockPublisher) Broadcast(msg []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *mockPublisher) decoded(t *testing.T) []domain.SubscriberMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.SubscriberMessage, len(m.messages))
	for i, raw := range m.messages {
		require.NoError(t, json.Unmarshal(raw, &out[i]))
	}
	return out
}

type mockSink struct {
	name     string
	recordFn func(ctx context.Context, alerts []domain.RaisedAlert) error

	mu      sync.Mutex
	batches [][]domain.RaisedAlert
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) RecordAlerts(ctx context.Context, alerts []domain.RaisedAlert) error {
	m.mu.Lock()
	m.batches = append(m.batches, alerts)
	m.mu.Unlock()
	if m.recordFn != nil {
		return m.recordFn(ctx, alerts)
	}
	return nil
}

func (m *mockSink) getBatches() [][]domain.RaisedAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.RaisedAlert(nil), m.batches...)
}

type mockFeed struct {
	recentFn func(ctx context.Context, n int) ([]domain.StreamedAlert, error)
}

func (m *mockFeed) Recent(ctx context.Context, n int) ([]domain.StreamedAlert, error) {
	return m.recentFn(ctx, n)
}

type mockArchive struct {
	historyFn func(ctx context.Context, bedID domain.BedID, limit int) ([]domain.ArchivedAlert, error)
}

func (m *mockArchive) History(ctx context.Context, bedID domain.BedID, limit int) ([]domain.ArchivedAlert, error) {
	return m.historyFn(ctx, bedID, limit)
}

type testDeps struct {
	store       *mockSnapshotStore
	publisher   *mockPublisher
	clock       *clockwork.FakeClock
	metrics     *metrics.MonitorMetrics
	sinkMetrics *metrics.AlertSinkMetrics
}

// hypoxicVitals always raises a critical saturation alert on the next step.
func hypoxicVitals() domain.CurrentVitals {
	return domain.CurrentVitals{
		HeartRate:        domain.IntReading{Value: 80},
		BloodPressure:    domain.BloodPressure{Systolic: 120, Diastolic: 80},
		Temperature:      domain.TemperatureReading{Value: 36.8},
		RespiratoryRate:  domain.IntReading{Value: 16},
		OxygenSaturation: domain.IntReading{Value: 86},
	}
}

// stableVitals never raises an alert on the next step.
func stableVitals() domain.CurrentVitals {
	v := hypoxicVitals()
	v.OxygenSaturation.Value = 98
	return v
}

func newTestService(t *testing.T, ext Extensions) (*Service, testDeps) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)

	initial := domain.NewMonitoring(testEpoch)
	initial.PatientsVitals["101"] = &domain.PatientVitalsRecord{
		PatientInfo:   domain.PatientInfo{Diagnosis: "neumonía"},
		CurrentVitals: hypoxicVitals(),
	}
	initial.PatientsVitals["102"] = &domain.PatientVitalsRecord{
		PatientInfo:   domain.PatientInfo{Diagnosis: "fractura de cadera"},
		CurrentVitals: stableVitals(),
	}
	monitor := vitals.NewMonitor(initial, vitals.NewSimulator(rand.New(rand.NewPCG(3, 4))), clock)

	reg := prometheus.NewRegistry()
	deps := testDeps{
		store:       &mockSnapshotStore{},
		publisher:   &mockPublisher{},
		clock:       clock,
		metrics:     metrics.NewMonitorMetrics(reg),
		sinkMetrics: metrics.NewAlertSinkMetrics(reg),
	}
	svc := NewService(monitor, deps.store, deps.publisher, ext, deps.metrics, deps.sinkMetrics, clock)
	t.Cleanup(svc.Wait)
	return svc, deps
}
