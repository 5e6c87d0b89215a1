package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/acairampoma/hc-medico/internal/domain"
	"github.com/acairampoma/hc-medico/internal/vitals"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const sinkTimeout = 2 * time.Second

// Simulation triggers, used as the metrics label.
const (
	TriggerScheduler = "scheduler"
	TriggerBed       = "bed"
	TriggerAll       = "all"
)

// Extensions are the optional collaborators. Nil fields disable the feature.
type Extensions struct {
	Sinks   []domain.AlertSink
	Feed    domain.AlertFeed
	Archive domain.AlertArchive
}

// Service is the application context object. It is built once in main and shared by the
// scheduler and the HTTP handlers. It orchestrates the monitor, persistence, broadcasting
// and alert delivery.
type Service struct {
	monitor     *vitals.Monitor
	snapshots   domain.SnapshotStore
	publisher   domain.Publisher
	ext         Extensions
	metrics     *metrics.MonitorMetrics
	sinkMetrics *metrics.AlertSinkMetrics
	clock       clockwork.Clock

	// publishMu orders store changes with the updates that report them, so subscribers
	// receive snapshots in the order the changes happened.
	publishMu sync.Mutex
	persistMu sync.Mutex
	queries   singleflight.Group
	inflight  sync.WaitGroup
}

func NewService(
	monitor *vitals.Monitor,
	snapshots domain.SnapshotStore,
	publisher domain.Publisher,
	ext Extensions,
	m *metrics.MonitorMetrics,
	sm *metrics.AlertSinkMetrics,
	clock clockwork.Clock,
) *Service {
	s := &Service{
		monitor:     monitor,
		snapshots:   snapshots,
		publisher:   publisher,
		ext:         ext,
		metrics:     m,
		sinkMetrics: sm,
		clock:       clock,
	}
	m.BedsMonitored.Set(float64(len(monitor.BedIDs())))
	return s
}

// Vitals returns a copy of the whole store.
func (s *Service) Vitals() domain.Monitoring {
	return s.monitor.Snapshot()
}

// Bed returns a copy of one bed's record, or domain.ErrBedNotFound.
func (s *Service) Bed(bedID domain.BedID) (*domain.PatientVitalsRecord, error) {
	return s.monitor.Record(bedID)
}

func (s *Service) BedIDs() []domain.BedID {
	return s.monitor.BedIDs()
}

// AcknowledgeAlert marks one alert as acknowledged, then persists and broadcasts the store.
// A failed write is logged and does not fail the acknowledgement.
func (s *Service) AcknowledgeAlert(ctx context.Context, bedID domain.BedID, index int) error {
	var ackErr error
	s.publish(ctx, func() bool {
		ackErr = s.monitor.Acknowledge(bedID, index)
		return ackErr == nil
	})
	if ackErr != nil {
		return ackErr
	}
	s.metrics.AlertsAcknowledged.Inc()
	slog.InfoContext(ctx, "Alert acknowledged", "bed_id", bedID, "alert_index", index)

	if err := s.Persist(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to persist after acknowledgement", "bed_id", bedID, "error", err)
	}
	return nil
}

// SimulateBed advances one bed on demand and broadcasts the result.
func (s *Service) SimulateBed(ctx context.Context, bedID domain.BedID) (*domain.PatientVitalsRecord, error) {
	var (
		rec    *domain.PatientVitalsRecord
		raised []domain.RaisedAlert
		ok     bool
	)
	s.publish(ctx, func() bool {
		rec, raised, ok = s.monitor.Simulate(bedID)
		return ok
	})
	if !ok {
		return nil, domain.ErrBedNotFound
	}
	s.metrics.Simulations.WithLabelValues(TriggerBed).Inc()
	s.handleRaised(ctx, raised)
	return rec, nil
}

// SimulateAll advances every bed once and broadcasts. It does not persist.
func (s *Service) SimulateAll(ctx context.Context) {
	s.sweep(ctx, TriggerAll)
}

// Tick is one scheduler cycle: simulate every bed, then broadcast once.
func (s *Service) Tick(ctx context.Context) {
	start := s.clock.Now()
	s.sweep(ctx, TriggerScheduler)
	s.metrics.TicksTotal.Inc()
	s.metrics.TickDuration.Observe(s.clock.Since(start).Seconds())
}

func (s *Service) sweep(ctx context.Context, trigger string) {
	var raised []domain.RaisedAlert
	s.publish(ctx, func() bool {
		raised = s.monitor.SimulateAll()
		return true
	})
	beds := len(s.monitor.BedIDs())
	s.metrics.Simulations.WithLabelValues(trigger).Add(float64(beds))
	s.metrics.BedsMonitored.Set(float64(beds))
	s.handleRaised(ctx, raised)
	slog.DebugContext(ctx, "Simulation sweep completed", "trigger", trigger, "beds", beds, "alerts_raised", len(raised))
}

// Persist writes the whole store through the snapshot store. Writes are serialized.
func (s *Service) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := s.snapshots.Save(ctx, s.monitor.Checkpoint()); err != nil {
		s.metrics.Persistence.WithLabelValues("error").Inc()
		return fmt.Errorf("persist vitals: %w", err)
	}
	s.metrics.Persistence.WithLabelValues("ok").Inc()
	return nil
}

// Subscribe encodes the initial_data snapshot and passes it to register. No update is
// published while register runs, so the new subscriber misses nothing between its
// snapshot and the next update.
func (s *Service) Subscribe(register func(initial []byte) error) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	initial, err := s.encodeMessage(domain.MessageInitialData)
	if err != nil {
		return err
	}
	return register(initial)
}

// publish applies change and, when it reports a change, broadcasts the resulting store
// before any other change can run.
func (s *Service) publish(ctx context.Context, change func() bool) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	if !change() {
		return
	}
	msg, err := s.encodeMessage(domain.MessageVitalSignsUpdate)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode vitals update", "error", err)
		return
	}
	s.publisher.Broadcast(msg)
}

func (s *Service) encodeMessage(msgType string) ([]byte, error) {
	snap := s.monitor.Snapshot()
	msg := domain.SubscriberMessage{
		Type:      msgType,
		Data:      snap.PatientsVitals,
		Timestamp: domain.NewTimestamp(s.clock.Now()),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msgType, err)
	}
	return data, nil
}

func (s *Service) handleRaised(ctx context.Context, raised []domain.RaisedAlert) {
	if len(raised) == 0 {
		return
	}
	for _, r := range raised {
		s.metrics.AlertsRaised.WithLabelValues(string(r.Alert.Type)).Inc()
		slog.WarnContext(ctx, "Alert raised", "bed_id", r.BedID, "type", r.Alert.Type, "message", r.Alert.Message)
	}
	s.dispatch(ctx, raised)
}

// dispatch hands the alerts to every sink in the background, each bounded by sinkTimeout.
func (s *Service) dispatch(ctx context.Context, raised []domain.RaisedAlert) {
	detached := context.WithoutCancel(ctx)
	for _, sink := range s.ext.Sinks {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()

			sinkCtx, cancel := context.WithTimeout(detached, sinkTimeout)
			defer cancel()

			if err := sink.RecordAlerts(sinkCtx, raised); err != nil {
				s.sinkMetrics.Deliveries.WithLabelValues(sink.Name(), "error").Inc()
				slog.WarnContext(sinkCtx, "Alert sink delivery failed", "sink", sink.Name(), "alerts", len(raised), "error", err)
				return
			}
			s.sinkMetrics.Deliveries.WithLabelValues(sink.Name(), "ok").Inc()
		}()
	}
}

// Wait blocks until in-flight alert deliveries finish.
func (s *Service) Wait() {
	s.inflight.Wait()
}

// RecentAlerts reads the newest n alerts from the alert feed.
// Concurrent identical queries share one backend call.
func (s *Service) RecentAlerts(ctx context.Context, n int) ([]domain.StreamedAlert, error) {
	if s.ext.Feed == nil {
		return nil, domain.ErrNotConfigured
	}
	v, err, _ := s.queries.Do(fmt.Sprintf("recent:%d", n), func() (any, error) {
		return s.ext.Feed.Recent(ctx, n)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.StreamedAlert), nil
}

// AlertHistory returns archived alerts for a monitored bed.
func (s *Service) AlertHistory(ctx context.Context, bedID domain.BedID, limit int) ([]domain.ArchivedAlert, error) {
	if _, err := s.monitor.Record(bedID); err != nil {
		return nil, err
	}
	if s.ext.Archive == nil {
		return nil, domain.ErrNotConfigured
	}
	v, err, _ := s.queries.Do(fmt.Sprintf("history:%s:%d", bedID, limit), func() (any, error) {
		return s.ext.Archive.History(ctx, bedID, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ArchivedAlert), nil
}
