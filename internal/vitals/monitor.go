package vitals

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/acairampoma/hc-medico/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Monitor owns the in-memory vital record store.
type Monitor struct {
	mu    sync.RWMutex
	clock clockwork.Clock
	sim   *Simulator
	state domain.Monitoring
}

// NewMonitor takes ownership of initial. Beds whose record is null are dropped.
func NewMonitor(initial domain.Monitoring, sim *Simulator, clock clockwork.Clock) *Monitor {
	if initial.PatientsVitals == nil {
		initial.PatientsVitals = make(map[domain.BedID]*domain.PatientVitalsRecord)
	}
	for id, rec := range initial.PatientsVitals {
		if rec == nil {
			slog.Warn("Dropping bed without a vitals record", "bed_id", id)
			delete(initial.PatientsVitals, id)
			continue
		}
		if rec.Alerts == nil {
			rec.Alerts = []domain.Alert{}
		}
	}
	if initial.Metadata.RefreshInterval <= 0 {
		initial.Metadata.RefreshInterval = domain.DefaultRefreshInterval
	}

	return &Monitor{
		clock: clock,
		sim:   sim,
		state: initial,
	}
}

// Simulate advances one bed by a single step and re-evaluates its status and alerts.
// ok is false when the bed is not monitored; nothing changes in that case.
func (m *Monitor) Simulate(bedID domain.BedID) (rec *domain.PatientVitalsRecord, raised []domain.RaisedAlert, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.state.PatientsVitals[bedID]
	if !exists {
		return nil, nil, false
	}

	raised = m.step(bedID, current)
	return current.Clone(), raised, true
}

// SimulateAll advances every monitored bed once, in bed order.
func (m *Monitor) SimulateAll() []domain.RaisedAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	var raised []domain.RaisedAlert
	for _, id := range m.sortedIDs() {
		raised = append(raised, m.step(id, m.state.PatientsVitals[id])...)
	}
	return raised
}

// Must be called with mu held.
func (m *Monitor) step(bedID domain.BedID, rec *domain.PatientVitalsRecord) []domain.RaisedAlert {
	now := m.clock.Now()

	m.sim.Step(&rec.CurrentVitals, rec.PatientInfo.Diagnosis)
	rec.CurrentVitals.Timestamp = domain.NewTimestamp(now)
	DeriveStatuses(&rec.CurrentVitals)

	alerts := MaintainAlerts(rec, now)
	if len(alerts) == 0 {
		return nil
	}
	raised := make([]domain.RaisedAlert, len(alerts))
	for i, a := range alerts {
		raised[i] = domain.RaisedAlert{BedID: bedID, Alert: a}
	}
	return raised
}

// Acknowledge marks one alert of a bed as acknowledged. Acknowledging twice is a no-op.
func (m *Monitor) Acknowledge(bedID domain.BedID, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.state.PatientsVitals[bedID]
	if !exists {
		return domain.ErrBedNotFound
	}
	if index < 0 || index >= len(rec.Alerts) {
		return domain.ErrAlertNotFound
	}
	rec.Alerts[index].Acknowledged = true
	return nil
}

// Record returns a copy of one bed's record.
func (m *Monitor) Record(bedID domain.BedID) (*domain.PatientVitalsRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.state.PatientsVitals[bedID]
	if !exists {
		return nil, domain.ErrBedNotFound
	}
	return rec.Clone(), nil
}

// Snapshot returns a deep copy of the whole store.
func (m *Monitor) Snapshot() domain.Monitoring {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// Checkpoint stamps metadata.last_updated with the current time and returns a copy for persistence.
func (m *Monitor) Checkpoint() domain.Monitoring {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Metadata.LastUpdated = domain.NewTimestamp(m.clock.Now())
	return m.state.Clone()
}

// BedIDs returns the monitored beds in ascending order.
func (m *Monitor) BedIDs() []domain.BedID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedIDs()
}

func (m *Monitor) sortedIDs() []domain.BedID {
	ids := make([]domain.BedID, 0, len(m.state.PatientsVitals))
	for id := range m.state.PatientsVitals {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
