package vitals

import (
	"fmt"
	"time"

	"github.com/acairampoma/hc-medico/internal/domain"
)

const (
	alertRetention = time.Hour
	maxAlerts      = 10

	criticalSpO2       = 90
	tachycardiaBPM     = 120
	hypertensiveCrisis = 180
)

// MaintainAlerts expires alerts older than the retention window, appends one alert per
// threshold rule that fires on the current vitals, and keeps only the newest entries.
// It returns the alerts raised by this call.
func MaintainAlerts(rec *domain.PatientVitalsRecord, now time.Time) []domain.Alert {
	kept := make([]domain.Alert, 0, len(rec.Alerts)+3)
	for _, a := range rec.Alerts {
		if now.Sub(a.Timestamp.Time) < alertRetention {
			kept = append(kept, a)
		}
	}

	raised := evaluateRules(&rec.CurrentVitals, now)
	kept = append(kept, raised...)

	if len(kept) > maxAlerts {
		kept = append([]domain.Alert(nil), kept[len(kept)-maxAlerts:]...)
	}
	rec.Alerts = kept
	return raised
}

func evaluateRules(v *domain.CurrentVitals, now time.Time) []domain.Alert {
	var raised []domain.Alert
	ts := domain.NewTimestamp(now)

	if v.OxygenSaturation.Value < criticalSpO2 {
		raised = append(raised, domain.Alert{
			Type:      domain.AlertCritical,
			Message:   fmt.Sprintf("Saturación crítica: %d%%", v.OxygenSaturation.Value),
			Timestamp: ts,
		})
	}

	if v.HeartRate.Value > tachycardiaBPM {
		raised = append(raised, domain.Alert{
			Type:      domain.AlertWarning,
			Message:   fmt.Sprintf("Taquicardia: %d bpm", v.HeartRate.Value),
			Timestamp: ts,
		})
	}

	if v.BloodPressure.Systolic > hypertensiveCrisis {
		raised = append(raised, domain.Alert{
			Type:      domain.AlertCritical,
			Message:   fmt.Sprintf("Crisis hipertensiva: %d/%d", v.BloodPressure.Systolic, v.BloodPressure.Diastolic),
			Timestamp: ts,
		})
	}

	return raised
}
