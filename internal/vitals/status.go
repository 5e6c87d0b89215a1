package vitals

import "github.com/acairampoma/hc-medico/internal/domain"

func HeartRateStatus(bpm int) domain.Status {
	switch {
	case bpm < 60:
		return domain.StatusLow
	case bpm > 100:
		return domain.StatusElevated
	default:
		return domain.StatusNormal
	}
}

func SystolicStatus(mmHg int) domain.Status {
	switch {
	case mmHg >= 180:
		return domain.StatusCritical
	case mmHg >= 140:
		return domain.StatusHigh
	case mmHg >= 130:
		return domain.StatusElevated
	default:
		return domain.StatusNormal
	}
}

func TemperatureStatus(celsius float64) domain.Status {
	switch {
	case celsius >= 38.0:
		return domain.StatusFever
	case celsius >= 37.5:
		return domain.StatusElevated
	case celsius < 36.0:
		return domain.StatusLow
	default:
		return domain.StatusNormal
	}
}

func OxygenSaturationStatus(percent int) domain.Status {
	switch {
	case percent < 90:
		return domain.StatusCritical
	case percent < 95:
		return domain.StatusLow
	default:
		return domain.StatusNormal
	}
}

// DeriveStatuses recomputes the status of every channel that carries one.
// Diastolic pressure and respiratory rate are left untouched.
func DeriveStatuses(v *domain.CurrentVitals) {
	v.HeartRate.Status = HeartRateStatus(v.HeartRate.Value)
	v.BloodPressure.Status = SystolicStatus(v.BloodPressure.Systolic)
	v.Temperature.Status = TemperatureStatus(v.Temperature.Value)
	v.OxygenSaturation.Status = OxygenSaturationStatus(v.OxygenSaturation.Value)
}
