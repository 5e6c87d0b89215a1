package vitals

import (
	"math"
	"strings"

	"github.com/acairampoma/hc-medico/internal/domain"
)

// Rand is the random source used by the Simulator. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

type intRange struct{ min, max int }

type floatRange struct{ min, max float64 }

// deltaProfile holds the diagnosis-dependent delta ranges.
type deltaProfile struct {
	heartRate   intRange
	systolic    intRange
	temperature floatRange
}

var (
	oncologicProfile = deltaProfile{
		heartRate:   intRange{-3, 8},
		systolic:    intRange{-5, 10},
		temperature: floatRange{-0.2, 0.5},
	}
	painProfile = deltaProfile{
		heartRate:   intRange{5, 15},
		systolic:    intRange{10, 25},
		temperature: floatRange{-0.1, 0.8},
	}
	baselineProfile = deltaProfile{
		heartRate:   intRange{-5, 5},
		systolic:    intRange{-8, 8},
		temperature: floatRange{-0.3, 0.3},
	}
)

var (
	diastolicDelta   = intRange{-3, 5}
	respiratoryDelta = intRange{-2, 4}
	spo2Delta        = intRange{-2, 1}
)

var (
	heartRateBounds   = intRange{45, 150}
	systolicBounds    = intRange{90, 200}
	diastolicBounds   = intRange{50, 120}
	temperatureBounds = floatRange{35.0, 42.0}
	respiratoryBounds = intRange{8, 40}
	spo2Bounds        = intRange{85, 100}
)

// Simulator produces the next reading for each channel from the current one.
// It is not safe for concurrent use; Monitor calls it under its lock.
type Simulator struct {
	rand Rand
}

func NewSimulator(r Rand) *Simulator {
	return &Simulator{rand: r}
}

func profileFor(diagnosis string) deltaProfile {
	d := strings.ToLower(diagnosis)
	switch {
	case strings.Contains(d, "cáncer") || strings.Contains(d, "tumor"):
		return oncologicProfile
	case strings.Contains(d, "renal") || strings.Contains(d, "cólico"):
		return painProfile
	default:
		return baselineProfile
	}
}

// Step applies one bounded random delta to every channel, clamping each result.
func (s *Simulator) Step(v *domain.CurrentVitals, diagnosis string) {
	p := profileFor(diagnosis)

	v.HeartRate.Value = clampInt(v.HeartRate.Value+s.intn(p.heartRate), heartRateBounds)
	v.BloodPressure.Systolic = clampInt(v.BloodPressure.Systolic+s.intn(p.systolic), systolicBounds)
	v.BloodPressure.Diastolic = clampInt(v.BloodPressure.Diastolic+s.intn(diastolicDelta), diastolicBounds)
	v.Temperature.Value = clampFloat(roundTenth(v.Temperature.Value+s.uniform(p.temperature)), temperatureBounds)
	v.RespiratoryRate.Value = clampInt(v.RespiratoryRate.Value+s.intn(respiratoryDelta), respiratoryBounds)
	v.OxygenSaturation.Value = clampInt(v.OxygenSaturation.Value+s.intn(spo2Delta), spo2Bounds)
}

// intn returns an integer in the closed range r.
func (s *Simulator) intn(r intRange) int {
	return r.min + s.rand.IntN(r.max-r.min+1)
}

// uniform returns a value in r rounded to one decimal place.
func (s *Simulator) uniform(r floatRange) float64 {
	return roundTenth(r.min + (r.max-r.min)*s.rand.Float64())
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func clampInt(v int, r intRange) int {
	return max(r.min, min(r.max, v))
}

func clampFloat(v float64, r floatRange) float64 {
	return max(r.min, min(r.max, v))
}
