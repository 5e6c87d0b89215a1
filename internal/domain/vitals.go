package domain

// BedID identifies a monitored bed for the duration of a patient's stay.
type BedID string

// Status is the clinical label derived from a channel's current value.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusLow      Status = "low"
	StatusElevated Status = "elevated"
	StatusHigh     Status = "high"
	StatusCritical Status = "critical"
	StatusFever    Status = "fever"
)

type IntReading struct {
	Value  int    `json:"value"`
	Unit   string `json:"unit,omitempty"`
	Status Status `json:"status,omitempty"`
}

type TemperatureReading struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	Status Status  `json:"status,omitempty"`
}

type BloodPressure struct {
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	Unit      string `json:"unit,omitempty"`
	Status    Status `json:"status,omitempty"`
}

// CurrentVitals is the five-channel snapshot of a bed. Channels are values, so a
// record can never hold a partial set.
type CurrentVitals struct {
	HeartRate        IntReading         `json:"heart_rate"`
	BloodPressure    BloodPressure      `json:"blood_pressure"`
	Temperature      TemperatureReading `json:"temperature"`
	RespiratoryRate  IntReading         `json:"respiratory_rate"`
	OxygenSaturation IntReading         `json:"oxygen_saturation"`
	PainScale        *IntReading        `json:"pain_scale,omitempty"`
	Timestamp        Timestamp          `json:"timestamp"`
}

type PatientInfo struct {
	Name      string `json:"name,omitempty"`
	Age       int    `json:"age,omitempty"`
	Bed       string `json:"bed,omitempty"`
	RoomType  string `json:"room_type,omitempty"`
	Diagnosis string `json:"diagnosis"`
}

type PatientVitalsRecord struct {
	PatientInfo   PatientInfo   `json:"patient_info"`
	CurrentVitals CurrentVitals `json:"current_vitals"`
	Alerts        []Alert       `json:"alerts"`
}

// Clone returns a deep copy safe to hand to readers outside the owning lock.
func (r *PatientVitalsRecord) Clone() *PatientVitalsRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.CurrentVitals.PainScale != nil {
		pain := *r.CurrentVitals.PainScale
		c.CurrentVitals.PainScale = &pain
	}
	c.Alerts = make([]Alert, len(r.Alerts))
	copy(c.Alerts, r.Alerts)
	return &c
}
