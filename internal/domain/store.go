package domain

import "time"

const DefaultRefreshInterval = 5000

// Document is the persisted JSON root.
type Document struct {
	Monitoring Monitoring `json:"vital_signs_monitoring"`
}

// Monitoring is the unit of persistence and of broadcast: every bed record plus metadata.
type Monitoring struct {
	PatientsVitals map[BedID]*PatientVitalsRecord `json:"patients_vitals"`
	Metadata       Metadata                       `json:"metadata"`
}

type Metadata struct {
	LastUpdated Timestamp `json:"last_updated"`
	// RefreshInterval is expressed in milliseconds.
	RefreshInterval int `json:"refresh_interval"`
}

// NewMonitoring returns an empty store stamped with now and the default refresh interval.
func NewMonitoring(now time.Time) Monitoring {
	return Monitoring{
		PatientsVitals: make(map[BedID]*PatientVitalsRecord),
		Metadata: Metadata{
			LastUpdated:     NewTimestamp(now),
			RefreshInterval: DefaultRefreshInterval,
		},
	}
}

func (m Monitoring) Clone() Monitoring {
	c := Monitoring{
		PatientsVitals: make(map[BedID]*PatientVitalsRecord, len(m.PatientsVitals)),
		Metadata:       m.Metadata,
	}
	for id, rec := range m.PatientsVitals {
		c.PatientsVitals[id] = rec.Clone()
	}
	return c
}
