package domain

const (
	MessageInitialData      = "initial_data"
	MessageVitalSignsUpdate = "vital_signs_update"
)

// SubscriberMessage is the envelope pushed to live subscribers.
type SubscriberMessage struct {
	Type      string                         `json:"type"`
	Data      map[BedID]*PatientVitalsRecord `json:"data"`
	Timestamp Timestamp                      `json:"timestamp"`
}
