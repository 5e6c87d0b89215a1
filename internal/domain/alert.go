package domain

type AlertType string

const (
	AlertWarning  AlertType = "warning"
	AlertCritical AlertType = "critical"
)

type Alert struct {
	Type         AlertType `json:"type"`
	Message      string    `json:"message"`
	Timestamp    Timestamp `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// RaisedAlert is an alert paired with the bed that produced it, as handed to alert sinks.
type RaisedAlert struct {
	BedID BedID `json:"bed_id"`
	Alert Alert `json:"alert"`
}

// StreamedAlert is a raised alert as read back from the alert stream.
type StreamedAlert struct {
	ID string `json:"id"`
	RaisedAlert
}

// ArchivedAlert is one stored row of the alert archive.
type ArchivedAlert struct {
	ID         int64     `json:"id"`
	BedID      BedID     `json:"bed_id"`
	Type       AlertType `json:"type"`
	Message    string    `json:"message"`
	RaisedAt   Timestamp `json:"raised_at"`
	RecordedAt Timestamp `json:"recorded_at"`
}
