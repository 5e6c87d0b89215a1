package domain

import "context"

// SnapshotStore persists the whole monitoring document.
type SnapshotStore interface {
	Load(ctx context.Context) Monitoring
	Save(ctx context.Context, m Monitoring) error
}

// AlertSink receives alerts as they are raised. Implementations must be safe for concurrent use.
type AlertSink interface {
	Name() string
	RecordAlerts(ctx context.Context, alerts []RaisedAlert) error
}

// Publisher fans a pre-encoded message out to live subscribers.
type Publisher interface {
	Broadcast(msg []byte)
}

// AlertFeed returns the most recent alerts across all beds, newest first.
type AlertFeed interface {
	Recent(ctx context.Context, n int) ([]StreamedAlert, error)
}

// AlertArchive returns a bed's archived alerts, newest first.
type AlertArchive interface {
	History(ctx context.Context, bedID BedID, limit int) ([]ArchivedAlert, error)
}
