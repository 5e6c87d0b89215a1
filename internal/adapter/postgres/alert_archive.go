package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/acairampoma/hc-medico/internal/domain"
	apperrors "github.com/acairampoma/hc-medico/internal/platform/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sinkName = "postgres_archive"

const insertAlertSQL = `
INSERT INTO vital_alerts (bed_id, alert_type, message, raised_at)
VALUES ($1, $2, $3, $4)`

const historySQL = `
SELECT id, bed_id, alert_type, message, raised_at, recorded_at
FROM vital_alerts
WHERE bed_id = $1
ORDER BY raised_at DESC, id DESC
LIMIT $2`

// AlertArchive stores every raised alert and serves per-bed history.
type AlertArchive struct {
	pool *pgxpool.Pool
}

func NewAlertArchive(pool *pgxpool.Pool) *AlertArchive {
	return &AlertArchive{pool: pool}
}

func (a *AlertArchive) Name() string { return sinkName }

// RecordAlerts inserts all alerts in a single batch round trip.
func (a *AlertArchive) RecordAlerts(ctx context.Context, alerts []domain.RaisedAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range alerts {
		batch.Queue(insertAlertSQL, string(r.BedID), string(r.Alert.Type), r.Alert.Message, r.Alert.Timestamp.Time)
	}

	if err := a.pool.SendBatch(ctx, batch).Close(); err != nil {
		return apperrors.ExternalError("failed to archive alerts", err).WithField("alerts", len(alerts))
	}
	return nil
}

// History returns up to limit alerts for bedID, newest first.
func (a *AlertArchive) History(ctx context.Context, bedID domain.BedID, limit int) ([]domain.ArchivedAlert, error) {
	rows, err := a.pool.Query(ctx, historySQL, string(bedID), limit)
	if err != nil {
		return nil, apperrors.ExternalError("failed to query alert history", err).WithField("bed_id", bedID)
	}

	history, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ArchivedAlert, error) {
		var (
			entry                domain.ArchivedAlert
			bed, alertType       string
			raisedAt, recordedAt time.Time
		)
		if err := row.Scan(&entry.ID, &bed, &alertType, &entry.Message, &raisedAt, &recordedAt); err != nil {
			return entry, err
		}
		entry.BedID = domain.BedID(bed)
		entry.Type = domain.AlertType(alertType)
		entry.RaisedAt = domain.NewTimestamp(raisedAt)
		entry.RecordedAt = domain.NewTimestamp(recordedAt)
		return entry, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan alert history: %w", err)
	}
	return history, nil
}

func (a *AlertArchive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}
