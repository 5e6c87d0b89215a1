package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/acairampoma/hc-medico/internal/domain"
	apperrors "github.com/acairampoma/hc-medico/internal/platform/errors"
	goredis "github.com/redis/go-redis/v9"
)

const sinkName = "redis_stream"

// AlertStream appends raised alerts to a capped Redis stream and reads them back newest first.
type AlertStream struct {
	rdb    *goredis.Client
	stream string
	maxLen int64
}

func NewAlertStream(rdb *goredis.Client, stream string, maxLen int64) *AlertStream {
	return &AlertStream{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *AlertStream) Name() string { return sinkName }

// RecordAlerts writes all alerts in one pipeline. The stream is trimmed approximately to maxLen.
func (s *AlertStream) RecordAlerts(ctx context.Context, alerts []domain.RaisedAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	pipe := s.rdb.Pipeline()
	for _, a := range alerts {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: s.stream,
			MaxLen: s.maxLen,
			Approx: true,
			Values: map[string]any{
				"bed_id":       string(a.BedID),
				"type":         string(a.Alert.Type),
				"message":      a.Alert.Message,
				"timestamp":    a.Alert.Timestamp.UTC().Format(time.RFC3339Nano),
				"acknowledged": strconv.FormatBool(a.Alert.Acknowledged),
			},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.ExternalError("failed to append alerts to stream", err).
			WithField("stream", s.stream).
			WithField("alerts", len(alerts))
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *AlertStream) Recent(ctx context.Context, n int) ([]domain.StreamedAlert, error) {
	messages, err := s.rdb.XRevRangeN(ctx, s.stream, "+", "-", int64(n)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, apperrors.ExternalError("failed to read alert stream", err).WithField("stream", s.stream)
	}

	alerts := make([]domain.StreamedAlert, 0, len(messages))
	for _, msg := range messages {
		alert, err := decodeEntry(msg)
		if err != nil {
			return nil, fmt.Errorf("decode stream entry %s: %w", msg.ID, err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func decodeEntry(msg goredis.XMessage) (domain.StreamedAlert, error) {
	field := func(name string) string {
		v, _ := msg.Values[name].(string)
		return v
	}

	ts, err := time.Parse(time.RFC3339Nano, field("timestamp"))
	if err != nil {
		return domain.StreamedAlert{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	acknowledged, _ := strconv.ParseBool(field("acknowledged"))

	return domain.StreamedAlert{
		ID: msg.ID,
		RaisedAlert: domain.RaisedAlert{
			BedID: domain.BedID(field("bed_id")),
			Alert: domain.Alert{
				Type:         domain.AlertType(field("type")),
				Message:      field("message"),
				Timestamp:    domain.NewTimestamp(ts),
				Acknowledged: acknowledged,
			},
		},
	}, nil
}

// Ping reports whether the stream backend is reachable.
func (s *AlertStream) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
