// Command archive-backfill copies alerts from the Redis alert stream into the Postgres
// archive. It is meant for seeding an archive that was enabled after the stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/postgres"
	"github.com/acairampoma/hc-medico/internal/adapter/redis"
	"github.com/acairampoma/hc-medico/internal/domain"
	"github.com/acairampoma/hc-medico/internal/platform/logging"
	"github.com/acairampoma/hc-medico/internal/platform/version"
)

const batchSize = 500

func main() {
	var (
		redisURL    = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		stream      = flag.String("stream", "vitals:alerts", "Alert stream key")
		limit       = flag.Int("limit", 10000, "Maximum number of stream entries to copy")
		dryRun      = flag.Bool("dry-run", false, "Dry run mode (don't write to Postgres)")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
		showVersion = flag.Bool("version", false, "Print build information and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}
	if *databaseURL == "" && !*dryRun {
		log.Fatal("Postgres URL required (--database or DATABASE_URL env)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rdb, err := redis.NewClient(ctx, *redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	alerts, err := redis.NewAlertStream(rdb, *stream, int64(*limit)).Recent(ctx, *limit)
	if err != nil {
		log.Fatalf("Failed to read alert stream: %v", err)
	}
	slog.Info("Read alert stream", "stream", *stream, "entries", len(alerts))

	var archive domain.AlertSink
	if !*dryRun {
		pool, err := postgres.Connect(ctx, *databaseURL, nil)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		archive = postgres.NewAlertArchive(pool)
	}

	copied, err := backfill(ctx, archive, alerts)
	if err != nil {
		log.Fatalf("Backfill failed after %d alerts: %v", copied, err)
	}

	slog.Info("Backfill complete", "copied", copied, "dry_run", *dryRun)
}

// backfill writes alerts oldest first in batches. A nil archive only counts.
func backfill(ctx context.Context, archive domain.AlertSink, alerts []domain.StreamedAlert) (int, error) {
	start := time.Now()
	raised := make([]domain.RaisedAlert, 0, len(alerts))
	for i := len(alerts) - 1; i >= 0; i-- {
		slog.Debug("Queued alert", "id", alerts[i].ID, "bed_id", alerts[i].BedID, "type", alerts[i].Alert.Type)
		raised = append(raised, alerts[i].RaisedAlert)
	}

	copied := 0
	for len(raised) > 0 {
		n := min(batchSize, len(raised))
		if archive != nil {
			if err := archive.RecordAlerts(ctx, raised[:n]); err != nil {
				return copied, fmt.Errorf("record batch: %w", err)
			}
		}
		copied += n
		raised = raised[n:]
	}

	slog.Info("Backfill summary", "alerts", copied, "duration_ms", time.Since(start).Milliseconds())
	return copied, nil
}

func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	return u.Redacted()
}
