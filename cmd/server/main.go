package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/filestore"
	"github.com/acairampoma/hc-medico/internal/adapter/httpserver"
	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/acairampoma/hc-medico/internal/adapter/postgres"
	"github.com/acairampoma/hc-medico/internal/adapter/redis"
	"github.com/acairampoma/hc-medico/internal/app"
	"github.com/acairampoma/hc-medico/internal/broadcast"
	"github.com/acairampoma/hc-medico/internal/platform/config"
	"github.com/acairampoma/hc-medico/internal/platform/logging"
	"github.com/acairampoma/hc-medico/internal/platform/version"
	"github.com/acairampoma/hc-medico/internal/vitals"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
)

const subscriberQueueSize = 16

type shutdownDeps struct {
	srv         *httpserver.Server
	svc         *app.Service
	scheduler   *app.Scheduler
	cancelRun   context.CancelFunc
	broadcaster *broadcast.Broadcaster
}

func runGracefulShutdown(d shutdownDeps) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		d.scheduler.Stop()
		d.cancelRun()

		if err := d.svc.Persist(shutdownCtx); err != nil {
			slog.Error("Final persistence failed", "error", err)
		}
		d.svc.Wait()
		d.broadcaster.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, dm *metrics.DatabaseMetrics, clock clockwork.Clock) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.NewQueryTracer(dm, clock))
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config, sm *metrics.AlertSinkMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.RedisURL, redis.NewCircuitBreakerHook("redis", sm))
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "build", info.String(), "env", cfg.AppEnv, "port", cfg.Port)

	registry := metrics.NewRegistry()
	monitorMetrics := metrics.NewMonitorMetrics(registry)
	sinkMetrics := metrics.NewAlertSinkMetrics(registry)
	wsMetrics := metrics.NewWebSocketMetrics(registry)

	snapshots := filestore.NewSnapshotFile(afero.NewOsFs(), cfg.VitalsFile, clock)
	initial := snapshots.Load(context.Background())

	healthChecks := []httpserver.HealthCheck{
		{Name: "snapshot", Check: snapshots.CheckWritable},
	}

	var ext app.Extensions
	if cfg.RedisURL != "" {
		redisClient := setupRedis(cfg, sinkMetrics)
		defer func() { _ = redisClient.Close() }()

		stream := redis.NewAlertStream(redisClient, cfg.AlertStream, cfg.AlertStreamMaxLen)
		ext.Sinks = append(ext.Sinks, stream)
		ext.Feed = stream
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "redis", Check: stream.Ping})
		slog.Info("Alert stream enabled", "stream", cfg.AlertStream)
	}
	if cfg.DatabaseURL != "" {
		pool := setupDB(cfg, metrics.NewDatabaseMetrics(registry), clock)
		defer pool.Close()

		archive := postgres.NewAlertArchive(pool)
		ext.Sinks = append(ext.Sinks, archive)
		ext.Archive = archive
		healthChecks = append(healthChecks, httpserver.HealthCheck{Name: "postgres", Check: archive.Ping})
		slog.Info("Alert archive enabled")
	}

	simulator := vitals.NewSimulator(rand.New(rand.NewPCG(uint64(clock.Now().UnixNano()), rand.Uint64())))
	monitor := vitals.NewMonitor(initial, simulator, clock)

	broadcaster := broadcast.NewBroadcaster(clock, wsMetrics, cfg.MaxWebSocketConnections, subscriberQueueSize)
	svc := app.NewService(monitor, snapshots, broadcaster, ext, monitorMetrics, sinkMetrics, clock)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	scheduler := app.NewScheduler(svc, clock, cfg.TickInterval, cfg.PersistInterval)
	if cfg.SimulationEnabled {
		go scheduler.Run(runCtx)
	} else {
		scheduler.Stop()
		slog.Info("Simulation disabled, serving stored readings only")
	}

	srv, err := httpserver.NewServer(cfg, httpserver.Dependencies{
		App:          svc,
		Hub:          broadcaster,
		Registry:     registry,
		HTTPMetrics:  metrics.NewHTTPMetrics(registry),
		WSMetrics:    wsMetrics,
		HealthChecks: healthChecks,
		Simulation:   scheduler,
		Clock:        clock,
	})
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	metrics.RegisterBuildInfo(registry, info.Version, info.Commit, info.GoVersion)

	done := runGracefulShutdown(shutdownDeps{
		srv:         srv,
		svc:         svc,
		scheduler:   scheduler,
		cancelRun:   cancelRun,
		broadcaster: broadcaster,
	})

	slog.Info("Server starting", "port", cfg.Port, "beds", len(initial.PatientsVitals), "vitals_file", cfg.VitalsFile)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
