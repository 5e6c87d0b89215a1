package app

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/acairampoma/hc-medico/internal/platform/correlation"
	"github.com/jonboulle/clockwork"
)

// Ticker is the work the scheduler drives on every cycle.
type Ticker interface {
	Tick(ctx context.Context)
	Persist(ctx context.Context) error
}

// Scheduler drives periodic simulation and broadcast, and persists the store once at
// least persistEvery has elapsed since the last write.
type Scheduler struct {
	target       Ticker
	clock        clockwork.Clock
	interval     time.Duration
	persistEvery time.Duration
	running      atomic.Bool
	cycles       atomic.Uint64
}

func NewScheduler(target Ticker, clock clockwork.Clock, interval, persistEvery time.Duration) *Scheduler {
	s := &Scheduler{
		target:       target,
		clock:        clock,
		interval:     interval,
		persistEvery: persistEvery,
	}
	s.running.Store(true)
	return s
}

// Run blocks until ctx is cancelled or Stop has been observed at a cycle boundary.
func (s *Scheduler) Run(ctx context.Context) {
	lastPersist := s.clock.Now()
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Scheduler started", "interval", s.interval, "persist_every", s.persistEvery)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduler context cancelled")
			return
		case <-ticker.Chan():
			if !s.running.Load() {
				slog.InfoContext(ctx, "Scheduler stopped")
				return
			}

			tickCtx := correlation.WithTick(correlation.WithID(ctx, correlation.NewID()), s.cycles.Add(1))
			s.tick(tickCtx)

			if now := s.clock.Now(); now.Sub(lastPersist) >= s.persistEvery {
				lastPersist = now
				if err := s.target.Persist(tickCtx); err != nil {
					slog.ErrorContext(tickCtx, "Scheduled persistence failed", "error", err)
				}
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Scheduler tick panic recovered", "panic", r)
		}
	}()
	s.target.Tick(ctx)
}

// Stop clears the on/off flag. The loop exits at its next cycle.
func (s *Scheduler) Stop() {
	s.running.Store(false)
}

// Running reports the on/off flag, not whether Run is currently looping.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Cycles reports how many ticks Run has dispatched.
func (s *Scheduler) Cycles() uint64 {
	return s.cycles.Load()
}
