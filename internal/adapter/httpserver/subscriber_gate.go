package httpserver

import (
	"sync"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	attemptBucketSweepEvery = 5 * time.Minute
	attemptBucketIdleAfter  = 10 * time.Minute
)

// GateLimits configures a SubscriberGate.
type GateLimits struct {
	MaxSubscribers    int
	MaxPerIP          int
	AttemptsPerSecond float64
	AttemptBurst      int
}

// GateStats is a point-in-time view of admitted subscribers.
type GateStats struct {
	Subscribers int `json:"subscribers"`
	ClientIPs   int `json:"client_ips"`
}

// SubscriberGate admits live-feed subscribers. Each client IP has a token bucket on
// connection attempts; admitted subscribers are capped per instance and per IP.
// Counters live under one lock so a rejection never leaves a partial reservation.
type SubscriberGate struct {
	clock  clockwork.Clock
	limits GateLimits

	mu      sync.Mutex
	total   int
	perIP   map[string]int
	buckets map[string]*attemptBucket
	sweepAt time.Time
}

type attemptBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewSubscriberGate(clock clockwork.Clock, limits GateLimits) *SubscriberGate {
	return &SubscriberGate{
		clock:   clock,
		limits:  limits,
		perIP:   make(map[string]int),
		buckets: make(map[string]*attemptBucket),
		sweepAt: clock.Now().Add(attemptBucketSweepEvery),
	}
}

// Admit reserves a subscriber slot for ip. On rejection the slot is nil and the
// reason is one of the metrics rejection labels. The attempt bucket is charged
// before capacity is checked, so a client hammering a full instance is still throttled.
func (g *SubscriberGate) Admit(ip string) (*SubscriberSlot, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if !g.allowAttempt(ip, now) {
		return nil, metrics.ReasonRateLimit
	}
	if g.total >= g.limits.MaxSubscribers {
		return nil, metrics.ReasonGlobalLimit
	}
	if g.perIP[ip] >= g.limits.MaxPerIP {
		return nil, metrics.ReasonPerIPLimit
	}

	g.total++
	g.perIP[ip]++
	return &SubscriberSlot{gate: g, ip: ip}, ""
}

// Stats reports current occupancy.
func (g *SubscriberGate) Stats() GateStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GateStats{Subscribers: g.total, ClientIPs: len(g.perIP)}
}

func (g *SubscriberGate) trackedBuckets() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.buckets)
}

// allowAttempt must be called with mu held.
func (g *SubscriberGate) allowAttempt(ip string, now time.Time) bool {
	if now.After(g.sweepAt) {
		cutoff := now.Add(-attemptBucketIdleAfter)
		for key, b := range g.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(g.buckets, key)
			}
		}
		g.sweepAt = now.Add(attemptBucketSweepEvery)
	}

	b, ok := g.buckets[ip]
	if !ok {
		b = &attemptBucket{limiter: rate.NewLimiter(rate.Limit(g.limits.AttemptsPerSecond), g.limits.AttemptBurst)}
		g.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (g *SubscriberGate) release(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.total--
	if n := g.perIP[ip] - 1; n > 0 {
		g.perIP[ip] = n
	} else {
		delete(g.perIP, ip)
	}
}

// SubscriberSlot is one admitted subscriber. Release is idempotent.
type SubscriberSlot struct {
	gate *SubscriberGate
	ip   string
	once sync.Once
}

func (s *SubscriberSlot) Release() {
	s.once.Do(func() { s.gate.release(s.ip) })
}
