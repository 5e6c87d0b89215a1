package broadcast

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	commandTimeout      = 5 * time.Second
	stopTimeout         = 10 * time.Second
	depthSampleInterval = 1 * time.Second
	commandBufferSize   = 256
)

var ErrTooManySubscribers = errors.New("too many subscribers")

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	id           uuid.UUID
	connection   Conn
	initial      []byte
	errorChannel chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	id     uuid.UUID
	reason string
}

type broadcastCmd struct {
	baseBroadcasterCmd
	message []byte
}

type countCmd struct {
	baseBroadcasterCmd
	replyChannel chan int
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster fans messages out to every live subscriber.
type Broadcaster struct {
	cmdCh          chan broadcasterCmd
	clock          clockwork.Clock
	metrics        *metrics.WebSocketMetrics
	subscribers    map[uuid.UUID]*clientWriter
	maxSubscribers int
	queueSize      int
	done           chan struct{}
	stopTimeout    time.Duration
	stallTimeout   time.Duration
}

// NewBroadcaster starts the actor goroutine. maxSubscribers caps the subscriber set;
// queueSize bounds how many messages may wait for one subscriber before newer updates
// are coalesced into a single parked message.
func NewBroadcaster(clock clockwork.Clock, m *metrics.WebSocketMetrics, maxSubscribers, queueSize int) *Broadcaster {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	b := &Broadcaster{
		cmdCh:          make(chan broadcasterCmd, commandBufferSize),
		clock:          clock,
		metrics:        m,
		subscribers:    make(map[uuid.UUID]*clientWriter),
		maxSubscribers: maxSubscribers,
		queueSize:      queueSize,
		done:           make(chan struct{}),
		stopTimeout:    stopTimeout,
		stallTimeout:   stallTimeout,
	}
	go b.run()
	return b
}

// Register adds a subscriber. initial is queued before any later broadcast, so the
// subscriber always sees its snapshot first.
func (b *Broadcaster) Register(conn Conn, initial []byte) (uuid.UUID, error) {
	id := uuid.New()
	errCh := make(chan error, 1)
	if !b.send(registerCmd{id: id, connection: conn, initial: initial, errorChannel: errCh}) {
		return uuid.Nil, errors.New("broadcaster stopped")
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			return uuid.Nil, err
		}
		return id, nil
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a subscriber. Unknown IDs are ignored.
func (b *Broadcaster) Unregister(id uuid.UUID) {
	b.send(unregisterCmd{id: id, reason: "disconnected"})
}

// Broadcast queues msg for every current subscriber.
func (b *Broadcaster) Broadcast(msg []byte) {
	b.send(broadcastCmd{message: msg})
}

// SubscriberCount returns the number of live subscribers, or -1 if the actor does not answer.
func (b *Broadcaster) SubscriberCount() int {
	replyCh := make(chan int, 1)
	if !b.send(countCmd{replyChannel: replyCh}) {
		return -1
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("SubscriberCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop closes every subscriber and waits for the actor to exit or the stop timeout to pass.
func (b *Broadcaster) Stop() {
	if !b.send(stopCmd{}) {
		return
	}

	timeout := b.clock.NewTimer(b.stopTimeout)
	defer timeout.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", b.stopTimeout)
		b.metrics.StopTimeouts.Inc()
	}
}

// send delivers a command unless the actor has already exited.
func (b *Broadcaster) send(cmd broadcasterCmd) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	select {
	case b.cmdCh <- cmd:
		return true
	case <-b.done:
		return false
	}
}

func (b *Broadcaster) run() {
	defer close(b.done)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			b.metrics.Panics.Inc()
			b.closeAll("broadcaster failure")
		}
	}()

	depthTicker := b.clock.NewTicker(depthSampleInterval)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(b.cmdCh)
			b.metrics.CommandChannelDepth.Set(float64(depth))
			if depth > commandBufferSize*4/5 {
				slog.Warn("Command channel near capacity", "depth", depth, "capacity", cap(b.cmdCh))
			}

		case cmd := <-b.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				b.handleRegister(c)
			case unregisterCmd:
				b.handleUnregister(c.id, c.reason)
			case broadcastCmd:
				b.handleBroadcast(c.message)
			case countCmd:
				c.replyChannel <- len(b.subscribers)
			case stopCmd:
				b.handleStop()
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if b.maxSubscribers > 0 && len(b.subscribers) >= b.maxSubscribers {
		slog.Warn("Rejecting subscriber: limit reached", "max_subscribers", b.maxSubscribers)
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("%w (%d)", ErrTooManySubscribers, b.maxSubscribers)
		return
	}

	cw := newClientWriter(c.connection, b.clock, b.queueSize, b.metrics, func() {
		b.send(unregisterCmd{id: c.id, reason: metrics.ReasonWriteFailed})
	})
	if len(c.initial) > 0 {
		cw.sendChannel <- c.initial
	}
	b.subscribers[c.id] = cw
	b.metrics.ActiveSubscribers.Set(float64(len(b.subscribers)))

	slog.Debug("Subscriber registered", "subscriber_id", c.id.String(), "total_subscribers", len(b.subscribers))
	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnregister(id uuid.UUID, reason string) {
	cw, exists := b.subscribers[id]
	if !exists {
		return
	}

	cw.stop()
	delete(b.subscribers, id)
	b.metrics.ActiveSubscribers.Set(float64(len(b.subscribers)))
	if reason != "disconnected" {
		b.metrics.Evictions.WithLabelValues(reason).Inc()
	}

	slog.Debug("Subscriber removed", "subscriber_id", id.String(), "reason", reason, "remaining_subscribers", len(b.subscribers))
}

func (b *Broadcaster) handleBroadcast(msg []byte) {
	start := b.clock.Now()
	b.metrics.BroadcastsTotal.Inc()

	// Collect failures during the sweep and remove them afterwards.
	var failed, slow []uuid.UUID
	for id, cw := range b.subscribers {
		switch {
		case cw.failed():
			failed = append(failed, id)
		case cw.stalled(start, b.stallTimeout):
			slow = append(slow, id)
		default:
			cw.enqueue(msg)
		}
	}

	for _, id := range failed {
		b.handleUnregister(id, metrics.ReasonWriteFailed)
	}
	for _, id := range slow {
		slog.Warn("Disconnecting stalled subscriber", "subscriber_id", id.String(), "stall_timeout", b.stallTimeout)
		b.handleUnregister(id, metrics.ReasonSlow)
	}

	b.metrics.BroadcastDuration.Observe(b.clock.Since(start).Seconds())
}

func (b *Broadcaster) handleStop() {
	slog.Info("Broadcaster shutting down", "subscribers", len(b.subscribers))
	b.closeAll("Server shutting down")
	slog.Info("Broadcaster shutdown complete")
}

// closeAll closes every subscriber with a close frame carrying reason.
func (b *Broadcaster) closeAll(reason string) {
	for id, cw := range b.subscribers {
		cw.stopGraceful(reason)
		delete(b.subscribers, id)
	}
	b.metrics.ActiveSubscribers.Set(0)
}
