package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline    = 5 * time.Second
	pingInterval     = 30 * time.Second
	defaultQueueSize = 16
	// stallTimeout is how long one write may block before a backlogged subscriber is evicted.
	stallTimeout = writeDeadline
)

// Conn is the write side of a subscriber connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type clientWriter struct {
	connection  Conn
	clock       clockwork.Clock
	metrics     *metrics.WebSocketMetrics
	sendChannel chan []byte
	doneChannel chan struct{}
	onFailure   func()
	broken      atomic.Bool
	stopOnce    sync.Once
	wg          sync.WaitGroup

	// writingSince is the clock time in unix nanos at which the current write started, 0 when idle.
	writingSince atomic.Int64
	wakeChannel  chan struct{}

	mu     sync.Mutex
	parked []byte
}

func newClientWriter(connection Conn, clock clockwork.Clock, queueSize int, m *metrics.WebSocketMetrics, onFailure func()) *clientWriter {
	cw := &clientWriter{
		connection:  connection,
		clock:       clock,
		metrics:     m,
		sendChannel: make(chan []byte, queueSize),
		doneChannel: make(chan struct{}),
		wakeChannel: make(chan struct{}, 1),
		onFailure:   onFailure,
	}
	cw.wg.Add(1)
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	ticker := cw.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer cw.wg.Done()

	for {
		select {
		case msg := <-cw.sendChannel:
			if !cw.write(websocket.TextMessage, msg) {
				return
			}
		case <-cw.wakeChannel:
			if !cw.drainQueue() {
				return
			}
			if msg := cw.takeParked(); msg != nil && !cw.write(websocket.TextMessage, msg) {
				return
			}
		case <-ticker.Chan():
			if !cw.write(websocket.PingMessage, nil) {
				return
			}
		case <-cw.doneChannel:
			return
		}
	}
}

// drainQueue writes everything already queued. Nothing is queued while a message is
// parked, so the loop ends.
func (cw *clientWriter) drainQueue() bool {
	for {
		select {
		case msg := <-cw.sendChannel:
			if !cw.write(websocket.TextMessage, msg) {
				return false
			}
		default:
			return true
		}
	}
}

func (cw *clientWriter) write(messageType int, msg []byte) bool {
	cw.writingSince.Store(cw.clock.Now().UnixNano())
	defer cw.writingSince.Store(0)

	cw.updateWriteDeadline()
	if err := cw.connection.WriteMessage(messageType, msg); err != nil {
		cw.fail()
		return false
	}
	if messageType == websocket.TextMessage {
		cw.metrics.MessagesSent.Inc()
	}
	return true
}

// enqueue hands msg to the writer without blocking. When the queue is full msg is parked
// and replaces any message parked before it. Messages are complete snapshots.
func (cw *clientWriter) enqueue(msg []byte) {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.parked == nil {
		select {
		case cw.sendChannel <- msg:
			return
		default:
		}
	}
	cw.parked = msg
	select {
	case cw.wakeChannel <- struct{}{}:
	default:
	}
}

func (cw *clientWriter) takeParked() []byte {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	msg := cw.parked
	cw.parked = nil
	return msg
}

// stalled reports whether the queue is full and the current write has been blocked for
// at least after. A full queue behind a writer that keeps completing writes is not a stall.
func (cw *clientWriter) stalled(now time.Time, after time.Duration) bool {
	if len(cw.sendChannel) < cap(cw.sendChannel) {
		return false
	}
	since := cw.writingSince.Load()
	return since != 0 && now.Sub(time.Unix(0, since)) >= after
}

// fail marks the writer as broken and asks the broadcaster to drop it.
// The callback runs on its own goroutine because the broadcaster may be waiting on this writer.
func (cw *clientWriter) fail() {
	cw.broken.Store(true)
	if cw.onFailure != nil {
		go cw.onFailure()
	}
}

func (cw *clientWriter) failed() bool {
	return cw.broken.Load()
}

func (cw *clientWriter) stop() {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)
		_ = cw.connection.Close()
	})
	cw.wg.Wait()
}

// stopGraceful sends a WebSocket close frame with reason before closing.
func (cw *clientWriter) stopGraceful(reason string) {
	cw.stopOnce.Do(func() {
		close(cw.doneChannel)

		// The run goroutine must exit before the close frame is written.
		cw.wg.Wait()

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		cw.updateWriteDeadline()
		_ = cw.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = cw.connection.Close()
	})
}

func (cw *clientWriter) updateWriteDeadline() {
	_ = cw.connection.SetWriteDeadline(cw.clock.Now().Add(writeDeadline))
}
