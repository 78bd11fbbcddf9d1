package gateway

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/quangtdn/storeledger/internal/logging"
)

// State is an observer connection's lifecycle phase.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

const (
	// DefaultReconnectDelay is the fixed wait between connection attempts.
	DefaultReconnectDelay = 5 * time.Second

	// MaxRecent caps the per-observer notification history.
	MaxRecent = 50
)

// Observer is the client side of the gateway: it dials the hub, receives
// notifications into a bounded ring, and runs an explicit
// CONNECTING -> OPEN -> CLOSED -> (retry) -> CONNECTING state machine.
// Retries continue until Close is called; delivery is at-most-once, so
// after a reconnect the caller should refresh state via the query API.
type Observer struct {
	url        string
	dialer     *websocket.Dialer
	retryDelay time.Duration

	// OnEvent, when set before Start, is invoked for every received
	// notification after it is recorded in the ring.
	OnEvent func(WireMessage)

	state   atomic.Int32
	started atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
	ring *notificationRing

	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

// ObserverOption configures an Observer before Start.
type ObserverOption func(*Observer)

// WithReconnectDelay overrides the fixed retry delay.
func WithReconnectDelay(d time.Duration) ObserverOption {
	return func(o *Observer) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

func NewObserver(url string, opts ...ObserverOption) *Observer {
	o := &Observer{
		url:        url,
		dialer:     websocket.DefaultDialer,
		retryDelay: DefaultReconnectDelay,
		ring:       newNotificationRing(MaxRecent),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	o.state.Store(int32(StateClosed))
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start launches the connection loop. Call Close to stop it; application
// shutdown signals do not cancel the retry loop on their own.
func (o *Observer) Start() {
	if !o.started.CompareAndSwap(false, true) {
		return
	}
	go o.run()
}

// State returns the current lifecycle phase.
func (o *Observer) State() State {
	return State(o.state.Load())
}

// Close ends the observer permanently: the current connection is torn down
// and the retry loop terminates.
func (o *Observer) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
		o.mu.Lock()
		if o.conn != nil {
			_ = o.conn.Close()
		}
		o.mu.Unlock()
	})
	if o.started.Load() {
		<-o.stopped
	} else {
		o.state.Store(int32(StateClosed))
	}
}

// Recent returns up to MaxRecent received notifications, newest first.
func (o *Observer) Recent() []WireMessage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ring.snapshot()
}

// MarkRead flags one notification as read.
func (o *Observer) MarkRead(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ring.markRead(id)
}

// UnreadCount returns how many buffered notifications are unread.
func (o *Observer) UnreadCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ring.unread()
}

func (o *Observer) run() {
	defer close(o.stopped)
	defer o.state.Store(int32(StateClosed))

	for {
		select {
		case <-o.done:
			return
		default:
		}

		o.state.Store(int32(StateConnecting))
		conn, resp, err := o.dialer.Dial(o.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			o.state.Store(int32(StateClosed))
			logging.Debug().Err(err).Str("url", o.url).Msg("observer dial failed")
			if !o.waitRetry() {
				return
			}
			continue
		}

		// Close may have landed while the handshake was in flight; the
		// done check and the conn publication must be one critical section
		// or the fresh connection escapes the teardown.
		o.mu.Lock()
		select {
		case <-o.done:
			o.mu.Unlock()
			_ = conn.Close()
			return
		default:
		}
		o.conn = conn
		o.mu.Unlock()
		o.state.Store(int32(StateOpen))

		o.readLoop(conn)

		o.mu.Lock()
		o.conn = nil
		o.mu.Unlock()
		_ = conn.Close()
		o.state.Store(int32(StateClosed))

		if !o.waitRetry() {
			return
		}
	}
}

func (o *Observer) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg WireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Warn().Err(err).Msg("observer received malformed notification")
			continue
		}
		o.mu.Lock()
		o.ring.add(msg)
		o.mu.Unlock()
		if o.OnEvent != nil {
			o.OnEvent(msg)
		}
	}
}

// waitRetry sleeps the fixed delay plus a little jitter, returning false
// when the observer was closed while waiting.
func (o *Observer) waitRetry() bool {
	jitter := time.Duration(rand.Int63n(int64(o.retryDelay)/10 + 1))
	timer := time.NewTimer(o.retryDelay + jitter)
	defer timer.Stop()
	select {
	case <-o.done:
		return false
	case <-timer.C:
		return true
	}
}
