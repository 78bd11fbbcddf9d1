// Package event implements the in-process fan-out of committed ledger
// mutations to observers.
//
// Publishing is a non-blocking enqueue into a bounded buffer per observer:
// a slow or dead observer can never delay a mutation or starve other
// observers. Delivery is at-most-once; when an observer's buffer
// overflows, the oldest undelivered event is evicted and a single
// SYSTEM_ERROR marker tells the observer it missed notifications and
// should re-query current state.
package event

import (
	"sync"

	"github.com/quangtdn/storeledger/internal/core/domain"
	"github.com/quangtdn/storeledger/internal/logging"
	"github.com/quangtdn/storeledger/internal/metrics"
)

// DefaultBufferSize is the per-observer buffer used when NewBus is given a
// non-positive size.
const DefaultBufferSize = 64

type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	bufSize int
}

func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		subs:    make(map[*Subscription]struct{}),
		bufSize: bufferSize,
	}
}

// Subscribe registers a new observer. The caller owns the subscription and
// must Close it when done.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		bus: b,
		ch:  make(chan domain.NotificationEvent, b.bufSize),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish hands the event to every registered observer without blocking.
// Events arrive in publish order; the ledger calls this synchronously
// after each commit, so per-key commit order is preserved.
func (b *Bus) Publish(evt domain.NotificationEvent) {
	metrics.EventsPublished.WithLabelValues(string(evt.Kind)).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		s.deliver(evt)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one observer's bounded event buffer.
type Subscription struct {
	bus    *Bus
	ch     chan domain.NotificationEvent
	mu     sync.Mutex
	closed bool
	missed bool
}

// Events is the receive side of the buffer. The channel is closed when the
// subscription is closed.
func (s *Subscription) Events() <-chan domain.NotificationEvent {
	return s.ch
}

// Close deregisters the observer and closes the event channel. Safe to
// call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()
	s.bus.unsubscribe(s)
}

// deliver enqueues without ever blocking the publisher. On overflow the
// oldest buffered event is evicted to make room; one missed-notifications
// marker is injected per overflow episode so the observer knows to
// reconcile via a fresh query.
func (s *Subscription) deliver(evt domain.NotificationEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- evt:
		s.missed = false
		return
	default:
	}

	s.evictOldest()
	if !s.missed {
		s.missed = true
		select {
		case s.ch <- missedNotifications():
		default:
		}
		s.evictOldest()
	}

	select {
	case s.ch <- evt:
	default:
		// Buffer still full of newer entries; the marker already records
		// the gap.
		metrics.EventsDropped.Inc()
		logging.Warn().Str("event_id", evt.ID).Str("kind", string(evt.Kind)).Msg("observer buffer full, event dropped")
	}
}

func (s *Subscription) evictOldest() {
	select {
	case <-s.ch:
		metrics.EventsDropped.Inc()
	default:
	}
}

func missedNotifications() domain.NotificationEvent {
	return domain.NewNotification(
		domain.EventSystemError,
		"Missed notifications",
		"Some notifications were dropped; refresh to see current inventory state",
		domain.EventPayload{},
	)
}
