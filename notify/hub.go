package notify

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/labframe/api/telemetry"
)

// defaultEventBufferSize is the queue depth per subscriber. Subscribers
// that cannot keep up lose their oldest queued events first, so a slow
// consumer sees the most recent changes rather than an ever-growing
// backlog of stale ones.
const defaultEventBufferSize = 16

// subscriber is one registered event consumer with a bounded FIFO queue
type subscriber struct {
	id    uint64
	scope string
	ch    chan ChangeEvent

	// mu orders enqueue against close so Broadcast never sends on a
	// closed channel
	mu     sync.Mutex
	closed bool
}

// matches checks if an event scope matches this subscriber's filter.
// Empty scope subscribes to all projects.
func (s *subscriber) matches(scope string) bool {
	return s.scope == "" || s.scope == scope
}

// enqueue offers an event without ever blocking the broadcaster. When
// the queue is full the oldest queued event is discarded to make room.
// Returns the number of events dropped.
func (s *subscriber) enqueue(ev ChangeEvent) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}

	dropped := 0
	for {
		select {
		case s.ch <- ev:
			return dropped
		default:
		}

		select {
		case <-s.ch:
			dropped++
		default:
			// Consumer drained concurrently; retry the send
		}
	}
}

// close closes the subscriber channel exactly once
func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Subscription is a live event feed handed to one consumer
type Subscription struct {
	sub    *subscriber
	cancel func()
}

// Events returns the receive channel. It is closed when the
// subscription is cancelled or the hub shuts down.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.sub.ch
}

// Scope returns the project filter this subscription was created with
func (s *Subscription) Scope() string {
	return s.sub.scope
}

// Cancel unregisters the subscription and closes its channel. Safe to
// call multiple times and safe to call while a broadcast is in flight.
func (s *Subscription) Cancel() {
	s.cancel()
}

// Hub fans change events out to registered subscribers. Broadcast
// snapshots the subscriber set under a read lock and delivers outside
// it, so subscribers can cancel mid-broadcast without deadlock.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      atomic.Uint64
	queueSize   int
}

// NewHub creates a hub with the given per-subscriber queue depth
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = defaultEventBufferSize
	}
	return &Hub{
		subscribers: make(map[uint64]*subscriber),
		queueSize:   queueSize,
	}
}

// Subscribe registers a consumer for events in the given scope, or all
// scopes when scope is empty.
func (h *Hub) Subscribe(scope string) *Subscription {
	sub := &subscriber{
		id:    h.nextID.Add(1),
		scope: scope,
		ch:    make(chan ChangeEvent, h.queueSize),
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	h.mu.Unlock()

	telemetry.Subscribers.Inc()

	var once sync.Once
	return &Subscription{
		sub: sub,
		cancel: func() {
			once.Do(func() { h.unsubscribe(sub.id) })
		},
	}
}

// Broadcast delivers an event to every matching subscriber. Never
// blocks: a subscriber whose queue is full loses its oldest event.
func (h *Hub) Broadcast(ev ChangeEvent) {
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		if sub.matches(ev.Scope) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	dropped := 0
	for _, sub := range targets {
		dropped += sub.enqueue(ev)
	}

	telemetry.BroadcastsTotal.Inc()
	if dropped > 0 {
		telemetry.DroppedEventsTotal.Add(float64(dropped))
		log.Debug().
			Int("dropped", dropped).
			Str("scope", ev.Scope).
			Uint64("seq", ev.Seq).
			Msg("Dropped oldest events for slow subscribers")
	}
}

// Len returns the number of registered subscribers
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close cancels every remaining subscription
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs = append(subs, sub)
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
		telemetry.Subscribers.Dec()
	}
}

// unsubscribe removes a subscriber and closes its channel
func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	sub, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
		telemetry.Subscribers.Dec()
	}
}
