package changefeed

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// subscriptionBuffer is how many events a subscriber may fall behind before it
// is dropped.
const subscriptionBuffer = 64

// Subscription receives the events matching its filter on C. C is closed when
// the subscription is closed or dropped for being too slow.
type Subscription struct {
	C <-chan Event

	send   chan Event
	filter Filter
	hub    *Hub
	once   sync.Once
}

// Filter returns the subscription's filter.
func (s *Subscription) Filter() Filter {
	return s.filter
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
	})
}

// Hub fans events out to subscribers, organised by table.
type Hub struct {
	// Registered subscriptions organized by table; "" holds table-less filters
	subscribers map[Table]map[*Subscription]bool

	// Channel for published events
	broadcast chan Event

	// Register requests from sessions
	register chan *Subscription

	// Unregister requests from sessions
	unregister chan *Subscription

	// Closed when Run returns
	done chan struct{}

	// Mutex for concurrent reads of the subscribers map
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub instance
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[Table]map[*Subscription]bool),
		broadcast:   make(chan Event, 256),
		register:    make(chan *Subscription),
		unregister:  make(chan *Subscription),
		done:        make(chan struct{}),
		logger:      logger.With().Str("component", "changefeed").Logger(),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled. All
// subscriptions are closed on return.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case sub := <-h.register:
			h.registerSubscription(sub)
		case sub := <-h.unregister:
			h.removeSubscription(sub)
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	close(h.done)
	for table, subs := range h.subscribers {
		for sub := range subs {
			close(sub.send)
		}
		delete(h.subscribers, table)
	}
}

// Subscribe registers a subscription for filter. On a stopped hub the
// returned subscription's channel is already closed.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	send := make(chan Event, subscriptionBuffer)
	sub := &Subscription{C: send, send: send, filter: filter, hub: h}
	select {
	case h.register <- sub:
	case <-h.done:
		close(send)
	}
	return sub
}

// Publish queues event for delivery. It gives up when ctx is done or the hub
// has stopped.
func (h *Hub) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- event:
	case <-h.done:
	case <-ctx.Done():
		h.logger.Warn().Str("table", string(event.Table)).Msg("Change event dropped, context done")
	}
}

func (h *Hub) registerSubscription(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	table := sub.filter.Table
	if _, ok := h.subscribers[table]; !ok {
		h.subscribers[table] = make(map[*Subscription]bool)
	}
	h.subscribers[table][sub] = true

	h.logger.Debug().
		Str("table", string(table)).
		Int64("studentID", sub.filter.StudentID).
		Msg("Subscriber registered")
}

func (h *Hub) removeSubscription(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	table := sub.filter.Table
	if subs, ok := h.subscribers[table]; ok {
		if _, ok := subs[sub]; ok {
			delete(subs, sub)
			close(sub.send)
			if len(subs) == 0 {
				delete(h.subscribers, table)
			}
			h.logger.Debug().Str("table", string(table)).Msg("Subscriber unregistered")
		}
	}
}

// broadcastEvent delivers to the table's subscribers and to table-less ones.
// A subscriber whose buffer is full is dropped; it reconnects and reloads.
func (h *Hub) broadcastEvent(event Event) {
	var slow []*Subscription

	h.mu.RLock()
	for _, table := range []Table{event.Table, ""} {
		for sub := range h.subscribers[table] {
			if !sub.filter.Matches(event) {
				continue
			}
			select {
			case sub.send <- event:
			default:
				slow = append(slow, sub)
			}
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.Warn().Str("table", string(sub.filter.Table)).Msg("Dropping slow subscriber")
		h.removeSubscription(sub)
	}
}

// SubscriberCount returns the number of subscriptions on a table
func (h *Hub) SubscriberCount(table Table) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[table])
}
