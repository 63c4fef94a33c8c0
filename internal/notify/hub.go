// Package notify broadcasts change notifications to independent subscribers.
package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kubesight/kubesight/internal/observability"
)

// Type identifies a notification kind.
type Type string

const (
	ContextSwitched   Type = "context_switched"
	NamespaceSwitched Type = "namespace_switched"
	ResourcesChanged  Type = "resources_changed"
)

// Event is one published notification. Subscribers decide for themselves
// whether it is relevant.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Context   string    `json:"context,omitempty"`
	Namespace string    `json:"namespace,omitempty"`
	Resource  string    `json:"resource,omitempty"`
	Time      time.Time `json:"time"`
}

// Publisher is the producer side of a Hub.
type Publisher interface {
	Publish(Event)
}

// Hub fans out events to subscribers without blocking the publisher.
// A subscriber whose buffer is full misses the event.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	next    uint64
	closed  bool
	metrics *observability.Metrics
}

// NewHub creates a Hub. metrics may be nil.
func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{subs: make(map[uint64]chan Event), metrics: metrics}
}

// Publish stamps ID and Time when unset and delivers to every subscriber.
func (h *Hub) Publish(ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}

	if h.metrics != nil {
		h.metrics.NotificationsPublishedTotal.WithLabelValues(string(ev.Type)).Inc()
	}
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("notification dropped", "subscriber", id, "type", ev.Type)
			if h.metrics != nil {
				h.metrics.NotificationsDroppedTotal.Inc()
			}
		}
	}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel; it is safe to call twice.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(ch)
			}
		})
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
