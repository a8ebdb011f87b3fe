// Package broadcast fans build notifications out to any number of
// subscribers. Delivery is best-effort and at-most-once: a subscriber that
// cannot keep up is dropped rather than allowed to stall the publish path.
package broadcast

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types delivered to subscribers.
const (
	TypeRebuilt     = "rebuilt"
	TypeBuildFailed = "buildFailed"
)

// Event is one build notification.
type Event struct {
	Type       string    `json:"type"`
	Version    int64     `json:"version,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"durationMs,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Rebuilt constructs the notification for a successful publish.
func Rebuilt(version int64, duration time.Duration) Event {
	return Event{
		Type:       TypeRebuilt,
		Version:    version,
		Timestamp:  time.Now(),
		DurationMs: duration.Milliseconds(),
	}
}

// BuildFailed constructs the notification for a failed build.
func BuildFailed(err error) Event {
	return Event{Type: TypeBuildFailed, Timestamp: time.Now(), Error: err.Error()}
}

// Subscriber receives events on C until unsubscribed or dropped. C is closed
// exactly once, by Unsubscribe or by the hub when the subscriber falls behind.
type Subscriber struct {
	ID string
	C  <-chan Event

	ch chan Event
}

// Hub owns the subscriber set. Construct one per process and tear it down
// with Close on shutdown.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]*Subscriber
	buffer int
	closed bool
	logger *zap.Logger
}

// NewHub creates a Hub whose subscribers buffer up to buffer undelivered
// events before being dropped.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: map[string]*Subscriber{}, buffer: buffer, logger: logger}
}

// Subscribe registers a new subscriber. On a closed hub the returned
// subscriber's channel is already closed.
func (h *Hub) Subscribe() *Subscriber {
	ch := make(chan Event, h.buffer)
	sub := &Subscriber{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; ok {
		delete(h.subs, sub.ID)
		close(sub.ch)
	}
}

// Publish delivers the event to every subscriber without blocking. A
// subscriber whose buffer is full is dropped and its channel closed.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, sub := range h.subs {
		select {
		case sub.ch <- event:
		default:
			delete(h.subs, id)
			close(sub.ch)
			h.logger.Warn("dropping slow subscriber", zap.String("id", id))
		}
	}
}

// Count returns the number of active subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops all subscribers and rejects future publishes. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
