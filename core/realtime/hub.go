// Package realtime carries the process-wide permission-error signal channel.
// Any collaborator hitting a backend access-policy rejection publishes a
// structured event here for centralized surfacing (debug overlay, logs),
// independent of the user-facing error each call site also returns.
package realtime

import (
	"sync"
	"time"
)

// Event describes a denied operation.
type Event struct {
	Path    string      `json:"path"` // document path, eg. "quizSubmissions/<id>"
	Op      string      `json:"op"`   // get|list|create|update|delete
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Hub fans permission events out to subscribers. Created once at startup and
// injected; it lives for the process.
type Hub struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Publish never blocks; slow subscribers drop events.
func (h *Hub) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a listener. The returned unsubscribe func is safe to
// call multiple times and must be called on teardown.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	ch := make(chan Event, 16)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}
