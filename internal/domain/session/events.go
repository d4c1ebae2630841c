package session

import (
	"sync"
	"time"
)

// EventType names a lifecycle event
type EventType string

const (
	// EventState carries the session's state at subscription time
	EventState    EventType = "state"
	EventArtifact EventType = "qr"
	EventReady    EventType = "ready"
	EventFailed   EventType = "failed"
	EventClosed   EventType = "closed"
)

// Event is a lifecycle change published to stream subscribers
type Event struct {
	Type      EventType `json:"type"`
	Session   string    `json:"session"`
	State     State     `json:"state"`
	QR        string    `json:"qr,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans lifecycle events out to per-session subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]chan Event
	next   uint64
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]chan Event)}
}

// Subscribe registers a subscriber for sessionID. initial runs under the hub
// lock and yields the first event to deliver; returning false means the
// session is already gone and nothing is registered. The returned cancel
// func is safe to call more than once.
func (h *Hub) Subscribe(sessionID string, buffer int, initial func() (Event, bool)) (<-chan Event, func(), bool) {
	if buffer < 1 {
		buffer = 1
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, func() {}, false
	}
	first, ok := initial()
	if !ok {
		return nil, func() {}, false
	}

	ch := make(chan Event, buffer)
	ch <- first

	key := h.next
	h.next++
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[uint64]chan Event)
	}
	h.subs[sessionID][key] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[sessionID][key]; ok {
			delete(h.subs[sessionID], key)
			if len(h.subs[sessionID]) == 0 {
				delete(h.subs, sessionID)
			}
			close(sub)
		}
	}
	return ch, cancel, true
}

// Publish delivers ev to the session's subscribers. A closed event ends
// every subscription of that session.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subs[ev.Session]
	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
		}
	}

	if ev.Type == EventClosed {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subs, ev.Session)
	}
}

// subscribers returns the number of subscribers of sessionID
func (h *Hub) subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// Close ends every subscription and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, subs := range h.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(h.subs, id)
	}
}
