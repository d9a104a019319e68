// Package events delivers relay events to the frontend. Each emitted event is
// fanned out, in emission order, to every connected subscriber.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

const defaultBuffer = 256

// Envelope is the wire form of one event.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Subscription receives envelopes until it is cancelled or dropped.
type Subscription struct {
	C <-chan Envelope

	ch     chan Envelope
	filter map[string]bool
	hub    *Hub
	once   sync.Once
}

// Cancel detaches the subscription and closes C.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
}

func (s *Subscription) wants(event string) bool {
	return len(s.filter) == 0 || s.filter[event]
}

// Hub fans events out to subscribers. A subscriber that falls more than its
// buffer behind is dropped, so every subscriber observes a gap-free prefix of
// the event sequence.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	logger *slog.Logger
}

// NewHub creates a hub with the given per-subscriber buffer.
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		logger: logger.With(slog.String("component", "events")),
	}
}

// Subscribe registers a subscriber. With names given, only events with one of
// those exact names are delivered.
func (h *Hub) Subscribe(names ...string) *Subscription {
	ch := make(chan Envelope, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}
	if len(names) > 0 {
		sub.filter = make(map[string]bool, len(names))
		for _, n := range names {
			sub.filter[n] = true
		}
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Emit implements relay.Emitter. Events emitted while nobody is subscribed are
// discarded.
func (h *Hub) Emit(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env := Envelope{Event: event, Payload: raw}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.wants(event) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			h.logger.Warn("dropping slow subscriber", slog.String("event", event))
			h.removeLocked(sub)
		}
	}
	return nil
}

// Len returns the number of current subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops every subscriber.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		h.removeLocked(sub)
	}
	return nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	delete(h.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
}
