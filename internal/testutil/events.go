package testutil

import (
	"encoding/json"
	"strings"
	"sync"
)

// Event is one emission captured by EventRecorder, with its payload encoded
// as JSON text.
type Event struct {
	Name    string
	Payload string
}

// EventRecorder captures emitted events in order. It is safe for concurrent use.
type EventRecorder struct {
	mu     sync.Mutex
	events []Event

	// OnEmit, if set, is called after each event is recorded.
	OnEmit func(Event)
}

// Emit records the event.
func (r *EventRecorder) Emit(event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	e := Event{Name: event, Payload: string(b)}

	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()

	if r.OnEmit != nil {
		r.OnEmit(e)
	}
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many recorded events have the given name prefix.
func (r *EventRecorder) Count(prefix string) int {
	n := 0
	for _, e := range r.Events() {
		if strings.HasPrefix(e.Name, prefix) {
			n++
		}
	}
	return n
}
