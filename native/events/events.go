// Package events carries typed change notifications emitted by the ledger and
// risk engines during state transitions.
package events

import "sync"

// Event represents a typed event emitted during a state transition.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter receives events as operations commit. Implementations must not
// block; the engines emit synchronously inside the mutating operation.
type Emitter interface {
	Emit(evt Event)
}

// Recorder collects emitted events in order. Safe for concurrent use: engines
// append while the service layer reads the change feed from other goroutines.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

// Snapshot returns a copy of the recorded events in emission order.
func (r *Recorder) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len reports how many events have been recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Last returns a copy of the most recent event of the given type, or nil.
func (r *Recorder) Last(eventType string) *Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			evt := r.events[i]
			return &evt
		}
	}
	return nil
}
