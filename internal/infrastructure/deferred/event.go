// Package deferred implements one-way load gates for third-party payloads.
// A gate starts NOT_LOADED, buffers events, and on its first trigger loads
// its payload exactly once, replays the buffer in order, and tears down every
// other pending trigger.
package deferred

// Event is a single buffered or dispatched gate event.
type Event struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// Sink receives the gate's payload activation and its event stream.
// Activate is called exactly once per gate; Dispatch is called for each
// buffered event in order, then for every later event as it arrives.
type Sink interface {
	Activate() error
	Dispatch(event Event)
}
