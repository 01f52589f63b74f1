package eventbus

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyEventName is reported when a call names no event.
	ErrEmptyEventName = errors.New("event name cannot be empty")

	// ErrNilListener is reported when a call passes a nil listener or one
	// built without a function.
	ErrNilListener = errors.New("listener cannot be nil")

	// ErrListenerPanic wraps a panic recovered during delivery.
	ErrListenerPanic = errors.New("listener panicked")

	// ErrPayloadType is reported when a typed listener receives a payload
	// of another type.
	ErrPayloadType = errors.New("payload type mismatch")
)

// UsageError describes a malformed call. The call is absorbed and the error
// only reaches the error hook.
type UsageError struct {
	Op    string
	Event string
	Err   error
}

func (e *UsageError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("eventbus: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("eventbus: %s %q: %v", e.Op, e.Event, e.Err)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// ListenerError describes a fault raised by a single listener while an event
// was being delivered. Key is the registry key the listener was found under,
// which differs from Event for wildcard deliveries.
type ListenerError struct {
	Event      string
	Key        string
	ListenerID string
	Value      any
	Stack      []byte
	Err        error
}

func (e *ListenerError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("eventbus: listener %s on %q (key %q): %v: %v", e.ListenerID, e.Event, e.Key, e.Err, e.Value)
	}
	return fmt.Sprintf("eventbus: listener %s on %q (key %q): %v", e.ListenerID, e.Event, e.Key, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

// Wildcard reports whether the fault was raised by a wildcard subscriber.
func (e *ListenerError) Wildcard() bool {
	return e.Key != e.Event
}
