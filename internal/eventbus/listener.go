package eventbus

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Listener is a subscribable callback. Go function values cannot be compared,
// so the *Listener pointer is the identity used by Subscribe and Unsubscribe:
// keep the pointer around to remove the listener later.
type Listener struct {
	id     string
	handle func(payload any, event string) error

	// set on once-wrappers only
	origin *Listener
	fired  atomic.Bool
}

// Func builds a listener that receives only the payload, for exact and
// wildcard deliveries alike.
func Func(fn func(payload any)) *Listener {
	if fn == nil {
		return nil
	}
	return newListener(func(payload any, _ string) error {
		fn(payload)
		return nil
	})
}

// NamedFunc builds a listener that also receives the full emitted event
// name. Wildcard subscribers usually want this form.
func NamedFunc(fn func(payload any, event string)) *Listener {
	if fn == nil {
		return nil
	}
	return newListener(func(payload any, event string) error {
		fn(payload, event)
		return nil
	})
}

// Of builds a listener for payloads of type T. A nil payload delivers the
// zero value; any other payload that is not a T is reported as a listener
// fault wrapping ErrPayloadType and fn is not called.
func Of[T any](fn func(T)) *Listener {
	if fn == nil {
		return nil
	}
	return newListener(func(payload any, _ string) error {
		if payload == nil {
			var zero T
			fn(zero)
			return nil
		}
		v, ok := payload.(T)
		if !ok {
			var zero T
			return fmt.Errorf("%w: want %T, got %T", ErrPayloadType, zero, payload)
		}
		fn(v)
		return nil
	})
}

func newListener(h func(payload any, event string) error) *Listener {
	return &Listener{id: uuid.NewString(), handle: h}
}

// ID returns the identifier used in diagnostics.
func (l *Listener) ID() string {
	if l == nil {
		return ""
	}
	return l.id
}

func (l *Listener) valid() bool {
	return l != nil && l.handle != nil
}

// matches reports whether l is the listener target or a once-wrapper of it.
func (l *Listener) matches(target *Listener) bool {
	return l == target || (l.origin != nil && l.origin == target)
}
