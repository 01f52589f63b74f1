package eventbus

import (
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrorHook receives every malformed call and listener fault. It runs on the
// goroutine that made the call and must not panic.
type ErrorHook func(err error)

// Unsubscribe removes the listener it was returned for. Calling it more than
// once is a no-op.
type Unsubscribe func()

// Option configures a Bus.
type Option func(*Bus)

// WithErrorHook replaces the default logrus-backed error hook.
func WithErrorHook(h ErrorHook) Option {
	return func(b *Bus) {
		if h != nil {
			b.hook = h
		}
	}
}

// Bus is a synchronous publish/subscribe dispatcher with dot-namespaced
// wildcard routing. It is safe for concurrent use; listeners run on the
// emitting goroutine, outside the registry lock.
type Bus struct {
	mu       sync.Mutex
	registry map[string][]*Listener
	hook     ErrorHook
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		registry: make(map[string][]*Listener),
		hook:     logHook(logrus.WithField("process", "eventbus")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds l under name, which is either an exact event name or a
// wildcard pattern built with Wildcard. Adding the same listener twice under
// one name keeps a single registration.
func (b *Bus) Subscribe(name string, l *Listener) Unsubscribe {
	if name == "" {
		b.report(&UsageError{Op: "subscribe", Err: ErrEmptyEventName})
		return noop
	}
	if !l.valid() {
		b.report(&UsageError{Op: "subscribe", Event: name, Err: ErrNilListener})
		return noop
	}

	b.add(name, l)
	return func() { b.Unsubscribe(name, l) }
}

// SubscribeFunc is Subscribe(name, Func(fn)).
func (b *Bus) SubscribeFunc(name string, fn func(payload any)) Unsubscribe {
	return b.Subscribe(name, Func(fn))
}

// SubscribeNamed is Subscribe(name, NamedFunc(fn)).
func (b *Bus) SubscribeNamed(name string, fn func(payload any, event string)) Unsubscribe {
	return b.Subscribe(name, NamedFunc(fn))
}

// SubscribeOnce registers l for a single delivery. The registration removes
// itself before l runs, and at most one delivery reaches l even when an
// emission is re-entered from inside l.
func (b *Bus) SubscribeOnce(name string, l *Listener) Unsubscribe {
	if name == "" {
		b.report(&UsageError{Op: "subscribe_once", Err: ErrEmptyEventName})
		return noop
	}
	if !l.valid() {
		b.report(&UsageError{Op: "subscribe_once", Event: name, Err: ErrNilListener})
		return noop
	}

	w := &Listener{id: l.id, origin: l}
	w.handle = func(payload any, event string) error {
		if !w.fired.CompareAndSwap(false, true) {
			return nil
		}
		b.Unsubscribe(name, w)
		return l.handle(payload, event)
	}

	b.add(name, w)
	return func() { b.Unsubscribe(name, w) }
}

// Unsubscribe removes l from name, together with any once-registration made
// for l under the same name. Unknown names and listeners are ignored.
func (b *Bus) Unsubscribe(name string, l *Listener) {
	if l == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.registry[name]
	if !ok {
		return
	}
	kept := set[:0:0]
	for _, entry := range set {
		if !entry.matches(l) {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		delete(b.registry, name)
		return
	}
	b.registry[name] = kept
}

// Emit delivers payload to every listener under the exact name, then to the
// wildcard listeners of each enclosing namespace, shortest first. Emitting
// "player.move.left" reaches "player.move.left", "player.*" and
// "player.move.*", in that order.
//
// Listener faults are recovered and reported; Emit never fails.
func (b *Bus) Emit(name string, payload any) {
	if name == "" {
		b.report(&UsageError{Op: "emit", Err: ErrEmptyEventName})
		return
	}

	plan := b.snapshot(name)
	for _, d := range plan {
		for _, l := range d.listeners {
			b.invoke(name, d.key, l, payload)
		}
	}
}

// Clear removes the given keys, or every key when called without names.
// Clearing an exact name leaves wildcard keys untouched.
func (b *Bus) Clear(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(names) == 0 {
		b.registry = make(map[string][]*Listener)
		return
	}
	for _, name := range names {
		delete(b.registry, name)
	}
}

// ListenerCount returns the number of listeners registered under the exact
// key name. Wildcard listeners that would match name are not counted.
func (b *Bus) ListenerCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.registry[name])
}

// Events returns the registered keys, exact and wildcard, sorted.
func (b *Bus) Events() []string {
	b.mu.Lock()
	keys := make([]string, 0, len(b.registry))
	for k := range b.registry {
		keys = append(keys, k)
	}
	b.mu.Unlock()

	sort.Strings(keys)
	return keys
}

// Dispose clears the bus and, when it is the shared default, releases it so
// that the next Default call builds a fresh one.
func (b *Bus) Dispose() {
	b.Clear()
	releaseDefault(b)
}

type delivery struct {
	key       string
	listeners []*Listener
}

// snapshot copies every set that name matches, exact key first, so that
// registry changes made by listeners only affect later emissions.
func (b *Bus) snapshot(name string) []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()

	var plan []delivery
	if set := b.registry[name]; len(set) > 0 {
		plan = append(plan, delivery{key: name, listeners: clone(set)})
	}
	for _, ns := range Namespaces(name) {
		key := Wildcard(ns)
		if set := b.registry[key]; len(set) > 0 {
			plan = append(plan, delivery{key: key, listeners: clone(set)})
		}
	}
	return plan
}

func (b *Bus) invoke(event, key string, l *Listener, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.report(&ListenerError{
				Event:      event,
				Key:        key,
				ListenerID: l.id,
				Value:      r,
				Stack:      debug.Stack(),
				Err:        ErrListenerPanic,
			})
		}
	}()

	if err := l.handle(payload, event); err != nil {
		b.report(&ListenerError{Event: event, Key: key, ListenerID: l.id, Err: err})
	}
}

func (b *Bus) add(name string, l *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.registry[name] {
		if entry == l {
			return
		}
	}
	b.registry[name] = append(b.registry[name], l)
}

func (b *Bus) report(err error) {
	defer func() {
		// a panicking hook must not take the emitter down with it
		_ = recover()
	}()
	b.hook(err)
}

func clone(set []*Listener) []*Listener {
	out := make([]*Listener, len(set))
	copy(out, set)
	return out
}

func noop() {}

// Wildcard returns the pattern matching every event below namespace.
func Wildcard(namespace string) string {
	return namespace + ".*"
}

// Namespaces returns the enclosing namespaces of an event name, shortest
// first, excluding the name itself.
func Namespaces(name string) []string {
	var out []string
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			out = append(out, name[:i])
		}
	}
	return out
}

func logHook(log *logrus.Entry) ErrorHook {
	return func(err error) {
		switch e := err.(type) {
		case *ListenerError:
			log.WithFields(logrus.Fields{
				"event":    e.Event,
				"key":      e.Key,
				"listener": e.ListenerID,
			}).Error(e.Error())
		case *UsageError:
			log.WithField("op", e.Op).Warn(e.Error())
		default:
			log.Error(strings.TrimSpace(err.Error()))
		}
	}
}
