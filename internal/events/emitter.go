// Package events implements a small named-event emitter: on/once/off/emit
// with stable per-event subscription order. It is the Go shape of the
// teacher's per-message-type handler table (internal/ws/dispatcher.go),
// generalized from "one handler per type" to "an ordered list of handlers
// per event name" so connectionstate/update observers can all subscribe.
package events

import (
	"log"
	"sync"
)

type subscription[T any] struct {
	id      uint64
	handler func(T)
	once    bool
}

// Emitter is a thread-safe, generic named-event emitter.
type Emitter[T any] struct {
	mu   sync.Mutex
	subs map[string][]subscription[T]
	next uint64
}

// NewEmitter returns a ready-to-use Emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{subs: make(map[string][]subscription[T])}
}

// Handle is an opaque subscription handle returned by On/Once, usable with
// Off to remove exactly that subscription.
type Handle struct {
	name string
	id   uint64
}

// On registers handler for name. Handlers for a single event fire in
// subscription order.
func (e *Emitter[T]) On(name string, handler func(T)) Handle {
	return e.add(name, handler, false)
}

// Once registers handler for name; it is removed before being invoked the
// first time the event fires.
func (e *Emitter[T]) Once(name string, handler func(T)) Handle {
	return e.add(name, handler, true)
}

func (e *Emitter[T]) add(name string, handler func(T), once bool) Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	id := e.next
	e.subs[name] = append(e.subs[name], subscription[T]{id: id, handler: handler, once: once})
	return Handle{name: name, id: id}
}

// Off removes the subscription identified by h. It is a no-op if the
// subscription was already removed (e.g. a Once handler that already fired).
func (e *Emitter[T]) Off(h Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.subs[h.name]
	for i, s := range list {
		if s.id == h.id {
			e.subs[h.name] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Emit invokes every handler registered for name, in subscription order.
// Once handlers are removed from the registry before they are invoked.
// A handler that panics is recovered and logged; it does not prevent the
// remaining subscribers for this event from running.
func (e *Emitter[T]) Emit(name string, payload T) {
	e.mu.Lock()
	list := append([]subscription[T]{}, e.subs[name]...)
	remaining := make([]subscription[T], 0, len(list))
	for _, s := range list {
		if !s.once {
			remaining = append(remaining, s)
		}
	}
	e.subs[name] = remaining
	e.mu.Unlock()

	for _, s := range list {
		invoke(s.handler, payload)
	}
}

func invoke[T any](handler func(T), payload T) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler panicked: %v", r)
		}
	}()
	handler(payload)
}
