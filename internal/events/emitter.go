// Package events provides a small observer list used for connection
// lifecycle and executor notifications. Listeners get unsubscribe handles,
// and a panicking listener never stops emission to the others.
package events

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Event is a named notification with an optional payload.
type Event struct {
	Name string
	Data any
}

// Listener receives emitted events.
type Listener func(Event)

// Emitter fans events out to subscribed listeners. The zero value is not
// usable; construct with NewEmitter.
type Emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// NewEmitter returns an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[int]Listener)}
}

// Subscribe registers a listener and returns a function that removes it.
// Unsubscribing twice is harmless.
func (e *Emitter) Subscribe(l Listener) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// Emit delivers the event to every current listener. Listeners run on the
// caller's goroutine; a panic in one is logged and swallowed so the rest
// still receive the event.
func (e *Emitter) Emit(name string, data any) {
	e.mu.Lock()
	snapshot := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		snapshot = append(snapshot, l)
	}
	e.mu.Unlock()

	ev := Event{Name: name, Data: data}
	for _, l := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Errorf("Event listener panicked on %q", name)
				}
			}()
			l(ev)
		}()
	}
}
