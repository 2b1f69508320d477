// Package events provides the named-event emitter the operation engine uses
// to broadcast lifecycle events to subscribers.
//
// Delivery model:
// An Emitter delivers events one at a time, in emission order. Listeners
// never run concurrently. An Emit issued while another delivery is running,
// whether from inside a listener or from a different goroutine, is appended
// to a FIFO queue and delivered by the goroutine already draining it. This
// gives every subscriber the run-to-completion turns of a single event loop.
//
// Listeners for one event name are called in registration order. The set of
// listeners is captured when an event is dequeued. EmitThen attaches a step
// that runs after the event's listeners, in the same queue turn, so work
// that must follow delivery keeps its place even when another goroutine
// drains the queue.
package events

import (
	"fmt"
	"sync"

	"github.com/apex/log"
)

// Handler receives an event payload.
type Handler func(payload any)

// ListenerID identifies a registered handler for Off.
type ListenerID uint64

type listener struct {
	id ListenerID
	fn Handler
}

type pending struct {
	name    string
	payload any
	then    func()
}

// Emitter is a named-event emitter with serialized FIFO delivery.
// The zero value is ready to use.
type Emitter struct {
	mu        sync.Mutex
	listeners map[string][]listener
	nextID    ListenerID
	queue     []pending
	draining  bool
}

// On registers fn for events called name and returns its id.
func (e *Emitter) On(name string, fn Handler) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string][]listener)
	}
	e.nextID++
	e.listeners[name] = append(e.listeners[name], listener{id: e.nextID, fn: fn})
	return e.nextID
}

// Off removes the listener with the given id. It reports whether a listener
// was removed.
func (e *Emitter) Off(name string, id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	ls := e.listeners[name]
	for i, l := range ls {
		if l.id == id {
			// Copy so snapshots taken by an in-progress delivery stay intact.
			next := make([]listener, 0, len(ls)-1)
			next = append(next, ls[:i]...)
			next = append(next, ls[i+1:]...)
			if len(next) == 0 {
				delete(e.listeners, name)
			} else {
				e.listeners[name] = next
			}
			return true
		}
	}
	return false
}

// ListenerCount returns the number of listeners registered for name.
func (e *Emitter) ListenerCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name])
}

// Emit queues an event and, unless a delivery is already running, delivers
// every queued event before returning.
func (e *Emitter) Emit(name string, payload any) {
	e.EmitThen(name, payload, nil)
}

// EmitThen is Emit with a step run once every listener of this event has
// returned and before the next queued event. It runs on whichever goroutine
// delivers the event. A nil then behaves like Emit.
func (e *Emitter) EmitThen(name string, payload any, then func()) {
	e.mu.Lock()
	e.queue = append(e.queue, pending{name: name, payload: payload, then: then})
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true

	for len(e.queue) > 0 {
		ev := e.queue[0]
		// Nil out the slot so the payload can be collected.
		e.queue[0] = pending{}
		if len(e.queue) == 1 {
			e.queue = e.queue[:0]
		} else {
			e.queue = e.queue[1:]
		}
		ls := e.listeners[ev.name]
		e.mu.Unlock()

		for _, l := range ls {
			call(ev, l)
		}
		if ev.then != nil {
			runThen(ev)
		}

		e.mu.Lock()
	}

	e.draining = false
	e.mu.Unlock()
}

// call runs one listener, recovering and logging a panic so the remaining
// listeners and queued events are still delivered.
func call(ev pending, l listener) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"event":    ev.name,
				"listener": l.id,
				"panic":    fmt.Sprint(r),
			}).Error("event listener panicked")
		}
	}()
	l.fn(ev.payload)
}

// runThen runs the follow-up step of ev, recovering a panic like call does.
func runThen(ev pending) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"event": ev.name,
				"panic": fmt.Sprint(r),
			}).Error("event follow-up panicked")
		}
	}()
	ev.then()
}
