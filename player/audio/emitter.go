package audio

import "sync"

type listener struct {
	id   uint64
	fn   func()
	once bool
}

// emitter is the listener registry shared by media implementations.
// Listeners run outside the lock, in registration order.
type emitter struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[Event][]listener
	closed    bool
}

func newEmitter() *emitter {
	return &emitter{listeners: make(map[Event][]listener)}
}

func (e *emitter) add(event Event, fn func(), once bool) (off func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return func() {}
	}

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listener{id: id, fn: fn, once: once})

	var offOnce sync.Once
	return func() {
		offOnce.Do(func() { e.remove(event, id) })
	}
}

func (e *emitter) on(event Event, fn func()) func() {
	return e.add(event, fn, false)
}

func (e *emitter) once(event Event, fn func()) func() {
	return e.add(event, fn, true)
}

func (e *emitter) remove(event Event, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ls := e.listeners[event]
	for i, l := range ls {
		if l.id == id {
			e.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// emit calls every listener for event. One-shot listeners are removed
// before any of them runs, so a re-entrant emit cannot fire them twice.
func (e *emitter) emit(event Event) {
	e.mu.Lock()
	ls := e.listeners[event]
	if len(ls) == 0 {
		e.mu.Unlock()
		return
	}
	fire := make([]func(), 0, len(ls))
	kept := ls[:0:0]
	for _, l := range ls {
		fire = append(fire, l.fn)
		if !l.once {
			kept = append(kept, l)
		}
	}
	e.listeners[event] = kept
	e.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// count returns the number of listeners registered for event.
func (e *emitter) count(event Event) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

// close drops every listener; later registrations are ignored.
func (e *emitter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.listeners = make(map[Event][]listener)
}
