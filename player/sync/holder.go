// Package sync keeps audio resources in step with the player state: it
// builds, plays, pauses and tears down the resource set for the current
// segment as the state changes.
package sync

import (
	"sync"

	"github.com/dgnsrekt/narrate/player/audio"
)

// Holder owns the single resource-set slot. Only the synchronizer loop
// writes it; any goroutine may read it.
type Holder struct {
	mu      sync.RWMutex
	current *audio.ResourceSet

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(*audio.ResourceSet)
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{subs: make(map[int]func(*audio.ResourceSet))}
}

// Current returns the held set or nil.
func (h *Holder) Current() *audio.ResourceSet {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Replace stores set, releasing any different set held before.
func (h *Holder) Replace(set *audio.ResourceSet) error {
	h.mu.Lock()
	prev := h.current
	h.current = set
	h.mu.Unlock()

	var err error
	if prev != nil && prev != set {
		err = prev.Release()
	}
	h.notify(set)
	return err
}

// Clear releases the held set and empties the slot. It returns the released
// set, or nil when the slot was already empty.
func (h *Holder) Clear() (*audio.ResourceSet, error) {
	h.mu.Lock()
	prev := h.current
	h.current = nil
	h.mu.Unlock()

	if prev == nil {
		return nil, nil
	}
	err := prev.Release()
	h.notify(nil)
	return prev, err
}

// Subscribe calls fn with the new set (or nil) after every change.
func (h *Holder) Subscribe(fn func(*audio.ResourceSet)) (unsubscribe func()) {
	h.subMu.Lock()
	defer h.subMu.Unlock()

	id := h.nextID
	h.nextID++
	h.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.subMu.Lock()
			defer h.subMu.Unlock()
			delete(h.subs, id)
		})
	}
}

func (h *Holder) notify(set *audio.ResourceSet) {
	h.subMu.Lock()
	fns := make([]func(*audio.ResourceSet), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.subMu.Unlock()

	for _, fn := range fns {
		fn(set)
	}
}
