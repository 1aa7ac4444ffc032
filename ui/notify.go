package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/narrate/player/audio"
)

const notifyBuffer = 64

// storeChangedMsg is sent when the player state changes.
type storeChangedMsg struct{}

// resourceSetMsg carries the synchronizer's current resource set, nil once
// it was released.
type resourceSetMsg struct {
	set *audio.ResourceSet
}

// Notifier forwards synchronizer and store events into the program. Sends
// never block; events are dropped when the program falls behind, since the
// model re-reads the store on every tick anyway.
type Notifier struct {
	ch   chan tea.Msg
	sets chan *audio.ResourceSet
}

// NewNotifier creates a Notifier.
func NewNotifier() *Notifier {
	return &Notifier{
		ch:   make(chan tea.Msg, notifyBuffer),
		sets: make(chan *audio.ResourceSet, 1),
	}
}

// Notify queues msg for the program.
func (n *Notifier) Notify(msg any) {
	select {
	case n.ch <- msg:
	default:
	}
}

// StoreChanged queues a store refresh.
func (n *Notifier) StoreChanged() {
	n.Notify(storeChangedMsg{})
}

// SetChanged hands the program the new resource set. Only the latest set is
// kept, so a slow program never samples a set that was already replaced.
// It must be called from a single goroutine, as Holder.Subscribe does.
func (n *Notifier) SetChanged(set *audio.ResourceSet) {
	select {
	case <-n.sets:
	default:
	}
	n.sets <- set
}

// listen waits for the next event.
func (n *Notifier) listen() tea.Cmd {
	return func() tea.Msg {
		return <-n.ch
	}
}

// listenSets waits for the next resource set change.
func (n *Notifier) listenSets() tea.Cmd {
	return func() tea.Msg {
		return resourceSetMsg{set: <-n.sets}
	}
}
