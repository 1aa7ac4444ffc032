package sync_test

import (
	"testing"

	"github.com/dgnsrekt/narrate/player"
	"github.com/dgnsrekt/narrate/player/audio"
	playersync "github.com/dgnsrekt/narrate/player/sync"
)

func buildSet(t *testing.T, b *recordingBuilder, id string, data []byte) *audio.ResourceSet {
	t.Helper()
	set, err := b.Build(player.SegmentID(id), data)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return set
}

func TestHolderReplace(t *testing.T) {
	b := newRecordingBuilder()
	h := playersync.NewHolder()

	if h.Current() != nil {
		t.Fatal("new holder is not empty")
	}

	first := buildSet(t, b, "doc-0", audio0)
	if err := h.Replace(first); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if h.Current() != first {
		t.Fatal("Current() did not return the stored set")
	}

	// Replacing with the same set keeps it alive.
	if err := h.Replace(first); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if first.Released() {
		t.Fatal("re-storing the held set released it")
	}

	second := buildSet(t, b, "doc-1", audio1)
	if err := h.Replace(second); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if !first.Released() {
		t.Error("previous set was not released")
	}
	if second.Released() {
		t.Error("new set was released")
	}
}

func TestHolderClear(t *testing.T) {
	b := newRecordingBuilder()
	h := playersync.NewHolder()

	released, err := h.Clear()
	if released != nil || err != nil {
		t.Errorf("Clear() on empty holder = %v, %v; want nil, nil", released, err)
	}

	set := buildSet(t, b, "doc-0", audio0)
	_ = h.Replace(set)

	released, err = h.Clear()
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if released != set || !set.Released() {
		t.Error("Clear() did not release the held set")
	}
	if h.Current() != nil {
		t.Error("holder not empty after Clear()")
	}
}

func TestHolderSubscribe(t *testing.T) {
	b := newRecordingBuilder()
	h := playersync.NewHolder()

	var seen []*audio.ResourceSet
	unsubscribe := h.Subscribe(func(set *audio.ResourceSet) {
		seen = append(seen, set)
	})

	set := buildSet(t, b, "doc-0", audio0)
	_ = h.Replace(set)
	_, _ = h.Clear()
	_, _ = h.Clear()

	if len(seen) != 2 || seen[0] != set || seen[1] != nil {
		t.Errorf("notifications = %v, want [set, nil]", seen)
	}

	unsubscribe()
	unsubscribe()
	_ = h.Replace(buildSet(t, b, "doc-1", audio1))
	if len(seen) != 2 {
		t.Errorf("notified after unsubscribe: %d calls", len(seen))
	}
}
