package audio

import (
	"slices"
	"testing"
)

func buildMockSet(t *testing.T) (*ResourceSet, *MockContext) {
	t.Helper()
	factory := NewMockContextFactory(false)
	set, err := NewBuilder(factory, nil).Build("doc-0", []byte("audio"))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return set, factory.Last()
}

func TestResourceSet_ReleaseOrder(t *testing.T) {
	set, ctx := buildMockSet(t)
	media := ctx.Media()[0]
	media.SetReadyState(HaveEnoughData)
	if err := media.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	before := len(ctx.Log().Calls())
	if err := set.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	got := ctx.Log().Calls()[before:]
	want := []string{"media.pause", "context.suspend", "context.close", "media.close"}
	if !slices.Equal(got, want) {
		t.Errorf("Unexpected teardown order: got %v, want %v", got, want)
	}

	if !media.Paused() || !media.Closed() || !ctx.Closed() {
		t.Error("Every resource should be released")
	}
}

func TestResourceSet_ReleaseIdempotent(t *testing.T) {
	set, ctx := buildMockSet(t)

	set.Release()
	calls := len(ctx.Log().Calls())
	if err := set.Release(); err != nil {
		t.Errorf("Second release returned %v", err)
	}
	if len(ctx.Log().Calls()) != calls {
		t.Error("Second release touched resources again")
	}
	if !set.Released() {
		t.Error("Released should report true")
	}
}

func TestResourceSet_ReleaseCancelsDone(t *testing.T) {
	set, _ := buildMockSet(t)

	select {
	case <-set.Done().Done():
		t.Fatal("Done cancelled before release")
	default:
	}

	set.Release()

	select {
	case <-set.Done().Done():
	default:
		t.Fatal("Done not cancelled after release")
	}
}

func TestResourceSet_ReleaseDropsListeners(t *testing.T) {
	set, ctx := buildMockSet(t)
	media := ctx.Media()[0]

	fired := false
	media.Once(EventEnded, func() { fired = true })
	set.Release()
	media.FireEnded()

	if fired {
		t.Error("Ended listener fired after release")
	}
}
