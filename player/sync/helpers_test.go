package sync_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/narrate/player"
	"github.com/dgnsrekt/narrate/player/audio"
)

// fakeState is an in-memory player state.
type fakeState struct {
	mu        sync.Mutex
	active    bool
	docID     string
	position  int
	playing   bool
	tracks    map[int][]byte
	subs      map[int]func()
	nextSub   int
	gotoCalls []int

	// gotoHook overrides how GoToPosition moves the position.
	gotoHook func(f *fakeState, position int)
}

func newFakeState(docID string, playing bool, tracks map[int][]byte) *fakeState {
	return &fakeState{
		active:  true,
		docID:   docID,
		playing: playing,
		tracks:  tracks,
		subs:    make(map[int]func()),
	}
}

func (f *fakeState) Snapshot() player.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.active {
		return player.Snapshot{}
	}
	return player.Snapshot{
		Active:     true,
		DocumentID: f.docID,
		Position:   f.position,
		Playing:    f.playing,
		Audio:      f.tracks[f.position],
	}
}

func (f *fakeState) Subscribe(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeState) GoToPosition(position int) {
	f.update(func(f *fakeState) {
		f.gotoCalls = append(f.gotoCalls, position)
		if f.gotoHook != nil {
			f.gotoHook(f, position)
			return
		}
		f.position = position
	})
}

func (f *fakeState) update(fn func(f *fakeState)) {
	f.mu.Lock()
	fn(f)
	subs := make([]func(), 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s()
	}
}

func (f *fakeState) gotos() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.gotoCalls...)
}

func (f *fakeState) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// recordingBuilder wraps a real builder over mock contexts.
type recordingBuilder struct {
	factory *audio.MockContextFactory
	inner   *audio.Builder

	mu    sync.Mutex
	built []player.SegmentID
	sets  []*audio.ResourceSet
}

func newRecordingBuilder() *recordingBuilder {
	factory := audio.NewMockContextFactory(false)
	factory.FailDecode = func(data []byte) error {
		if bytes.Equal(data, badAudio) {
			return errors.New("not audio")
		}
		return nil
	}
	return &recordingBuilder{factory: factory, inner: audio.NewBuilder(factory, nil)}
}

func (b *recordingBuilder) Build(id player.SegmentID, data []byte) (*audio.ResourceSet, error) {
	if bytes.Equal(data, partialAudio) {
		return nil, player.NewPlaybackError(player.ErrNotYetAvailable, "builder", "build").WithSegment(id)
	}
	set, err := b.inner.Build(id, data)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = append(b.built, id)
	if set != nil {
		b.sets = append(b.sets, set)
	}
	return set, err
}

func (b *recordingBuilder) builds() []player.SegmentID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]player.SegmentID(nil), b.built...)
}

// media returns the mock media of the n-th successful build.
func (b *recordingBuilder) media(t *testing.T, n int) *audio.MockMedia {
	t.Helper()
	ctx := b.context(t, n)
	return ctx.Media()[0]
}

func (b *recordingBuilder) context(t *testing.T, n int) *audio.MockContext {
	t.Helper()
	var ctxs []*audio.MockContext
	for _, c := range b.factory.Contexts() {
		if len(c.Media()) > 0 {
			ctxs = append(ctxs, c)
		}
	}
	if n >= len(ctxs) {
		t.Fatalf("Build %d does not exist (%d builds)", n, len(ctxs))
	}
	return ctxs[n]
}

func (b *recordingBuilder) openContexts() int {
	open := 0
	for _, c := range b.factory.Contexts() {
		if !c.Closed() {
			open++
		}
	}
	return open
}

var (
	audio0   = []byte("segment zero")
	audio1   = []byte("segment one")
	audio2   = []byte("segment two")
	badAudio = []byte("garbage")

	// partialAudio is reported as not yet available by recordingBuilder.
	partialAudio = []byte("still writing")
)

// messages collects notifications.
type messages struct {
	mu   sync.Mutex
	msgs []any
}

func (m *messages) add(msg any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func (m *messages) all() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.msgs...)
}

// countingRecorder counts recorder calls.
type countingRecorder struct {
	mu        sync.Mutex
	built     int
	failed    int
	completed int
	stale     int
	stalls    int
	active    int
}

func (r *countingRecorder) SegmentBuilt(player.SegmentID) { r.inc(&r.built) }
func (r *countingRecorder) DecodeFailed(player.SegmentID) { r.inc(&r.failed) }
func (r *countingRecorder) SegmentCompleted(player.SegmentID) {
	r.inc(&r.completed)
}
func (r *countingRecorder) StaleCompletion(string)            { r.inc(&r.stale) }
func (r *countingRecorder) BufferingStalled(player.SegmentID) { r.inc(&r.stalls) }
func (r *countingRecorder) ReadinessWait(time.Duration)       {}
func (r *countingRecorder) ActiveSets(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = n
}

func (r *countingRecorder) inc(n *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*n++
}

func (r *countingRecorder) get(n *int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *n
}

// eventually polls cond until it holds or a second passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// never checks that cond stays false for a short while.
func never(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(60 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatal(msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
