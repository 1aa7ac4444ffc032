package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/player"
	"github.com/dgnsrekt/narrate/player/audio"
)

// DefaultStallTimeout bounds the readiness wait.
const DefaultStallTimeout = 15 * time.Second

// Builder creates the resource set for a segment.
type Builder interface {
	Build(id player.SegmentID, data []byte) (*audio.ResourceSet, error)
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Synchronizer) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithNotify sets a callback receiving player message values. It is called
// from the synchronizer loop and must not block.
func WithNotify(fn func(msg any)) Option {
	return func(s *Synchronizer) {
		if fn != nil {
			s.notify = fn
		}
	}
}

// WithStallTimeout bounds the readiness wait. Zero waits indefinitely.
func WithStallTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d >= 0 {
			s.stallTimeout = d
		}
	}
}

type eventKind int

const (
	eventReady eventKind = iota
	eventEnded
)

// event is an asynchronous result posted back to the loop.
type event struct {
	kind     eventKind
	set      *audio.ResourceSet
	seq      uint64
	position int
	err      error
	waited   time.Duration
}

// Synchronizer keeps at most one resource set alive and matches it to the
// player state. Every reaction runs on a single loop goroutine.
type Synchronizer struct {
	state   player.PlayerState
	builder Builder
	holder  *Holder
	machine *player.StateMachine

	logger       *log.Logger
	recorder     Recorder
	notify       func(msg any)
	stallTimeout time.Duration

	wake     chan struct{}
	events   chan event
	requests chan chan struct{}

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	// owned by the loop
	last        player.DesiredState
	hasLast     bool
	waitSeq     uint64
	waitCancel  context.CancelFunc
	unsubscribe func()
}

// New creates a synchronizer for state using builder for resource sets.
func New(state player.PlayerState, builder Builder, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		state:        state,
		builder:      builder,
		holder:       NewHolder(),
		machine:      player.NewStateMachine(),
		logger:       log.Default(),
		recorder:     noopRecorder{},
		notify:       func(any) {},
		stallTimeout: DefaultStallTimeout,
		wake:         make(chan struct{}, 1),
		events:       make(chan event, 16),
		requests:     make(chan chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithPrefix("sync")
	return s
}

// Start subscribes to the player state and starts the loop. The first
// reaction runs immediately.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return player.ErrSyncAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.unsubscribe = s.state.Subscribe(s.wakeUp)
	go s.run(ctx)

	s.logger.Debug("Synchronizer started", "stall_timeout", s.stallTimeout)
	return nil
}

// Stop ends the loop, releases the held set and unsubscribes. It blocks until
// the loop has exited.
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return player.ErrSyncNotStarted
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.done
	return nil
}

// Done is closed once the loop has exited.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.done
}

// ClearAudio releases the held set without changing the player state. No new
// set is built until the desired state changes.
func (s *Synchronizer) ClearAudio() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}

	reply := make(chan struct{})
	select {
	case s.requests <- reply:
		<-reply
	case <-s.done:
	}
}

// Current returns the held resource set or nil.
func (s *Synchronizer) Current() *audio.ResourceSet {
	return s.holder.Current()
}

// Holder returns the resource-set slot for readers such as visualizers.
func (s *Synchronizer) Holder() *Holder {
	return s.holder
}

// SegmentState returns the current segment and its lifecycle state.
func (s *Synchronizer) SegmentState() (player.SegmentState, player.SegmentID) {
	return s.machine.Current()
}

// wakeUp coalesces store notifications; it never blocks the store.
func (s *Synchronizer) wakeUp() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *Synchronizer) run(ctx context.Context) {
	defer close(s.done)
	defer s.shutdown()

	s.react(true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
			s.react(false)
		case ev := <-s.events:
			switch ev.kind {
			case eventReady:
				s.handleReady(ev)
			case eventEnded:
				s.handleEnded(ev)
			}
		case reply := <-s.requests:
			s.cancelWait()
			s.teardown("manual")
			s.setState("", player.StateAbsent)
			close(reply)
		}
	}
}

func (s *Synchronizer) shutdown() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.cancelWait()
	s.teardown("stopped")
	s.setState("", player.StateAbsent)
	s.logger.Debug("Synchronizer stopped")
}

// react derives the desired state and reconciles when it changed.
func (s *Synchronizer) react(force bool) {
	snap := s.state.Snapshot()
	desired := snap.Desired()
	if !force && s.hasLast && player.ShallowEqual(s.last, desired) {
		return
	}
	s.last, s.hasLast = desired, true
	s.reconcile(snap)
}

func (s *Synchronizer) reconcile(snap player.Snapshot) {
	if !snap.Active {
		s.cancelWait()
		s.teardown("document unloaded")
		s.setState("", player.StateAbsent)
		return
	}

	id := snap.SegmentID()
	if cur := s.holder.Current(); cur != nil && cur.ID != id {
		s.cancelWait()
		s.teardown("superseded")
	}

	if snap.Audio == nil {
		s.setState(id, player.StateLoading)
		s.notify(player.SegmentLoadingMsg{Segment: id})
		return
	}

	set := s.holder.Current()
	if set == nil {
		built, err := s.builder.Build(id, snap.Audio)
		if errors.Is(err, player.ErrNotYetAvailable) {
			s.setState(id, player.StateLoading)
			s.notify(player.SegmentLoadingMsg{Segment: id})
			return
		}
		if err != nil {
			s.logger.Error("Failed to build segment", "segment", id, "error", err)
			s.recorder.DecodeFailed(id)
			s.setState(id, player.StateAbsent)
			s.notify(player.DecodeFailedMsg{Segment: id, Err: err})
			return
		}
		if err := s.holder.Replace(built); err != nil {
			s.logger.Warn("Release of previous segment failed", "error", err)
		}
		s.watchEnded(built, snap.Position)
		s.recorder.SegmentBuilt(id)
		s.recorder.ActiveSets(1)
		s.setState(id, player.StateReady)
		s.notify(player.SegmentReadyMsg{Segment: id, Position: snap.Position})
		set = built
	}

	if snap.Playing {
		if set.Media.Paused() && s.waitCancel == nil {
			s.startWait(set, snap.Position)
		}
		return
	}

	s.cancelWait()
	if !set.Media.Paused() {
		set.Media.Pause()
		s.notify(player.SegmentPausedMsg{Segment: id})
	}
	s.setState(id, player.StateReady)
}

// startWait waits for readiness off the loop and posts the result back.
func (s *Synchronizer) startWait(set *audio.ResourceSet, position int) {
	s.cancelWait()
	s.waitSeq++
	seq := s.waitSeq

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.stallTimeout > 0 {
		ctx, cancel = context.WithTimeoutCause(set.Done(), s.stallTimeout, player.ErrBufferingStall)
	} else {
		ctx, cancel = context.WithCancel(set.Done())
	}
	s.waitCancel = cancel

	started := time.Now()
	go func() {
		err := audio.WaitForEnoughData(ctx, set.Media)
		if err != nil {
			err = context.Cause(ctx)
		}
		s.post(event{
			kind:     eventReady,
			set:      set,
			seq:      seq,
			position: position,
			err:      err,
			waited:   time.Since(started),
		})
	}()
}

// cancelWait abandons the pending readiness wait, if any. Its result will be
// discarded as stale.
func (s *Synchronizer) cancelWait() {
	if s.waitCancel != nil {
		s.waitCancel()
		s.waitCancel = nil
	}
	s.waitSeq++
}

func (s *Synchronizer) handleReady(ev event) {
	if ev.seq != s.waitSeq || s.holder.Current() != ev.set {
		s.discardStale("readiness", ev.set.ID)
		return
	}
	if s.waitCancel != nil {
		s.waitCancel()
		s.waitCancel = nil
	}

	if ev.err != nil {
		if errors.Is(ev.err, player.ErrBufferingStall) {
			s.logger.Warn("Segment stalled while buffering", "segment", ev.set.ID, "waited", ev.waited, "error", ev.err)
			s.recorder.BufferingStalled(ev.set.ID)
			s.setState(ev.set.ID, player.StateReady)
			s.notify(player.BufferingStalledMsg{Segment: ev.set.ID, Waited: ev.waited})
		}
		return
	}

	if err := ev.set.Media.Play(); err != nil {
		s.logger.Error("Failed to start playback", "segment", ev.set.ID, "error", err)
		return
	}
	s.recorder.ReadinessWait(ev.waited)
	s.setState(ev.set.ID, player.StatePlaying)
	s.notify(player.SegmentPlayingMsg{Segment: ev.set.ID, Position: ev.position, Waited: ev.waited})
}

// discardStale drops a completion whose resource set is no longer current.
func (s *Synchronizer) discardStale(kind string, id player.SegmentID) {
	s.logger.Debug("Discarding completion", "kind", kind, "segment", id, "error", player.ErrStaleCompletion)
	s.recorder.StaleCompletion(kind)
}

// watchEnded registers the one-shot end-of-media handler for set.
func (s *Synchronizer) watchEnded(set *audio.ResourceSet, position int) {
	var once sync.Once
	set.Media.Once(audio.EventEnded, func() {
		once.Do(func() {
			s.post(event{kind: eventEnded, set: set, position: position})
		})
	})
}

func (s *Synchronizer) handleEnded(ev event) {
	if s.holder.Current() != ev.set {
		s.discardStale("ended", ev.set.ID)
		return
	}

	s.cancelWait()
	s.setState(ev.set.ID, player.StateEnded)
	s.teardown("ended")
	s.setState(ev.set.ID, player.StateAbsent)
	s.recorder.SegmentCompleted(ev.set.ID)

	// The store may have moved on while the end event was in flight.
	snap := s.state.Snapshot()
	advanced := snap.Active && snap.SegmentID() == ev.set.ID
	s.notify(player.SegmentEndedMsg{Segment: ev.set.ID, Position: ev.position, Advanced: advanced})

	// The next notification must reconcile even if the store lands on an
	// equal desired state, e.g. a single-track document that wraps.
	s.hasLast = false
	if advanced {
		s.logger.Debug("Segment ended, advancing", "segment", ev.set.ID, "next", ev.position+1)
		s.state.GoToPosition(ev.position + 1)
	}
}

// teardown releases the held set. It is the only release path.
func (s *Synchronizer) teardown(reason string) {
	released, err := s.holder.Clear()
	if released == nil {
		return
	}
	if err != nil {
		s.logger.Warn("Segment release reported errors", "segment", released.ID, "error", err)
	}
	s.recorder.ActiveSets(0)
	s.logger.Debug("Released segment", "segment", released.ID, "reason", reason)
	s.notify(player.SegmentReleasedMsg{Segment: released.ID, Reason: reason})
}

// setState moves the state machine, passing through Absent when the segment
// changes.
func (s *Synchronizer) setState(id player.SegmentID, to player.SegmentState) {
	prev, prevSeg := s.machine.Current()
	if prev == to && prevSeg == id {
		return
	}
	if prevSeg != id && prev != player.StateAbsent && to != player.StateAbsent {
		s.machine.Transition(prevSeg, player.StateAbsent)
		prev = player.StateAbsent
	}
	if !s.machine.Transition(id, to) {
		s.logger.Debug("Ignoring invalid transition", "segment", id, "from", prev, "to", to)
		return
	}
	s.notify(player.StateChangedMsg{Segment: id, State: to, PrevState: prev, Timestamp: time.Now()})
}
