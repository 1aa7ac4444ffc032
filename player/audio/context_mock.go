package audio

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/player"
)

// mockBitrate is used to estimate durations of encoded bytes (128 kbit/s).
const mockBitrate = 128000 / 8

// CallLog records calls made on mock contexts and media in order.
type CallLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *CallLog) record(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

// Calls returns a copy of the recorded calls.
func (l *CallLog) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// Count returns how many times call was recorded.
func (l *CallLog) Count(call string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == call {
			n++
		}
	}
	return n
}

// MockContextFactory creates mock contexts and keeps them for inspection.
type MockContextFactory struct {
	mu       sync.Mutex
	contexts []*MockContext

	// Simulate makes media load and play on their own.
	Simulate bool
	// FailDecode, when set, is consulted by NewMedia.
	FailDecode func(data []byte) error
	// FailContext, when set, is returned by NewContext.
	FailContext error
}

// NewMockContextFactory creates a factory for mock contexts.
func NewMockContextFactory(simulate bool) *MockContextFactory {
	return &MockContextFactory{Simulate: simulate}
}

// NewContext implements ContextFactory.
func (f *MockContextFactory) NewContext() (Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailContext != nil {
		return nil, f.FailContext
	}

	ctx := NewMockContext()
	ctx.simulate = f.Simulate
	ctx.failDecode = f.FailDecode
	f.contexts = append(f.contexts, ctx)
	return ctx, nil
}

// Contexts returns every context created so far.
func (f *MockContextFactory) Contexts() []*MockContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*MockContext(nil), f.contexts...)
}

// Last returns the most recently created context, or nil.
func (f *MockContextFactory) Last() *MockContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.contexts) == 0 {
		return nil
	}
	return f.contexts[len(f.contexts)-1]
}

// MockContext implements Context without touching audio hardware.
type MockContext struct {
	mu         sync.Mutex
	log        *CallLog
	media      []*MockMedia
	suspended  bool
	closed     bool
	simulate   bool
	failDecode func(data []byte) error
	sampleRate int
	channels   int
}

// NewMockContext creates a new mock context.
func NewMockContext() *MockContext {
	return &MockContext{
		log:        &CallLog{},
		sampleRate: 24000,
		channels:   Channels,
	}
}

// Log returns the call log shared by the context and its media.
func (c *MockContext) Log() *CallLog {
	return c.log
}

// Media returns the media created by the context.
func (c *MockContext) Media() []*MockMedia {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*MockMedia(nil), c.media...)
}

// NewMedia implements Context.
func (c *MockContext) NewMedia(data []byte) (Media, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.record("context.newmedia")
	if c.closed {
		return nil, player.ErrContextClosed
	}
	if c.failDecode != nil {
		if err := c.failDecode(data); err != nil {
			return nil, err
		}
	}

	m := &MockMedia{
		log:      c.log,
		events:   newEmitter(),
		data:     data,
		paused:   true,
		simulate: c.simulate,
		duration: time.Duration(len(data)) * time.Second / mockBitrate,
		rate:     c.sampleRate,
	}
	c.media = append(c.media, m)
	return m, nil
}

// Route implements Context.
func (c *MockContext) Route(media Media, tap io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.record("context.route")
	if c.closed {
		return player.ErrContextClosed
	}
	m, ok := media.(*MockMedia)
	if !ok {
		return errors.New("mock context can only route mock media")
	}
	m.mu.Lock()
	m.tap = tap
	m.mu.Unlock()
	return nil
}

// Suspend implements Context.
func (c *MockContext) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.record("context.suspend")
	if c.closed {
		return player.ErrContextClosed
	}
	c.suspended = true
	return nil
}

// Resume implements Context.
func (c *MockContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.record("context.resume")
	if c.closed {
		return player.ErrContextClosed
	}
	c.suspended = false
	return nil
}

// Close implements Context.
func (c *MockContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.record("context.close")
	if c.closed {
		return player.ErrContextClosed
	}
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *MockContext) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Suspended reports whether the context is suspended.
func (c *MockContext) Suspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// SampleRate implements Context.
func (c *MockContext) SampleRate() int { return c.sampleRate }

// ChannelCount implements Context.
func (c *MockContext) ChannelCount() int { return c.channels }

// MockMedia implements Media with manual or simulated buffering and playback.
type MockMedia struct {
	mu       sync.Mutex
	log      *CallLog
	events   *emitter
	data     []byte
	tap      io.Writer
	preload  Preload
	ready    ReadyState
	paused   bool
	closed   bool
	simulate bool
	duration time.Duration
	elapsed  time.Duration
	rate     int

	// simulated playback
	stop chan struct{}
}

// SetPreload implements Media.
func (m *MockMedia) SetPreload(p Preload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preload = p
}

// Preload returns the loading hint.
func (m *MockMedia) Preload() Preload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preload
}

// Load implements Media. In simulate mode the media becomes fully buffered.
func (m *MockMedia) Load() {
	m.log.record("media.load")
	m.mu.Lock()
	simulate := m.simulate && !m.closed
	m.mu.Unlock()

	if simulate {
		go m.SetReadyState(HaveEnoughData)
	}
}

// Play implements Media.
func (m *MockMedia) Play() error {
	m.log.record("media.play")
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return player.ErrMediaClosed
	}
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	m.paused = false
	if m.simulate {
		m.stop = make(chan struct{})
		go m.simulatePlayback(m.stop)
	}
	m.mu.Unlock()

	m.events.emit(EventPlay)
	return nil
}

// Pause implements Media.
func (m *MockMedia) Pause() {
	m.log.record("media.pause")
	m.mu.Lock()
	if m.paused || m.closed {
		m.mu.Unlock()
		return
	}
	m.paused = true
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.mu.Unlock()

	m.events.emit(EventPause)
}

// Paused implements Media.
func (m *MockMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// ReadyState implements Media.
func (m *MockMedia) ReadyState() ReadyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// SetReadyState moves the buffering level and fires canplay and
// canplaythrough when the corresponding thresholds are crossed.
func (m *MockMedia) SetReadyState(r ReadyState) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	prev := m.ready
	m.ready = r
	m.mu.Unlock()

	if prev < HaveFutureData && r >= HaveFutureData {
		m.events.emit(EventCanPlay)
	}
	if prev < HaveEnoughData && r >= HaveEnoughData {
		m.events.emit(EventCanPlayThrough)
	}
}

// FireCanPlay emits canplay without changing the buffering level.
func (m *MockMedia) FireCanPlay() {
	m.events.emit(EventCanPlay)
}

// FireEnded emits ended as if playback reached the end of the media.
func (m *MockMedia) FireEnded() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.events.emit(EventEnded)
}

// On implements Media.
func (m *MockMedia) On(event Event, fn func()) func() {
	return m.events.on(event, fn)
}

// Once implements Media.
func (m *MockMedia) Once(event Event, fn func()) func() {
	return m.events.once(event, fn)
}

// Listeners returns the number of listeners registered for event.
func (m *MockMedia) Listeners(event Event) int {
	return m.events.count(event)
}

// CurrentTime implements Media.
func (m *MockMedia) CurrentTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

// Duration implements Media.
func (m *MockMedia) Duration() time.Duration {
	return m.duration
}

// Close implements Media.
func (m *MockMedia) Close() error {
	m.log.record("media.close")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return player.ErrMediaClosed
	}
	m.closed = true
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	m.data = nil
	m.events.close()
	return nil
}

// Closed reports whether Close was called.
func (m *MockMedia) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// simulatePlayback advances the clock, feeds a tone to the tap and fires
// ended when the estimated duration is reached.
func (m *MockMedia) simulatePlayback(stop <-chan struct{}) {
	const step = 20 * time.Millisecond
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	frames := m.rate * int(step) / int(time.Second)
	pcm := make([]byte, frames*BytesPerFrame)
	var phase float64

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		m.elapsed += step
		done := m.elapsed >= m.duration
		tap := m.tap
		m.mu.Unlock()

		if tap != nil {
			phase = fillTone(pcm, phase, 440, m.rate)
			_, _ = tap.Write(pcm)
		}

		if done {
			log.Debug("Mock media finished", "duration", m.duration)
			m.FireEnded()
			return
		}
	}
}

// fillTone writes a quiet stereo sine at freq into pcm and returns the next phase.
func fillTone(pcm []byte, phase, freq float64, rate int) float64 {
	step := 2 * math.Pi * freq / float64(rate)
	for off := 0; off+BytesPerFrame <= len(pcm); off += BytesPerFrame {
		v := uint16(int16(math.Sin(phase) * 8000))
		binary.LittleEndian.PutUint16(pcm[off:], v)
		binary.LittleEndian.PutUint16(pcm[off+BytesPerSample:], v)
		phase += step
	}
	return math.Mod(phase, 2*math.Pi)
}
