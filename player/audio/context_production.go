//go:build !nocgo

package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/hajimehoshi/go-mp3"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/player"
)

const monitorInterval = 100 * time.Millisecond

// ProductionContext plays segments on the host audio device.
type ProductionContext struct {
	opts ProductionOptions

	mu        sync.Mutex
	device    *outputDevice
	media     []*productionMedia
	suspended bool
	closed    bool
}

// NewProductionContext creates a context. The device is opened lazily by the
// first NewMedia call.
func NewProductionContext(opts ProductionOptions) *ProductionContext {
	return &ProductionContext{opts: opts.withDefaults()}
}

// NewMedia implements Context. The stream header is parsed immediately;
// decoding the body starts on Load or Play.
func (c *ProductionContext) NewMedia(data []byte) (Media, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, player.ErrContextClosed
	}

	key := cache.Key(data)
	var (
		dec  *mp3.Decoder
		buf  *pcmBuffer
		rate int
	)
	if entry, ok := c.lookup(key); ok {
		buf = newCompleteBuffer(entry.PCM)
		rate = entry.SampleRate
	} else {
		var err error
		if dec, err = parseHeader(data); err != nil {
			return nil, err
		}
		buf = newPCMBuffer()
		rate = dec.SampleRate()
	}

	deviceRate := rate
	if c.opts.SampleRate > 0 {
		deviceRate = c.opts.SampleRate
	}
	dev, err := openDevice(deviceRate, c.opts.BufferSize)
	if err != nil {
		return nil, err
	}
	if dev.sampleRate != rate {
		return nil, fmt.Errorf("%w: device runs at %d Hz, segment is %d Hz",
			player.ErrSampleRateMismatch, dev.sampleRate, rate)
	}
	c.device = dev

	decodeCtx, cancel := context.WithCancel(context.Background())
	m := &productionMedia{
		owner:       c,
		events:      newEmitter(),
		key:         key,
		dec:         dec,
		buf:         buf,
		futureBytes: int(durationToBytes(c.opts.FutureBuffer, rate)),
		sampleRate:  rate,
		decodeCtx:   decodeCtx,
		cancel:      cancel,
		ready:       HaveMetadata,
		logger:      c.opts.Logger,
	}
	if dec == nil {
		m.ready = HaveEnoughData
		m.decodeOnce.Do(func() {})
	}
	c.media = append(c.media, m)
	return m, nil
}

func (c *ProductionContext) lookup(key string) (cache.Entry, bool) {
	if c.opts.Cache == nil {
		return cache.Entry{}, false
	}
	return c.opts.Cache.Get(key)
}

// Route implements Context. The tap sees every PCM byte handed to the device.
func (c *ProductionContext) Route(media Media, tap io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return player.ErrContextClosed
	}
	m, ok := media.(*productionMedia)
	if !ok || m.owner != c {
		return errors.New("media does not belong to this context")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.player != nil {
		return errors.New("media is already playing")
	}
	m.tap = tap
	return nil
}

// Suspend implements Context. Output stops; media keep their playing state.
func (c *ProductionContext) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return player.ErrContextClosed
	}
	c.suspended = true
	for _, m := range c.media {
		m.halt()
	}
	return nil
}

// Resume implements Context.
func (c *ProductionContext) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return player.ErrContextClosed
	}
	c.suspended = false
	for _, m := range c.media {
		m.proceed()
	}
	return nil
}

func (c *ProductionContext) isSuspended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspended
}

// Close implements Context. Players created by the context are closed; the
// shared device stays open for later segments.
func (c *ProductionContext) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return player.ErrContextClosed
	}
	c.closed = true
	media := c.media
	c.media = nil
	c.mu.Unlock()

	var errs []error
	for _, m := range media {
		if err := m.Close(); err != nil && !errors.Is(err, player.ErrMediaClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SampleRate implements Context.
func (c *ProductionContext) SampleRate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return 0
	}
	return c.device.sampleRate
}

// ChannelCount implements Context.
func (c *ProductionContext) ChannelCount() int { return Channels }

// productionMedia decodes one segment in the background and feeds it to an
// oto player. Lock order is owner.mu before mu.
type productionMedia struct {
	owner  *ProductionContext
	events *emitter
	logger *log.Logger

	key         string
	dec         *mp3.Decoder
	buf         *pcmBuffer
	futureBytes int
	sampleRate  int

	decodeOnce sync.Once
	decodeCtx  context.Context
	cancel     context.CancelFunc

	mu          sync.Mutex
	preload     Preload
	ready       ReadyState
	tap         io.Writer
	reader      *pcmReader
	player      *oto.Player
	playing     bool
	closed      bool
	monitorStop chan struct{}
}

func (m *productionMedia) SetPreload(p Preload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preload = p
}

func (m *productionMedia) Load() {
	m.mu.Lock()
	preload, closed := m.preload, m.closed
	m.mu.Unlock()

	if closed || preload == PreloadNone {
		return
	}
	m.startDecode()
}

func (m *productionMedia) startDecode() {
	m.decodeOnce.Do(func() {
		go m.decode()
	})
}

func (m *productionMedia) decode() {
	start := time.Now()
	err := decodeInto(m.decodeCtx, m.dec, m.buf, func(buffered int) {
		level := HaveCurrentData
		if buffered >= m.futureBytes {
			level = HaveFutureData
		}
		m.raise(level)
	})

	switch {
	case errors.Is(err, context.Canceled):
		return
	case err != nil:
		m.logger.Warn("Decode stopped early", "error", err, "decoded", m.buf.len())
	}

	m.raise(HaveEnoughData)
	m.logger.Debug("Decoded segment", "bytes", m.buf.len(), "took", time.Since(start))

	if pcm, ok := m.buf.complete(); ok && err == nil && m.owner.opts.Cache != nil {
		entry := cache.Entry{PCM: pcm, SampleRate: m.sampleRate}
		if err := m.owner.opts.Cache.Put(m.key, entry); err != nil && !errors.Is(err, cache.ErrItemTooLarge) {
			m.logger.Debug("Failed to cache decoded segment", "error", err)
		}
	}
}

// raise moves the ready state up to level and fires the matching events.
func (m *productionMedia) raise(level ReadyState) {
	m.mu.Lock()
	if m.closed || level <= m.ready {
		m.mu.Unlock()
		return
	}
	prev := m.ready
	m.ready = level
	m.mu.Unlock()

	if prev < HaveFutureData && level >= HaveFutureData {
		m.events.emit(EventCanPlay)
	}
	if prev < HaveEnoughData && level >= HaveEnoughData {
		m.events.emit(EventCanPlayThrough)
	}
}

func (m *productionMedia) Play() error {
	m.startDecode()
	suspended := m.owner.isSuspended()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return player.ErrMediaClosed
	}
	if m.playing {
		m.mu.Unlock()
		return nil
	}
	if m.player == nil {
		m.reader = m.buf.reader()
		var src io.Reader = m.reader
		if m.tap != nil {
			src = io.TeeReader(src, m.tap)
		}
		m.player = m.owner.device.newPlayer(src, m.owner.opts.Volume)
		m.monitorStop = make(chan struct{})
		go m.monitor(m.monitorStop)
	}
	m.playing = true
	if !suspended {
		m.player.Play()
	}
	m.mu.Unlock()

	m.events.emit(EventPlay)
	return nil
}

func (m *productionMedia) Pause() {
	m.mu.Lock()
	if !m.playing || m.closed {
		m.mu.Unlock()
		return
	}
	m.playing = false
	if m.player != nil {
		m.player.Pause()
	}
	m.mu.Unlock()

	m.events.emit(EventPause)
}

// halt stops output for a context suspend without changing playing.
func (m *productionMedia) halt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.player != nil && m.playing {
		m.player.Pause()
	}
}

func (m *productionMedia) proceed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.player != nil && m.playing && !m.closed {
		m.player.Play()
	}
}

func (m *productionMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.playing
}

func (m *productionMedia) ReadyState() ReadyState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *productionMedia) On(event Event, fn func()) func() {
	return m.events.on(event, fn)
}

func (m *productionMedia) Once(event Event, fn func()) func() {
	return m.events.once(event, fn)
}

func (m *productionMedia) CurrentTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reader == nil || m.player == nil {
		return 0
	}
	played := int64(m.reader.offset() - m.player.BufferedSize())
	if played < 0 {
		played = 0
	}
	return bytesToDuration(played, m.sampleRate)
}

func (m *productionMedia) Duration() time.Duration {
	pcm, ok := m.buf.complete()
	if !ok {
		return 0
	}
	return bytesToDuration(int64(len(pcm)), m.sampleRate)
}

func (m *productionMedia) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return player.ErrMediaClosed
	}
	m.closed = true
	m.playing = false
	m.cancel()
	if m.monitorStop != nil {
		close(m.monitorStop)
	}
	p := m.player
	m.player = nil
	m.mu.Unlock()

	m.buf.close()
	m.events.close()

	if p != nil {
		p.Pause()
		return p.Close()
	}
	return nil
}

// monitor fires ended once the player has drained every decoded byte.
func (m *productionMedia) monitor(stop <-chan struct{}) {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		suspended := m.owner.isSuspended()

		m.mu.Lock()
		finished := m.playing && m.player != nil && m.reader.exhausted() &&
			!m.player.IsPlaying() && !suspended
		if finished {
			m.playing = false
		}
		m.mu.Unlock()

		if finished {
			m.events.emit(EventEnded)
			return
		}
	}
}
