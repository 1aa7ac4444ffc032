// Package audio provides the decode, playback and analysis resources backing
// one segment: processing contexts, media handles, the frequency analyser,
// the readiness waiter and the resource-set builder.
package audio

import (
	"io"
	"time"
)

// ReadyState mirrors the buffering levels of an HTML media element.
type ReadyState int

const (
	// HaveNothing means no information about the media is available.
	HaveNothing ReadyState = iota
	// HaveMetadata means the stream header was parsed.
	HaveMetadata
	// HaveCurrentData means data for the current position is available.
	HaveCurrentData
	// HaveFutureData means enough data is buffered to play without stalling
	// immediately.
	HaveFutureData
	// HaveEnoughData means the whole stream is buffered.
	HaveEnoughData
)

// String returns the string representation of the ready state.
func (r ReadyState) String() string {
	switch r {
	case HaveNothing:
		return "nothing"
	case HaveMetadata:
		return "metadata"
	case HaveCurrentData:
		return "current-data"
	case HaveFutureData:
		return "future-data"
	case HaveEnoughData:
		return "enough-data"
	default:
		return "unknown"
	}
}

// Event names a media notification.
type Event string

const (
	// EventCanPlay fires when the ready state reaches HaveFutureData.
	EventCanPlay Event = "canplay"
	// EventCanPlayThrough fires when the ready state reaches HaveEnoughData.
	EventCanPlayThrough Event = "canplaythrough"
	// EventPlay fires when playback starts.
	EventPlay Event = "play"
	// EventPause fires when playback is paused.
	EventPause Event = "pause"
	// EventEnded fires when playback reaches the natural end of the media.
	EventEnded Event = "ended"
)

// Preload is the loading hint given to a media handle.
type Preload int

const (
	// PreloadNone loads nothing until Play.
	PreloadNone Preload = iota
	// PreloadMetadata loads only the header.
	PreloadMetadata
	// PreloadAuto loads the whole stream as soon as Load is called.
	PreloadAuto
)

// Media is a decodable, playable handle for one segment's encoded bytes.
type Media interface {
	// SetPreload sets the loading hint used by Load.
	SetPreload(p Preload)

	// Load starts buffering according to the preload hint.
	Load()

	// Play starts or resumes playback.
	Play() error

	// Pause pauses playback, keeping buffered data.
	Pause()

	// Paused reports whether playback is paused.
	Paused() bool

	// ReadyState returns the current buffering level.
	ReadyState() ReadyState

	// On registers fn for every occurrence of event.
	On(event Event, fn func()) (off func())

	// Once registers fn for the next occurrence of event only; the listener
	// removes itself before fn runs.
	Once(event Event, fn func()) (off func())

	// CurrentTime returns the playback position.
	CurrentTime() time.Duration

	// Duration returns the media duration, or 0 when not yet known.
	Duration() time.Duration

	// Close drops the handle: listeners are removed and buffers released.
	Close() error
}

// Context owns the platform audio resources for one segment: its output
// graph and any players created for its media.
type Context interface {
	// NewMedia creates a media handle for encoded bytes. Malformed bytes are
	// reported here.
	NewMedia(data []byte) (Media, error)

	// Route connects media through tap into the context's destination.
	Route(media Media, tap io.Writer) error

	// Suspend halts output without releasing resources.
	Suspend() error

	// Resume restarts output after Suspend.
	Resume() error

	// Close releases the context. It cannot be used afterwards.
	Close() error

	// SampleRate returns the output sample rate, or 0 when not yet known.
	SampleRate() int

	// ChannelCount returns the number of output channels.
	ChannelCount() int
}

// ContextFactory creates a fresh processing context for every segment.
type ContextFactory interface {
	NewContext() (Context, error)
}

// ContextFactoryFunc adapts a function to ContextFactory.
type ContextFactoryFunc func() (Context, error)

// NewContext calls f.
func (f ContextFactoryFunc) NewContext() (Context, error) {
	return f()
}

// PCM format produced by the decoders: interleaved signed 16-bit stereo.
const (
	Channels       = 2
	BitDepth       = 16
	BytesPerSample = BitDepth / 8
	BytesPerFrame  = BytesPerSample * Channels
)

// bytesToDuration converts a PCM byte count at sampleRate into a duration.
func bytesToDuration(n int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	frames := n / BytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// durationToBytes converts a duration at sampleRate into a frame-aligned byte count.
func durationToBytes(d time.Duration, sampleRate int) int64 {
	frames := int64(d) * int64(sampleRate) / int64(time.Second)
	return frames * BytesPerFrame
}
