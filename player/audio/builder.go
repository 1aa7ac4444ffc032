package audio

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/player"
)

// Analysis settings for every segment. They keep the visualizer output
// stable and are not tunable by callers.
const (
	AnalyserFFTSize     = 512
	AnalyserMinDecibels = -100.0
	AnalyserMaxDecibels = -30.0
	AnalyserSmoothing   = 0.6
)

// Builder constructs the resource set for a segment.
type Builder struct {
	factory ContextFactory
	logger  *log.Logger
}

// NewBuilder creates a builder that draws a fresh context from factory for
// every segment.
func NewBuilder(factory ContextFactory, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{
		factory: factory,
		logger:  logger.WithPrefix("builder"),
	}
}

// Build decodes data into a playable handle wired as
// source → analyser → destination. The caller owns the returned set and must
// Release it; on error nothing is left allocated. Nil data means the bytes
// have not arrived yet and yields ErrNotYetAvailable; empty data is a decode
// failure.
func (b *Builder) Build(id player.SegmentID, data []byte) (*ResourceSet, error) {
	if data == nil {
		return nil, player.NewPlaybackError(player.ErrNotYetAvailable, "builder", "build").
			WithSegment(id).
			WithSeverity(player.SeverityInfo)
	}
	if len(data) == 0 {
		return nil, player.NewPlaybackError(fmt.Errorf("%w: %w", player.ErrDecodeFailure, player.ErrEmptyAudio), "builder", "build").
			WithSegment(id)
	}

	audioCtx, err := b.factory.NewContext()
	if err != nil {
		return nil, player.NewPlaybackError(fmt.Errorf("%w: %w", player.ErrContextUnavailable, err), "builder", "create context").
			WithSegment(id).
			WithSeverity(player.SeverityCritical)
	}

	media, err := audioCtx.NewMedia(data)
	if err != nil {
		_ = audioCtx.Close()
		return nil, player.NewPlaybackError(fmt.Errorf("%w: %w", player.ErrDecodeFailure, err), "builder", "decode").
			WithSegment(id).
			WithContext("bytes", len(data))
	}
	media.SetPreload(PreloadAuto)
	media.Load()

	analyser := NewAnalyser(audioCtx.ChannelCount())
	if err := configureAnalyser(analyser); err != nil {
		_ = media.Close()
		_ = audioCtx.Close()
		return nil, player.NewPlaybackError(err, "builder", "configure analyser").WithSegment(id)
	}

	if err := audioCtx.Route(media, analyser); err != nil {
		_ = media.Close()
		_ = audioCtx.Close()
		return nil, player.NewPlaybackError(err, "builder", "route").WithSegment(id)
	}

	b.logger.Debug("Built resource set", "segment", id, "bytes", len(data))
	return newResourceSet(id, media, analyser, audioCtx), nil
}

func configureAnalyser(a *Analyser) error {
	if err := a.SetFFTSize(AnalyserFFTSize); err != nil {
		return err
	}
	if err := a.SetDecibelRange(AnalyserMinDecibels, AnalyserMaxDecibels); err != nil {
		return err
	}
	return a.SetSmoothingTimeConstant(AnalyserSmoothing)
}
