package audio

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/player"
)

// PCMCache stores decoded segments keyed by cache.Key of their encoded bytes.
type PCMCache interface {
	Get(key string) (cache.Entry, bool)
	Put(key string, entry cache.Entry) error
}

// ProductionOptions configures device-backed contexts.
type ProductionOptions struct {
	// SampleRate forces the device rate. 0 uses the first segment's rate.
	SampleRate int
	// Volume is applied to every player, 0.0 to 1.0.
	Volume float64
	// FutureBuffer is how much decoded audio counts as enough to start.
	FutureBuffer time.Duration
	// BufferSize is the device buffer length. 0 picks a platform default.
	BufferSize time.Duration
	// Cache, when set, skips decoding for segments seen before.
	Cache PCMCache
	// Logger receives decode diagnostics.
	Logger *log.Logger
}

func (o ProductionOptions) withDefaults() ProductionOptions {
	if o.Volume <= 0 || o.Volume > 1 {
		o.Volume = 1
	}
	if o.FutureBuffer <= 0 {
		o.FutureBuffer = 500 * time.Millisecond
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DetectPlatform().BufferSize()
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// FactoryOptions selects and configures the backend.
type FactoryOptions struct {
	Backend    string
	Production ProductionOptions
	Logger     *log.Logger
}

// NewContextFactory returns the factory for the requested backend and the
// name of the backend actually chosen. The auto backend picks the mock in CI
// or when no audio device is found.
func NewContextFactory(opts FactoryOptions) (ContextFactory, string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Production.Logger == nil {
		opts.Production.Logger = logger.WithPrefix("audio")
	}

	production := ContextFactoryFunc(func() (Context, error) {
		return NewProductionContext(opts.Production), nil
	})

	switch opts.Backend {
	case player.BackendOto:
		logger.Debug("Using production audio backend")
		return production, player.BackendOto, nil

	case player.BackendMock:
		logger.Debug("Using mock audio backend")
		return NewMockContextFactory(true), player.BackendMock, nil

	case player.BackendAuto, "":
		platform := DetectPlatform()
		if platform.ShouldUseMock() || !productionAvailable {
			reason := "no audio device"
			switch {
			case platform.IsCI:
				reason = "CI environment"
			case !productionAvailable:
				reason = "built without audio support"
			}
			logger.Info("Using mock audio backend", "reason", reason)
			return NewMockContextFactory(true), player.BackendMock, nil
		}
		logger.Debug("Using production audio backend", "platform", platform.OS)
		return production, player.BackendOto, nil

	default:
		return nil, "", fmt.Errorf("%w: unknown audio backend %q", player.ErrInvalidConfig, opts.Backend)
	}
}
