package player

import (
	"fmt"
	"strings"
	"time"
)

// Audio backends accepted by Config.Backend.
const (
	BackendAuto = "auto"
	BackendOto  = "oto"
	BackendMock = "mock"
)

// Config contains all playback configuration options.
type Config struct {
	// Audio settings
	Backend    string  `yaml:"backend" env:"NARRATE_BACKEND" envDefault:"auto"`
	SampleRate int     `yaml:"sample_rate" env:"NARRATE_SAMPLE_RATE" envDefault:"0"`
	Volume     float64 `yaml:"volume" env:"NARRATE_VOLUME" envDefault:"1.0"`

	// Buffering settings
	FutureBuffer time.Duration `yaml:"future_buffer" env:"NARRATE_FUTURE_BUFFER" envDefault:"500ms"`
	StallTimeout time.Duration `yaml:"stall_timeout" env:"NARRATE_STALL_TIMEOUT" envDefault:"15s"`
	CacheSizeMB  int           `yaml:"cache_size_mb" env:"NARRATE_CACHE_SIZE_MB" envDefault:"64"`

	// Playback settings
	AutoPlay       bool `yaml:"auto_play" env:"NARRATE_AUTO_PLAY" envDefault:"true"`
	WrapNavigation bool `yaml:"wrap_navigation" env:"NARRATE_WRAP_NAVIGATION" envDefault:"false"`
	Watch          bool `yaml:"watch" env:"NARRATE_WATCH" envDefault:"false"`

	// Remote control
	RemoteAddr string `yaml:"remote_addr" env:"NARRATE_REMOTE_ADDR"`

	// Visual settings
	Visualizer VisualizerConfig `yaml:"visualizer"`
}

// VisualizerConfig contains spectrum display settings.
type VisualizerConfig struct {
	Enabled bool `yaml:"enabled" env:"NARRATE_VISUALIZER_ENABLED" envDefault:"true"`
	Bars    int  `yaml:"bars" env:"NARRATE_VISUALIZER_BARS" envDefault:"32"`
	FPS     int  `yaml:"fps" env:"NARRATE_VISUALIZER_FPS" envDefault:"20"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendAuto,
		SampleRate: 0,
		Volume:     1.0,

		FutureBuffer: 500 * time.Millisecond,
		StallTimeout: 15 * time.Second,
		CacheSizeMB:  64,

		AutoPlay:       true,
		WrapNavigation: false,
		Watch:          false,

		Visualizer: DefaultVisualizerConfig(),
	}
}

// DefaultVisualizerConfig returns default spectrum display settings.
func DefaultVisualizerConfig() VisualizerConfig {
	return VisualizerConfig{
		Enabled: true,
		Bars:    32,
		FPS:     20,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validBackends := []string{BackendAuto, BackendOto, BackendMock}
	backendValid := false
	for _, b := range validBackends {
		if strings.EqualFold(c.Backend, b) {
			backendValid = true
			c.Backend = strings.ToLower(c.Backend)
			break
		}
	}
	if !backendValid {
		return fmt.Errorf("%w: backend %q must be one of %v", ErrInvalidConfig, c.Backend, validBackends)
	}

	// 0 means "use the first segment's rate"
	if c.SampleRate != 0 {
		validSampleRates := []int{8000, 16000, 22050, 24000, 32000, 44100, 48000}
		sampleRateValid := false
		for _, sr := range validSampleRates {
			if c.SampleRate == sr {
				sampleRateValid = true
				break
			}
		}
		if !sampleRateValid {
			return fmt.Errorf("%w: sample rate %d must be 0 or one of %v", ErrInvalidConfig, c.SampleRate, validSampleRates)
		}
	}

	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("%w: volume must be between 0.0 and 1.0, got %.2f", ErrInvalidConfig, c.Volume)
	}

	if c.FutureBuffer <= 0 || c.FutureBuffer > 10*time.Second {
		return fmt.Errorf("%w: future buffer must be between 0 and 10s, got %s", ErrInvalidConfig, c.FutureBuffer)
	}

	if c.StallTimeout < 0 {
		return fmt.Errorf("%w: stall timeout must not be negative, got %s", ErrInvalidConfig, c.StallTimeout)
	}

	if c.CacheSizeMB < 0 || c.CacheSizeMB > 4096 {
		return fmt.Errorf("%w: cache size must be between 0 and 4096 MB, got %d", ErrInvalidConfig, c.CacheSizeMB)
	}

	if c.Visualizer.Bars < 4 || c.Visualizer.Bars > 128 {
		return fmt.Errorf("%w: visualizer bars must be between 4 and 128, got %d", ErrInvalidConfig, c.Visualizer.Bars)
	}
	if c.Visualizer.FPS < 1 || c.Visualizer.FPS > 60 {
		return fmt.Errorf("%w: visualizer fps must be between 1 and 60, got %d", ErrInvalidConfig, c.Visualizer.FPS)
	}

	return nil
}
