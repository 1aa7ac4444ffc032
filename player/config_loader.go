package player

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads playback configuration from Viper.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	// Audio settings
	if viper.IsSet("audio.backend") {
		cfg.Backend = viper.GetString("audio.backend")
	}
	if viper.IsSet("audio.sample_rate") {
		cfg.SampleRate = viper.GetInt("audio.sample_rate")
	}
	if viper.IsSet("audio.volume") {
		cfg.Volume = viper.GetFloat64("audio.volume")
	}

	// Buffering settings
	if viper.IsSet("audio.future_buffer") {
		if d, err := time.ParseDuration(viper.GetString("audio.future_buffer")); err == nil {
			cfg.FutureBuffer = d
		}
	}
	if viper.IsSet("audio.stall_timeout") {
		if d, err := time.ParseDuration(viper.GetString("audio.stall_timeout")); err == nil {
			cfg.StallTimeout = d
		}
	}
	if viper.IsSet("audio.cache_size_mb") {
		cfg.CacheSizeMB = viper.GetInt("audio.cache_size_mb")
	}

	// Playback settings
	if viper.IsSet("playback.auto_play") {
		cfg.AutoPlay = viper.GetBool("playback.auto_play")
	}
	if viper.IsSet("playback.wrap_navigation") {
		cfg.WrapNavigation = viper.GetBool("playback.wrap_navigation")
	}
	if viper.IsSet("playback.watch") {
		cfg.Watch = viper.GetBool("playback.watch")
	}

	if viper.IsSet("remote.addr") {
		cfg.RemoteAddr = viper.GetString("remote.addr")
	}

	cfg.Visualizer = loadVisualizerConfig()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid playback configuration: %w", err)
	}

	return cfg, nil
}

// loadVisualizerConfig loads spectrum display settings from Viper.
func loadVisualizerConfig() VisualizerConfig {
	cfg := DefaultVisualizerConfig()

	if viper.IsSet("visualizer.enabled") {
		cfg.Enabled = viper.GetBool("visualizer.enabled")
	}
	if viper.IsSet("visualizer.bars") {
		cfg.Bars = viper.GetInt("visualizer.bars")
	}
	if viper.IsSet("visualizer.fps") {
		cfg.FPS = viper.GetInt("visualizer.fps")
	}

	return cfg
}

// SetDefaults sets default values in Viper for playback configuration.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("audio.backend", defaults.Backend)
	viper.SetDefault("audio.sample_rate", defaults.SampleRate)
	viper.SetDefault("audio.volume", defaults.Volume)
	viper.SetDefault("audio.future_buffer", defaults.FutureBuffer.String())
	viper.SetDefault("audio.stall_timeout", defaults.StallTimeout.String())
	viper.SetDefault("audio.cache_size_mb", defaults.CacheSizeMB)

	viper.SetDefault("playback.auto_play", defaults.AutoPlay)
	viper.SetDefault("playback.wrap_navigation", defaults.WrapNavigation)
	viper.SetDefault("playback.watch", defaults.Watch)

	viper.SetDefault("remote.addr", defaults.RemoteAddr)

	viper.SetDefault("visualizer.enabled", defaults.Visualizer.Enabled)
	viper.SetDefault("visualizer.bars", defaults.Visualizer.Bars)
	viper.SetDefault("visualizer.fps", defaults.Visualizer.FPS)
}
