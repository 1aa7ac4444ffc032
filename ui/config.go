package ui

import "github.com/dgnsrekt/narrate/player"

// Config contains TUI-specific configuration.
type Config struct {
	// Source the document was loaded from, shown in the header
	Path string

	Visualizer player.VisualizerConfig

	// For debugging the UI
	ShowSegmentIDs bool `env:"NARRATE_SHOW_SEGMENT_IDS" envDefault:"false"`
	AltScreen      bool `env:"NARRATE_ALT_SCREEN"       envDefault:"true"`
}
