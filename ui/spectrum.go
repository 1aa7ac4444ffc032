package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/narrate/player/audio"
)

var barLevels = []rune(" ▁▂▃▄▅▆▇█")

// Spectrum renders analyser output as a row of bars.
type Spectrum struct {
	bins []byte
	bars []byte
}

// NewSpectrum creates a renderer for n bars.
func NewSpectrum(n int) *Spectrum {
	return &Spectrum{bars: make([]byte, n)}
}

// Sample reads the analyser. A nil analyser decays the bars to silence.
func (s *Spectrum) Sample(a *audio.Analyser) {
	if a == nil {
		for i := range s.bars {
			s.bars[i] /= 2
		}
		return
	}

	if n := a.FrequencyBinCount(); len(s.bins) != n {
		s.bins = make([]byte, n)
	}
	n := a.ByteFrequencyData(s.bins)
	groupBins(s.bins[:n], s.bars)
}

// groupBins folds bins into bars, taking the peak of each group. Lower
// frequencies get narrower groups.
func groupBins(bins, bars []byte) {
	if len(bars) == 0 {
		return
	}
	if len(bins) == 0 {
		clear(bars)
		return
	}

	// Speech energy sits in the lower half; spread it across the bars.
	usable := max(len(bins)/2, len(bars))
	usable = min(usable, len(bins))
	for i := range bars {
		lo := usable * i * i / (len(bars) * len(bars))
		hi := usable * (i + 1) * (i + 1) / (len(bars) * len(bars))
		hi = max(hi, lo+1)
		hi = min(hi, len(bins))
		lo = min(lo, hi-1)

		var peak byte
		for _, v := range bins[lo:hi] {
			peak = max(peak, v)
		}
		bars[i] = peak
	}
}

// Bars returns the current bar values, 0..255.
func (s *Spectrum) Bars() []byte {
	return s.bars
}

// View renders the bars in color, each bar one cell wide.
func (s *Spectrum) View(color lipgloss.Color) string {
	var b strings.Builder
	top := len(barLevels) - 1
	for _, v := range s.bars {
		b.WriteRune(barLevels[int(v)*top/255])
	}
	return lipgloss.NewStyle().Foreground(color).Render(b.String())
}
