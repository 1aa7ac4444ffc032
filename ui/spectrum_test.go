package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/narrate/player/audio"
)

func TestGroupBinsTakesPeaks(t *testing.T) {
	bins := make([]byte, 64)
	bins[0] = 200
	bins[31] = 90

	bars := make([]byte, 4)
	groupBins(bins, bars)

	if bars[0] != 200 {
		t.Errorf("bars[0] = %d, want 200", bars[0])
	}
	if bars[3] != 90 {
		t.Errorf("bars[3] = %d, want 90", bars[3])
	}
}

func TestGroupBinsEmpty(t *testing.T) {
	bars := []byte{1, 2, 3}
	groupBins(nil, bars)
	for i, v := range bars {
		if v != 0 {
			t.Errorf("bars[%d] = %d, want 0", i, v)
		}
	}

	// More bars than bins must not panic.
	groupBins([]byte{255, 128}, make([]byte, 8))
}

func TestSpectrumDecaysWithoutAnalyser(t *testing.T) {
	s := NewSpectrum(3)
	copy(s.bars, []byte{200, 100, 4})

	s.Sample(nil)
	want := []byte{100, 50, 2}
	for i, v := range s.Bars() {
		if v != want[i] {
			t.Errorf("bars[%d] = %d, want %d", i, v, want[i])
		}
	}
}

func TestSpectrumSamplesAnalyser(t *testing.T) {
	a := audio.NewAnalyser(2)
	s := NewSpectrum(8)
	s.Sample(a)

	if len(s.bins) != a.FrequencyBinCount() {
		t.Errorf("bins = %d, want %d", len(s.bins), a.FrequencyBinCount())
	}
	if len(s.Bars()) != 8 {
		t.Errorf("bars = %d, want 8", len(s.Bars()))
	}
}

func TestSpectrumView(t *testing.T) {
	s := NewSpectrum(3)
	copy(s.bars, []byte{0, 128, 255})

	got := s.View(lipgloss.Color("#ffffff"))
	if !strings.Contains(got, "█") {
		t.Errorf("View() = %q, want a full bar", got)
	}
	if !strings.Contains(got, "▄") {
		t.Errorf("View() = %q, want a half bar", got)
	}
}
