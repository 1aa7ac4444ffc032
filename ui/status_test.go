package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/narrate/internal/store"
	"github.com/dgnsrekt/narrate/player"
)

func activeStatus() store.Status {
	return store.Status{
		Active:     true,
		Title:      "chapter",
		TrackTitle: "Opening lines",
		Position:   1,
		Total:      3,
		Complete:   true,
		Available:  3,
		HasAudio:   true,
	}
}

func TestStatusDisplayInactive(t *testing.T) {
	display := NewStatusDisplay()
	if got := display.CompactStatus(80); !strings.Contains(got, "no document") {
		t.Errorf("CompactStatus() = %q, want no document", got)
	}
	if bar := display.ProgressBar(40); bar != "" {
		t.Errorf("ProgressBar() = %q, want empty", bar)
	}
}

func TestStatusDisplayStates(t *testing.T) {
	tests := []struct {
		name    string
		playing bool
		state   player.SegmentState
		icon    string
		text    string
	}{
		{"playing", true, player.StatePlaying, "▶", "playing"},
		{"paused", false, player.StateReady, "⏸", "paused"},
		{"buffering", true, player.StateReady, "⟳", "buffering"},
		{"loading", true, player.StateLoading, "⟳", "waiting for audio"},
		{"absent", false, player.StateAbsent, "◼", "stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			display := NewStatusDisplay()
			st := activeStatus()
			st.Playing = tt.playing
			display.SetStore(st)
			display.UpdateFromMessage(player.StateChangedMsg{Segment: "doc-1", State: tt.state})

			got := display.CompactStatus(120)
			if !strings.Contains(got, tt.icon) {
				t.Errorf("CompactStatus() = %q, want icon %q", got, tt.icon)
			}
			if !strings.Contains(got, tt.text) {
				t.Errorf("CompactStatus() = %q, want %q", got, tt.text)
			}
			if !strings.Contains(got, "2/3") {
				t.Errorf("CompactStatus() = %q, want counter 2/3", got)
			}
		})
	}
}

func TestStatusDisplayFinished(t *testing.T) {
	display := NewStatusDisplay()
	st := activeStatus()
	st.Finished = true
	st.Position = 0
	display.SetStore(st)

	if got := display.CompactStatus(80); !strings.Contains(got, "finished") {
		t.Errorf("CompactStatus() = %q, want finished", got)
	}
}

func TestStatusDisplayIncompleteDocument(t *testing.T) {
	display := NewStatusDisplay()
	st := activeStatus()
	st.Complete = false
	display.SetStore(st)

	if got := display.CompactStatus(80); !strings.Contains(got, "2/3+") {
		t.Errorf("CompactStatus() = %q, want 2/3+", got)
	}
}

func TestStatusDisplayStall(t *testing.T) {
	display := NewStatusDisplay()
	st := activeStatus()
	st.Playing = true
	display.SetStore(st)
	display.UpdateFromMessage(player.StateChangedMsg{Segment: "doc-1", State: player.StateReady})
	display.UpdateFromMessage(player.BufferingStalledMsg{Segment: "doc-1", Waited: 15 * time.Second})

	if got := display.CompactStatus(120); !strings.Contains(got, "stalled") {
		t.Errorf("CompactStatus() = %q, want stalled", got)
	}

	display.UpdateFromMessage(player.SegmentPlayingMsg{Segment: "doc-1", Position: 1})
	if got := display.CompactStatus(120); strings.Contains(got, "stalled") {
		t.Errorf("CompactStatus() = %q, stall should clear on playback", got)
	}
}

func TestStatusDisplayErrorLine(t *testing.T) {
	display := NewStatusDisplay()
	display.SetStore(activeStatus())

	if line := display.ErrorLine(80); line != "" {
		t.Errorf("ErrorLine() = %q, want empty", line)
	}

	display.UpdateFromMessage(player.DecodeFailedMsg{Segment: "doc-1", Err: errors.New("bad header")})
	if line := display.ErrorLine(80); !strings.Contains(line, "bad header") {
		t.Errorf("ErrorLine() = %q", line)
	}

	display.UpdateFromMessage(player.SegmentReadyMsg{Segment: "doc-2", Position: 2})
	if line := display.ErrorLine(80); line != "" {
		t.Errorf("ErrorLine() = %q, want cleared", line)
	}
}

func TestStatusDisplayClock(t *testing.T) {
	display := NewStatusDisplay()
	display.SetStore(activeStatus())
	display.SetClock(65*time.Second, 2*time.Minute)

	if got := display.CompactStatus(120); !strings.Contains(got, "1:05/2:00") {
		t.Errorf("CompactStatus() = %q, want clock", got)
	}

	display.UpdateFromMessage(player.SegmentReleasedMsg{Segment: "doc-1", Reason: "superseded"})
	if got := display.CompactStatus(120); strings.Contains(got, "1:05") {
		t.Errorf("CompactStatus() = %q, clock should reset on release", got)
	}
}

func TestStatusDisplayTruncatesTitle(t *testing.T) {
	display := NewStatusDisplay()
	st := activeStatus()
	st.TrackTitle = strings.Repeat("long title ", 20)
	display.SetStore(st)

	got := display.CompactStatus(60)
	if !strings.Contains(got, ellipsis) {
		t.Errorf("CompactStatus() = %q, want truncated title", got)
	}
}

func TestProgressBar(t *testing.T) {
	display := NewStatusDisplay()
	st := activeStatus()
	st.Position = 2
	st.Total = 4
	display.SetStore(st)

	bar := display.ProgressBar(20)
	if filled := strings.Count(bar, "█"); filled != 10 {
		t.Errorf("filled = %d, want 10", filled)
	}
	if empty := strings.Count(bar, "░"); empty != 10 {
		t.Errorf("empty = %d, want 10", empty)
	}

	if bar := display.ProgressBar(5); bar != "" {
		t.Errorf("narrow ProgressBar() = %q, want empty", bar)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{-time.Second, "0:00"},
		{59 * time.Second, "0:59"},
		{61 * time.Second, "1:01"},
		{10*time.Minute + 5*time.Second, "10:05"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
