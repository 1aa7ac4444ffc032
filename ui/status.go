package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/narrate/internal/store"
	"github.com/dgnsrekt/narrate/player"
)

// StatusDisplay tracks what the status bar shows.
type StatusDisplay struct {
	state    player.SegmentState
	segment  player.SegmentID
	store    store.Status
	elapsed  time.Duration
	duration time.Duration
	stalled  bool
	waited   time.Duration
	errorMsg string
}

// NewStatusDisplay creates an empty status display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{state: player.StateAbsent}
}

// SetStore updates the player-state part of the display.
func (s *StatusDisplay) SetStore(st store.Status) {
	s.store = st
	if !st.Active {
		s.errorMsg = ""
		s.stalled = false
	}
}

// SetClock updates the playback clock of the current segment.
func (s *StatusDisplay) SetClock(elapsed, duration time.Duration) {
	s.elapsed = elapsed
	s.duration = duration
}

// UpdateFromMessage updates the display from a synchronizer message.
func (s *StatusDisplay) UpdateFromMessage(msg any) {
	switch m := msg.(type) {
	case player.StateChangedMsg:
		s.state = m.State
		s.segment = m.Segment
		if m.State == player.StatePlaying {
			s.stalled = false
		}

	case player.SegmentLoadingMsg:
		s.segment = m.Segment

	case player.SegmentReadyMsg:
		s.segment = m.Segment
		s.errorMsg = ""

	case player.SegmentPlayingMsg:
		s.segment = m.Segment
		s.waited = m.Waited
		s.stalled = false

	case player.BufferingStalledMsg:
		s.stalled = true
		s.waited = m.Waited

	case player.DecodeFailedMsg:
		s.errorMsg = m.Err.Error()

	case player.SegmentReleasedMsg:
		s.elapsed = 0
		s.duration = 0
	}
}

// CompactStatus returns the one-line status bar.
func (s *StatusDisplay) CompactStatus(width int) string {
	if !s.store.Active {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Render("○ no document")
	}

	statusStyle := lipgloss.NewStyle().Foreground(s.stateColor())
	status := statusStyle.Render(s.stateIcon() + " " + s.stateText())

	counterStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	total := fmt.Sprintf("%d", s.store.Total)
	if !s.store.Complete {
		total += "+"
	}
	status += counterStyle.Render(fmt.Sprintf(" %d/%s", s.store.Position+1, total))

	if s.duration > 0 {
		status += counterStyle.Render(fmt.Sprintf(" %s/%s", formatDuration(s.elapsed), formatDuration(s.duration)))
	}

	if s.stalled {
		status += lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800")).Render(" ⟳ stalled")
	}

	if title := s.store.TrackTitle; title != "" {
		room := width - lipgloss.Width(status) - 3
		if room > 4 {
			status += "  " + truncate.StringWithTail(title, uint(room), ellipsis)
		}
	}
	return status
}

// ErrorLine returns the last decode error, truncated to width.
func (s *StatusDisplay) ErrorLine(width int) string {
	if s.errorMsg == "" {
		return ""
	}
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	line := truncate.StringWithTail("Error: "+s.errorMsg, uint(max(width-2, 8)), ellipsis)
	return errorStyle.Render(line)
}

// ProgressBar renders document progress.
func (s *StatusDisplay) ProgressBar(width int) string {
	if s.store.Total <= 0 || width < 10 {
		return ""
	}

	progress := float64(s.store.Position) / float64(s.store.Total)
	if s.duration > 0 {
		progress += float64(s.elapsed) / float64(s.duration) / float64(s.store.Total)
	}
	filledWidth := min(int(progress*float64(width)), width)

	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	filledStyle := lipgloss.NewStyle().Foreground(s.stateColor())
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
	return filledStyle.Render(filled) + emptyStyle.Render(empty)
}

func (s *StatusDisplay) stateText() string {
	switch {
	case s.store.Finished:
		return "finished"
	case s.state == player.StateLoading:
		return "waiting for audio"
	case s.state == player.StateReady && s.store.Playing:
		return "buffering"
	case s.state == player.StatePlaying:
		return "playing"
	case s.state == player.StateReady:
		return "paused"
	default:
		return "stopped"
	}
}

func (s *StatusDisplay) stateColor() lipgloss.Color {
	switch {
	case s.store.Finished:
		return lipgloss.Color("#888888") // Gray
	case s.stalled:
		return lipgloss.Color("#FF8800") // Orange
	case s.state == player.StatePlaying:
		return lipgloss.Color("#00FF00") // Green
	case s.state == player.StateLoading, s.state == player.StateReady && s.store.Playing:
		return lipgloss.Color("#00AAFF") // Blue
	case s.state == player.StateReady:
		return lipgloss.Color("#FFFF00") // Yellow
	default:
		return lipgloss.Color("#666666")
	}
}

func (s *StatusDisplay) stateIcon() string {
	switch {
	case s.store.Finished:
		return "■"
	case s.state == player.StatePlaying:
		return "▶"
	case s.state == player.StateLoading, s.state == player.StateReady && s.store.Playing:
		return "⟳"
	case s.state == player.StateReady:
		return "⏸"
	default:
		return "◼"
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}

	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60

	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
