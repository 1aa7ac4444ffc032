// Package ui provides the terminal player for narrate.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/narrate/internal/store"
	"github.com/dgnsrekt/narrate/player"
	"github.com/dgnsrekt/narrate/player/audio"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "stopped"
	ellipsis             = "…"
)

// Controller is the player state the UI drives. *store.Store implements it.
type Controller interface {
	Status() store.Status
	Tracks() []store.TrackInfo
	Play()
	Pause()
	Toggle()
	Next()
	Previous()
	GoToPosition(position int)
}

// Audio is the synchronizer surface the UI reads. Current seeds the model;
// later sets arrive through Notifier.SetChanged.
type Audio interface {
	Current() *audio.ResourceSet
	ClearAudio()
	SegmentState() (player.SegmentState, player.SegmentID)
}

type (
	tickMsg                 time.Time
	audioClearedMsg         struct{}
	statusMessageTimeoutMsg struct{}
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#5A56E0")).
			Padding(0, 1)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#777777"))
	currentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EE6FF8")).Bold(true)
	missingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555")).Italic(true)
	spectrumColor = lipgloss.Color("#5A56E0")
)

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, ctrl Controller, a Audio, n *Notifier) *tea.Program {
	log.Debug(
		"Starting narrate",
		"path", cfg.Path,
		"visualizer", cfg.Visualizer.Enabled,
	)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return tea.NewProgram(newModel(cfg, ctrl, a, n), opts...)
}

type model struct {
	cfg      Config
	ctrl     Controller
	audio    Audio
	notifier *Notifier
	set      *audio.ResourceSet

	width  int
	height int

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	status   *StatusDisplay
	spectrum *Spectrum

	tracks        []store.TrackInfo
	statusMessage string
}

func newModel(cfg Config, ctrl Controller, a Audio, n *Notifier) model {
	if cfg.Visualizer.FPS <= 0 {
		cfg.Visualizer = player.DefaultVisualizerConfig()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))

	m := model{
		cfg:      cfg,
		ctrl:     ctrl,
		audio:    a,
		notifier: n,
		set:      a.Current(),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		spinner:  sp,
		status:   NewStatusDisplay(),
		spectrum: NewSpectrum(cfg.Visualizer.Bars),
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.notifier.listen(), m.notifier.listenSets(), m.tick(), m.spinner.Tick)
}

func (m model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.cfg.Visualizer.FPS), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh re-reads the store.
func (m *model) refresh() {
	m.status.SetStore(m.ctrl.Status())
	m.tracks = m.ctrl.Tracks()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.sample()
		cmds = append(cmds, m.tick())

	case resourceSetMsg:
		m.set = msg.set
		cmds = append(cmds, m.notifier.listenSets())

	case storeChangedMsg:
		m.refresh()
		cmds = append(cmds, m.notifier.listen())

	case player.StateChangedMsg, player.SegmentLoadingMsg, player.SegmentReadyMsg,
		player.SegmentPlayingMsg, player.SegmentPausedMsg, player.SegmentEndedMsg,
		player.SegmentReleasedMsg, player.DecodeFailedMsg, player.BufferingStalledMsg:
		m.status.UpdateFromMessage(msg)
		m.refresh()
		cmds = append(cmds, m.notifier.listen())

	case audioClearedMsg:
		m.statusMessage = "stopped"
		cmds = append(cmds, tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
			return statusMessageTimeoutMsg{}
		}))

	case statusMessageTimeoutMsg:
		m.statusMessage = ""

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Toggle):
		m.ctrl.Toggle()

	case key.Matches(msg, m.keys.Next):
		m.ctrl.Next()

	case key.Matches(msg, m.keys.Previous):
		m.ctrl.Previous()

	case key.Matches(msg, m.keys.Restart):
		m.ctrl.GoToPosition(0)

	case key.Matches(msg, m.keys.Stop):
		m.ctrl.Pause()
		a := m.audio
		// ClearAudio waits on the synchronizer loop; keep it off the
		// update goroutine.
		return m, func() tea.Msg {
			a.ClearAudio()
			return audioClearedMsg{}
		}
	}

	m.refresh()
	return m, nil
}

// sample reads the playback clock and the analyser of the current set.
func (m *model) sample() {
	set := m.set
	if set == nil || set.Released() {
		m.status.SetClock(0, 0)
		if m.cfg.Visualizer.Enabled {
			m.spectrum.Sample(nil)
		}
		return
	}

	m.status.SetClock(set.Media.CurrentTime(), set.Media.Duration())
	if m.cfg.Visualizer.Enabled {
		m.spectrum.Sample(set.Analyser)
	}
}

func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString(m.headerView(width))
	b.WriteString("\n\n")

	helpView := m.help.View(m.keys)
	reserved := 6 + lipgloss.Height(helpView)
	if m.cfg.Visualizer.Enabled {
		reserved += 2
	}
	b.WriteString(m.tracksView(width, max(m.height-reserved, 3)))
	b.WriteString("\n")

	if m.cfg.Visualizer.Enabled {
		b.WriteString(m.spectrum.View(spectrumColor))
		b.WriteString("\n\n")
	}

	if bar := m.status.ProgressBar(width); bar != "" {
		b.WriteString(bar)
		b.WriteString("\n")
	}

	line := m.status.CompactStatus(width)
	if state, _ := m.audio.SegmentState(); state == player.StateLoading {
		line = m.spinner.View() + " " + line
	}
	if m.statusMessage != "" {
		line += subtleStyle.Render("  " + m.statusMessage)
	}
	b.WriteString(line)
	b.WriteString("\n")

	if errLine := m.status.ErrorLine(width); errLine != "" {
		b.WriteString(errLine)
		b.WriteString("\n")
	}

	b.WriteString(helpView)
	return b.String()
}

func (m model) headerView(width int) string {
	st := m.ctrl.Status()
	title := "narrate"
	if st.Active && st.Title != "" {
		title += " · " + st.Title
	}
	header := titleStyle.Render(truncate.StringWithTail(title, uint(max(width-2, 8)), ellipsis))
	if m.cfg.Path != "" {
		room := width - lipgloss.Width(header) - 2
		if room > 8 {
			header += " " + subtleStyle.Render(truncate.StringWithTail(m.cfg.Path, uint(room), ellipsis))
		}
	}
	return header
}

// tracksView renders a window of the track list around the current position.
func (m model) tracksView(width, height int) string {
	st := m.ctrl.Status()
	if !st.Active {
		return subtleStyle.Render("No document loaded.")
	}
	if len(m.tracks) == 0 {
		return subtleStyle.Render("Waiting for segments…")
	}

	start := max(st.Position-height/2, 0)
	end := min(start+height, len(m.tracks))
	start = max(end-height, 0)

	_, current := m.audio.SegmentState()

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		t := m.tracks[i]
		label := fmt.Sprintf("%3d  %s", i+1, t.Title)
		if m.cfg.ShowSegmentIDs && i == st.Position && current != "" {
			label += " [" + string(current) + "]"
		}
		label = truncate.StringWithTail(label, uint(max(width-2, 8)), ellipsis)

		switch {
		case i == st.Position:
			lines = append(lines, currentStyle.Render("▸"+label))
		case !t.Loaded:
			lines = append(lines, missingStyle.Render(" "+label))
		default:
			lines = append(lines, " "+label)
		}
	}
	return strings.Join(lines, "\n")
}
