package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// Model is the root Bubbletea model for the watch view.
type Model struct {
	backend Backend

	view   models.StatusView
	loaded bool
	err    error
	notice string

	// cursorID keeps the cursor on the same zone across refreshes.
	cursor   int
	cursorID string

	spinner spinner.Model
	help    help.Model
	width   int
	height  int
}

// NewModel creates the initial model.
func NewModel(b Backend) Model {
	return Model{
		backend: b,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		help:    help.New(),
	}
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchStateCmd(m.backend, true), m.spinner.Tick)
}

// Update processes messages and returns an updated model and commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case StateMsg:
		m.view = msg.View
		m.loaded = true
		m.err = nil
		m.restoreCursor()
		if msg.poll {
			return m, pollCmd()
		}
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		m.notice = ""
		if msg.poll {
			return m, pollCmd()
		}
		return m, nil

	case SelectedMsg:
		if msg.ZoneID == "" {
			m.notice = "Automatic zone selection"
		} else {
			m.notice = "Pinned to " + m.zoneName(msg.ZoneID)
		}
		return m, fetchStateCmd(m.backend, false)

	case pollMsg:
		return m, fetchStateCmd(m.backend, true)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		m.syncCursorID()
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.view.Zones)-1 {
			m.cursor++
		}
		m.syncCursorID()
	case key.Matches(msg, keys.Select):
		if m.cursor < len(m.view.Zones) {
			return m, selectZoneCmd(m.backend, m.view.Zones[m.cursor].ZoneID)
		}
	case key.Matches(msg, keys.Auto):
		return m, selectZoneCmd(m.backend, "")
	case key.Matches(msg, keys.Refresh):
		return m, fetchStateCmd(m.backend, false)
	}
	return m, nil
}

func (m *Model) syncCursorID() {
	if m.cursor < len(m.view.Zones) {
		m.cursorID = m.view.Zones[m.cursor].ZoneID
	}
}

// restoreCursor moves the cursor back onto cursorID after the zone list
// changed, or clamps it when that zone is gone.
func (m *Model) restoreCursor() {
	for i, z := range m.view.Zones {
		if z.ZoneID == m.cursorID {
			m.cursor = i
			return
		}
	}
	if m.cursor >= len(m.view.Zones) {
		m.cursor = max(len(m.view.Zones)-1, 0)
	}
	m.syncCursorID()
}

func (m Model) zoneName(id string) string {
	for _, z := range m.view.Zones {
		if z.ZoneID == id {
			return z.DisplayName
		}
	}
	return id
}

// View renders the model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Now Playing"))
	b.WriteString("  ")
	b.WriteString(m.connectionView())
	b.WriteString("\n\n")

	if !m.loaded {
		if m.err != nil {
			b.WriteString(errorStyle.Render("Cannot reach daemon: "+m.err.Error()) + "\n")
		} else {
			b.WriteString(m.spinner.View() + " Connecting to daemon...\n")
		}
		b.WriteString("\n" + m.help.View(keys))
		return b.String()
	}

	b.WriteString(m.trackView())
	b.WriteString("\n")
	b.WriteString(m.zonesView())

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.truncate(m.err.Error())) + "\n")
	} else if m.notice != "" {
		b.WriteString("\n" + noticeStyle.Render(m.notice) + "\n")
	}

	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}

func (m Model) connectionView() string {
	v := m.view
	switch v.Connection {
	case models.ConnConnected:
		return playingStyle.Render("● Connected")
	case models.ConnDiscovering:
		return m.spinner.View() + " " + loadingStyle.Render("Discovering...")
	case models.ConnError:
		return errorStyle.Render("● " + m.truncate("Error: "+v.ConnectionReason))
	default:
		return dimStyle.Render("○ Disconnected")
	}
}

func (m Model) trackView() string {
	t := m.view.Track
	var lines []string
	if t == nil || t.Title == "" {
		lines = append(lines, dimStyle.Render("Waiting for music..."))
	} else {
		lines = append(lines, titleStyle.Render(m.truncate(t.Title)))
		if t.Artist != "" {
			lines = append(lines, m.truncate(t.Artist))
		}
		if t.Album != "" {
			lines = append(lines, dimStyle.Render(m.truncate(t.Album)))
		}
		lines = append(lines, stateStyle(t.State).Render(t.State.Label()))
	}

	mode := "Automatic"
	if m.view.Preference == models.PreferSelected {
		mode = "Pinned to " + m.zoneName(m.view.PreferredZoneID)
		if m.view.SmartSwitched {
			mode += ", following " + m.zoneName(m.view.ActiveZoneID)
		}
	}
	lines = append(lines, dimStyle.Render(m.truncate(mode)))
	return trackBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n"
}

func (m Model) zonesView() string {
	if len(m.view.Zones) == 0 {
		return dimStyle.Render("No zones available") + "\n"
	}
	var b strings.Builder
	b.WriteString(dimStyle.Render("Zones") + "\n")
	for i, z := range m.view.Zones {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if z.Selected {
			check = "[x]"
		}
		name := z.DisplayName
		if i == m.cursor {
			name = selectedStyle.Render(name)
		}
		line := fmt.Sprintf("%s%s %s %s", cursor, check, name, stateStyle(z.State).Render("("+z.State.Label()+")"))
		if m.view.SmartSwitched && z.ZoneID == m.view.ActiveZoneID {
			line += dimStyle.Render(" ← Showing")
		}
		b.WriteString(m.truncate(line) + "\n")
	}
	return b.String()
}

// truncate fits s to the terminal width.
func (m Model) truncate(s string) string {
	if m.width <= 0 {
		return s
	}
	return ansi.Truncate(s, m.width-4, "…")
}

func stateStyle(s models.PlaybackState) lipgloss.Style {
	switch s {
	case models.StatePlaying:
		return playingStyle
	case models.StatePaused:
		return pausedStyle
	case models.StateLoading:
		return loadingStyle
	default:
		return stoppedStyle
	}
}
