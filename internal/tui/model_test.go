package tui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchfire-io/nowplaying/internal/models"
)

type fakeBackend struct {
	mu       sync.Mutex
	view     models.StatusView
	err      error
	selected []string
}

func (f *fakeBackend) GetState(context.Context) (models.StatusView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view, f.err
}

func (f *fakeBackend) SelectZone(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, id)
	return nil
}

func twoZones() models.StatusView {
	return models.StatusView{
		Connection: models.ConnConnected,
		Preference: models.PreferAuto,
		Track:      &models.TrackView{Title: "Song", Artist: "Band", State: models.StatePlaying},
		Zones: []models.ZoneView{
			{ZoneID: "k", DisplayName: "Kitchen", State: models.StatePlaying, Active: true},
			{ZoneID: "o", DisplayName: "Office", State: models.StateStopped},
		},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitialViewShowsConnecting(t *testing.T) {
	m := NewModel(&fakeBackend{})
	assert.Contains(t, ansi.Strip(m.View()), "Connecting to daemon...")

	m, _ = update(t, m, ErrorMsg{Err: errors.New("daemon is not running"), poll: true})
	assert.Contains(t, ansi.Strip(m.View()), "Cannot reach daemon: daemon is not running")
}

func TestStateRendersTrackAndZones(t *testing.T) {
	m := NewModel(&fakeBackend{})
	m, cmd := update(t, m, StateMsg{View: twoZones(), poll: true})
	assert.NotNil(t, cmd, "polling continues")

	out := ansi.Strip(m.View())
	assert.Contains(t, out, "● Connected")
	assert.Contains(t, out, "Song")
	assert.Contains(t, out, "Band")
	assert.Contains(t, out, "▸ [ ] Kitchen (Playing)")
	assert.Contains(t, out, "  [ ] Office (Stopped)")
	assert.Contains(t, out, "Automatic")
}

func TestNonPollingStateDoesNotSchedule(t *testing.T) {
	m := NewModel(&fakeBackend{})
	_, cmd := update(t, m, StateMsg{View: twoZones()})
	assert.Nil(t, cmd)
}

func TestSelectZoneWithEnter(t *testing.T) {
	b := &fakeBackend{view: twoZones()}
	m := NewModel(b)
	m, _ = update(t, m, StateMsg{View: twoZones()})

	m, _ = update(t, m, keyMsg("down"))
	assert.Equal(t, 1, m.cursor)

	_, cmd := update(t, m, keyMsg("enter"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, SelectedMsg{ZoneID: "o"}, msg)
	assert.Equal(t, []string{"o"}, b.selected)

	m, cmd = update(t, m, msg)
	assert.Equal(t, "Pinned to Office", m.notice)
	require.NotNil(t, cmd)
	assert.IsType(t, StateMsg{}, cmd())
}

func TestAutoKey(t *testing.T) {
	b := &fakeBackend{}
	m := NewModel(b)
	_, cmd := update(t, m, keyMsg("a"))
	require.NotNil(t, cmd)
	assert.Equal(t, SelectedMsg{ZoneID: ""}, cmd())
	assert.Equal(t, []string{""}, b.selected)
}

func TestCursorFollowsZoneAcrossRefresh(t *testing.T) {
	m := NewModel(&fakeBackend{})
	m, _ = update(t, m, StateMsg{View: twoZones()})
	m, _ = update(t, m, keyMsg("down"))
	require.Equal(t, "o", m.cursorID)

	reordered := twoZones()
	reordered.Zones = []models.ZoneView{reordered.Zones[1], reordered.Zones[0]}
	m, _ = update(t, m, StateMsg{View: reordered})
	assert.Equal(t, 0, m.cursor)

	shrunk := twoZones()
	shrunk.Zones = shrunk.Zones[:1]
	m, _ = update(t, m, StateMsg{View: shrunk})
	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, "k", m.cursorID)
}

func TestSmartSwitchIndicator(t *testing.T) {
	v := twoZones()
	v.Preference = models.PreferSelected
	v.PreferredZoneID = "o"
	v.SmartSwitched = true
	v.ActiveZoneID = "k"
	v.Zones[1].Selected = true

	m := NewModel(&fakeBackend{})
	m, _ = update(t, m, StateMsg{View: v})
	out := ansi.Strip(m.View())
	assert.Contains(t, out, "Kitchen (Playing) ← Showing")
	assert.Contains(t, out, "[x] Office (Stopped)")
	assert.Contains(t, out, "Pinned to Office, following Kitchen")
}

func TestQuitKey(t *testing.T) {
	m := NewModel(&fakeBackend{})
	_, cmd := update(t, m, keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestNoZones(t *testing.T) {
	m := NewModel(&fakeBackend{})
	m, _ = update(t, m, StateMsg{View: models.StatusView{Connection: models.ConnDiscovering}})
	out := ansi.Strip(m.View())
	assert.Contains(t, out, "No zones available")
	assert.Contains(t, out, "Discovering...")
}
