// Package tray implements the system tray icon and menu for the daemon.
package tray

import (
	"fmt"

	"github.com/charmbracelet/x/ansi"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// maxZoneSlots is the number of pre-allocated zone entries. Zones past this
// are left out of the menu.
const maxZoneSlots = 16

// maxTitleWidth bounds the menu-bar title in terminal cells.
const maxTitleWidth = 40

// ZoneSlot is one row of the "Select Zone" submenu.
type ZoneSlot struct {
	ZoneID  string
	Label   string
	Checked bool
}

// Menu is the content of the tray menu for one snapshot.
type Menu struct {
	Status      string
	Track       string
	AutoChecked bool
	Zones       []ZoneSlot
	NoZones     bool
}

// BuildMenu derives the menu content from s.
func BuildMenu(s *models.AppState) Menu {
	m := Menu{
		Status:      s.ConnectionStatus.String(),
		Track:       trackLine(s.CurrentTrack),
		AutoChecked: s.ZonePreference.IsAuto(),
		NoZones:     len(s.AllZones) == 0,
	}
	for i := range s.AllZones {
		if i >= maxZoneSlots {
			break
		}
		z := &s.AllZones[i]
		m.Zones = append(m.Zones, ZoneSlot{
			ZoneID:  z.ZoneID,
			Label:   zoneLabel(s, z),
			Checked: !s.ZonePreference.IsAuto() && s.ZonePreference.ZoneID == z.ZoneID,
		})
	}
	return m
}

func zoneLabel(s *models.AppState, z *models.Zone) string {
	label := z.Label()
	if s.IsSmartSwitched && s.ActiveZoneID == z.ZoneID {
		label += " ← Showing"
	}
	return label
}

func trackLine(t *models.NowPlayingData) string {
	if t == nil || t.Title == "" {
		return "Waiting for music..."
	}
	if t.Artist == "" {
		return t.Title
	}
	return t.Title + " — " + t.Artist
}

// IconTitle returns the menu-bar title for s given the title currently
// shown. A stopped or missing track leaves the title unchanged.
func IconTitle(s *models.AppState, current string) string {
	t := s.CurrentTrack
	if t == nil {
		return current
	}
	switch t.State {
	case models.StatePlaying:
		title := t.Title
		if t.Artist != "" {
			title += " — " + t.Artist
		}
		return ansi.Truncate(title, maxTitleWidth, "…")
	case models.StatePaused:
		return ""
	case models.StateLoading:
		return "Loading..."
	default:
		return current
	}
}

// Tooltip returns the hover text for s.
func Tooltip(s *models.AppState) string {
	if s.CurrentTrack == nil || s.CurrentTrack.Title == "" {
		return fmt.Sprintf("Now Playing: %s", s.ConnectionStatus)
	}
	return fmt.Sprintf("Now Playing: %s", trackLine(s.CurrentTrack))
}
