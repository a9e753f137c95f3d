package tray

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchfire-io/nowplaying/internal/models"
)

func zonesState() *models.AppState {
	s := models.NewAppState()
	s.ConnectionStatus = models.Connected()
	s.AllZones = []models.Zone{
		{ZoneID: "k", DisplayName: "Kitchen", State: models.StatePlaying},
		{ZoneID: "o", DisplayName: "Office", State: models.StateStopped},
	}
	return s
}

func TestBuildMenu(t *testing.T) {
	t.Run("no zones", func(t *testing.T) {
		m := BuildMenu(models.NewAppState())
		assert.True(t, m.NoZones)
		assert.True(t, m.AutoChecked)
		assert.Empty(t, m.Zones)
		assert.Equal(t, "Disconnected", m.Status)
		assert.Equal(t, "Waiting for music...", m.Track)
	})

	t.Run("selected zone is checked", func(t *testing.T) {
		s := zonesState()
		s.ZonePreference = models.SelectedPreference("o")
		m := BuildMenu(s)
		require.Len(t, m.Zones, 2)
		assert.False(t, m.AutoChecked)
		assert.Equal(t, ZoneSlot{ZoneID: "k", Label: "Kitchen (Playing)"}, m.Zones[0])
		assert.Equal(t, ZoneSlot{ZoneID: "o", Label: "Office (Stopped)", Checked: true}, m.Zones[1])
	})

	t.Run("smart switched zone is marked", func(t *testing.T) {
		s := zonesState()
		s.ZonePreference = models.SelectedPreference("o")
		s.IsSmartSwitched = true
		s.ActiveZoneID = "k"
		m := BuildMenu(s)
		assert.Equal(t, "Kitchen (Playing) ← Showing", m.Zones[0].Label)
		assert.Equal(t, "Office (Stopped)", m.Zones[1].Label)
	})

	t.Run("active zone without switch is not marked", func(t *testing.T) {
		s := zonesState()
		s.ActiveZoneID = "k"
		assert.Equal(t, "Kitchen (Playing)", BuildMenu(s).Zones[0].Label)
	})

	t.Run("slots are bounded", func(t *testing.T) {
		s := models.NewAppState()
		for i := 0; i < maxZoneSlots+4; i++ {
			s.AllZones = append(s.AllZones, models.Zone{ZoneID: string(rune('a' + i)), State: models.StateStopped})
		}
		assert.Len(t, BuildMenu(s).Zones, maxZoneSlots)
	})
}

func TestIconTitle(t *testing.T) {
	track := func(st models.PlaybackState) *models.AppState {
		s := models.NewAppState()
		s.CurrentTrack = &models.NowPlayingData{Title: "Song", Artist: "Band", State: st}
		return s
	}

	tests := []struct {
		name    string
		state   *models.AppState
		current string
		want    string
	}{
		{"playing", track(models.StatePlaying), "", "Song — Band"},
		{"paused clears", track(models.StatePaused), "Song — Band", ""},
		{"loading", track(models.StateLoading), "", "Loading..."},
		{"stopped keeps", track(models.StateStopped), "Song — Band", "Song — Band"},
		{"no track keeps", models.NewAppState(), "old", "old"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IconTitle(tt.state, tt.current))
		})
	}
}

func TestIconTitleTruncates(t *testing.T) {
	s := models.NewAppState()
	s.CurrentTrack = &models.NowPlayingData{Title: strings.Repeat("x", 100), Artist: "Band", State: models.StatePlaying}
	got := IconTitle(s, "")
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), maxTitleWidth)
}

func TestTooltip(t *testing.T) {
	s := zonesState()
	assert.Equal(t, "Now Playing: Connected", Tooltip(s))
	s.CurrentTrack = &models.NowPlayingData{Title: "Song", State: models.StatePlaying}
	assert.Equal(t, "Now Playing: Song", Tooltip(s))
}

func TestIconDataIsPNG(t *testing.T) {
	require.NotEmpty(t, iconData)
	img, err := png.Decode(bytes.NewReader(iconData))
	require.NoError(t, err)
	assert.Equal(t, iconSize, img.Bounds().Dx())
}
