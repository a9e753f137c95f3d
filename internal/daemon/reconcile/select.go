package reconcile

import (
	"errors"
	"time"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// ErrUnknownZone is returned when selecting a zone that is not in the list.
var ErrUnknownZone = errors.New("unknown zone")

// SelectZone pins id with the default smart-switching settings. The caller
// rebuilds the menu and then refreshes the icon.
func SelectZone(s *models.AppState, id string, now time.Time) error {
	if len(s.AllZones) > 0 && s.Zone(id) == nil {
		return ErrUnknownZone
	}
	s.ZonePreference = models.SelectedPreference(id)
	s.IsSmartSwitched = false
	s.PreferredZoneStoppedAt = nil
	s.FollowedZoneIdleSince = nil
	showPinned(s)
	MarkRebuilt(s, now)
	return nil
}

// SelectPreference applies a preference loaded from settings. Unlike
// SelectZone it accepts zones the worker has not reported yet.
func SelectPreference(s *models.AppState, p models.ZonePreference, now time.Time) {
	if p.IsAuto() {
		SelectAuto(s, now)
		return
	}
	s.ZonePreference = p
	s.IsSmartSwitched = false
	s.PreferredZoneStoppedAt = nil
	s.FollowedZoneIdleSince = nil
	showPinned(s)
	MarkRebuilt(s, now)
}

// SelectAuto returns to automatic zone selection. The current display is
// kept; it stays sticky until that zone goes away.
func SelectAuto(s *models.AppState, now time.Time) {
	s.ZonePreference = models.AutoPreference()
	s.IsSmartSwitched = false
	s.PreferredZoneStoppedAt = nil
	s.FollowedZoneIdleSince = nil
	if s.ActiveZoneID == "" {
		for i := range s.AllZones {
			if s.AllZones[i].State == models.StatePlaying && s.AllZones[i].NowPlaying != nil {
				s.ActiveZoneID = s.AllZones[i].ZoneID
				s.CurrentTrack = trackOf(&s.AllZones[i])
				break
			}
		}
	}
	MarkRebuilt(s, now)
}
