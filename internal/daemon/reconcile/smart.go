package reconcile

import (
	"time"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// Tick re-evaluates time-based policy, currently the smart-switch grace
// period. Call it periodically with the store write lock held.
func (r *Reconciler) Tick(s *models.AppState, now time.Time) Directives {
	return r.evaluateSmartSwitch(s, now)
}

// evaluateSmartSwitch follows another playing zone while the pinned zone is
// stopped, and returns to the pinned zone when it plays again or when the
// followed zone has been idle for the grace period.
func (r *Reconciler) evaluateSmartSwitch(s *models.AppState, now time.Time) Directives {
	p := s.ZonePreference
	if p.IsAuto() || !p.SmartSwitching {
		if s.IsSmartSwitched {
			return revertToPinned(s, now)
		}
		return Directives{}
	}

	pinned := s.Zone(p.ZoneID)
	pinnedActive := pinned != nil && pinned.State.Active()

	if s.IsSmartSwitched {
		if pinnedActive {
			return revertToPinned(s, now)
		}
		followed := s.Zone(s.ActiveZoneID)
		if followed != nil && followed.State.Active() {
			s.FollowedZoneIdleSince = nil
			return Directives{}
		}
		if s.FollowedZoneIdleSince == nil {
			t := now
			s.FollowedZoneIdleSince = &t
		}
		if now.Sub(*s.FollowedZoneIdleSince) < p.GracePeriod() {
			return Directives{}
		}
		d := revertToPinned(s, now)
		return d.Merge(follow(s, now))
	}

	if pinnedActive || s.PreferredZoneStoppedAt == nil {
		return Directives{}
	}
	return follow(s, now)
}

// follow switches the display to the first playing zone other than the
// pinned one, if any.
func follow(s *models.AppState, now time.Time) Directives {
	pinnedID := s.ZonePreference.ZoneID
	for i := range s.AllZones {
		z := &s.AllZones[i]
		if z.ZoneID == pinnedID || z.State != models.StatePlaying {
			continue
		}
		s.IsSmartSwitched = true
		s.FollowedZoneIdleSince = nil
		s.ActiveZoneID = z.ZoneID
		s.CurrentTrack = trackOf(z)
		MarkRebuilt(s, now)
		return rebuildAll
	}
	return Directives{}
}

func revertToPinned(s *models.AppState, now time.Time) Directives {
	s.IsSmartSwitched = false
	s.FollowedZoneIdleSince = nil
	showPinned(s)
	MarkRebuilt(s, now)
	return rebuildAll
}

// showPinned points the display at the pinned zone's cached data, or at
// nothing when the zone has none.
func showPinned(s *models.AppState) {
	z := s.Zone(s.ZonePreference.ZoneID)
	if z == nil || z.NowPlaying == nil {
		s.ActiveZoneID = ""
		s.CurrentTrack = nil
		return
	}
	s.ActiveZoneID = z.ZoneID
	s.CurrentTrack = trackOf(z)
}

func trackOf(z *models.Zone) *models.NowPlayingData {
	t := z.NowPlaying.Clone()
	if t == nil {
		t = &models.NowPlayingData{}
	}
	t.State = z.State
	return t
}
