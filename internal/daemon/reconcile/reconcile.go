// Package reconcile turns worker messages into AppState changes and tells the
// caller what the presentation layer has to refresh.
package reconcile

import (
	"time"

	"github.com/watchfire-io/nowplaying/internal/daemon/protocol"
	"github.com/watchfire-io/nowplaying/internal/models"
)

// Directives says which presentation refreshes a state change requires.
type Directives struct {
	Rebuild bool // full menu rebuild
	Icon    bool // icon and title only
}

// Merge returns the union of d and o.
func (d Directives) Merge(o Directives) Directives {
	return Directives{Rebuild: d.Rebuild || o.Rebuild, Icon: d.Icon || o.Icon}
}

// Empty reports whether nothing needs refreshing.
func (d Directives) Empty() bool { return !d.Rebuild && !d.Icon }

var (
	iconOnly   = Directives{Icon: true}
	rebuild    = Directives{Rebuild: true}
	rebuildAll = Directives{Rebuild: true, Icon: true}
)

// Reconciler applies worker messages to AppState. Every method must be called
// with the store's write lock held; none of them block or call out.
type Reconciler struct {
	Scheduler RebuildScheduler
}

// New returns a Reconciler with the default one-second rebuild window.
func New() *Reconciler {
	return &Reconciler{Scheduler: RebuildScheduler{Window: DefaultRebuildWindow}}
}

// Apply folds msg into s.
func (r *Reconciler) Apply(s *models.AppState, msg protocol.Message, now time.Time) Directives {
	switch m := msg.(type) {
	case *protocol.NowPlaying:
		return r.nowPlaying(s, m, now)
	case *protocol.ZoneList:
		return r.zoneList(s, m.Zones, now)
	case *protocol.Status:
		s.ConnectionStatus = StatusFor(m.State)
		return rebuild
	case *protocol.Error:
		s.ConnectionStatus = models.StatusError(m.Message)
		return rebuild
	}
	return Directives{}
}

// StatusFor maps a worker status keyword to a ConnectionStatus.
func StatusFor(keyword string) models.ConnectionStatus {
	switch keyword {
	case "discovering":
		return models.Discovering()
	case "connected":
		return models.Connected()
	case "disconnected":
		return models.Disconnected()
	case "not_authorized":
		return models.StatusError("not authorized")
	default:
		return models.StatusError("unknown status: " + keyword)
	}
}

func (r *Reconciler) nowPlaying(s *models.AppState, m *protocol.NowPlaying, now time.Time) Directives {
	if m.Disconnected() {
		d := iconOnly
		if s.IsSmartSwitched {
			s.IsSmartSwitched = false
			s.FollowedZoneIdleSince = nil
			d = rebuildAll
		}
		s.CurrentTrack = nil
		s.ActiveZoneID = ""
		return d
	}

	if z := s.Zone(m.ZoneID); z != nil {
		z.NowPlaying = m.Data.Clone()
		z.StateChangedAt = now
	}

	if !shouldDisplay(s, m.ZoneID, m.Data.State) {
		return Directives{}
	}
	s.CurrentTrack = m.Data.Clone()
	s.ActiveZoneID = m.ZoneID
	return iconOnly
}

// shouldDisplay decides whether an update for zoneID drives CurrentTrack.
func shouldDisplay(s *models.AppState, zoneID string, state models.PlaybackState) bool {
	if s.ZonePreference.IsAuto() {
		if s.ActiveZoneID == zoneID {
			return true
		}
		return s.ActiveZoneID == "" && state == models.StatePlaying
	}
	return zoneID == s.DisplayTargetID()
}

func (r *Reconciler) zoneList(s *models.AppState, incoming []models.Zone, now time.Time) Directives {
	old := s.AllZones
	pinnedWasActive := false
	if !s.ZonePreference.IsAuto() {
		if z := s.Zone(s.ZonePreference.ZoneID); z != nil {
			pinnedWasActive = z.State.Active()
		}
	}

	next := make([]models.Zone, len(incoming))
	for i, z := range incoming {
		z = z.Clone()
		if prev := s.Zone(z.ZoneID); prev != nil {
			z.StateChangedAt = prev.StateChangedAt
		} else {
			z.StateChangedAt = now
		}
		next[i] = z
	}

	changed := ZonesChanged(old, next)
	var d Directives

	if s.ActiveZoneID != "" {
		var active *models.Zone
		for i := range next {
			if next[i].ZoneID == s.ActiveZoneID {
				active = &next[i]
				break
			}
		}
		switch {
		case active == nil:
			s.ActiveZoneID = ""
			s.CurrentTrack = nil
			if s.IsSmartSwitched {
				s.IsSmartSwitched = false
				s.FollowedZoneIdleSince = nil
			}
			d = d.Merge(iconOnly)
		case s.CurrentTrack != nil && s.CurrentTrack.State != active.State:
			s.CurrentTrack.State = active.State
			d = d.Merge(iconOnly)
		}
	}

	s.AllZones = next

	if changed && r.Scheduler.TryRebuild(s, now) {
		d = d.Merge(rebuild)
	}

	if !s.ZonePreference.IsAuto() {
		pinned := s.Zone(s.ZonePreference.ZoneID)
		pinnedActive := pinned != nil && pinned.State.Active()
		switch {
		case pinnedActive:
			s.PreferredZoneStoppedAt = nil
		case pinnedWasActive:
			t := now
			s.PreferredZoneStoppedAt = &t
		}
	}

	return d.Merge(r.evaluateSmartSwitch(s, now))
}

// ZonesChanged reports whether two zone lists differ in length, membership,
// or the name or state of any shared zone.
func ZonesChanged(old, next []models.Zone) bool {
	if len(old) != len(next) {
		return true
	}
	byID := make(map[string]models.Zone, len(old))
	for _, z := range old {
		byID[z.ZoneID] = z
	}
	for _, z := range next {
		prev, ok := byID[z.ZoneID]
		if !ok {
			return true
		}
		if prev.DisplayName != z.DisplayName || prev.State != z.State {
			return true
		}
	}
	return false
}
