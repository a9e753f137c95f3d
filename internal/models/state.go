package models

import (
	"time"
)

// ConnectionKind enumerates the states of the link between worker and core.
type ConnectionKind string

const (
	ConnDisconnected ConnectionKind = "disconnected"
	ConnDiscovering  ConnectionKind = "discovering"
	ConnConnected    ConnectionKind = "connected"
	ConnError        ConnectionKind = "error"
)

// ConnectionStatus is the connection state shown in the menu.
type ConnectionStatus struct {
	Kind   ConnectionKind
	Reason string // only set for ConnError
}

func Disconnected() ConnectionStatus { return ConnectionStatus{Kind: ConnDisconnected} }
func Discovering() ConnectionStatus  { return ConnectionStatus{Kind: ConnDiscovering} }
func Connected() ConnectionStatus    { return ConnectionStatus{Kind: ConnConnected} }

// StatusError returns an error status carrying reason.
func StatusError(reason string) ConnectionStatus {
	return ConnectionStatus{Kind: ConnError, Reason: reason}
}

// String returns the human readable status line.
func (c ConnectionStatus) String() string {
	switch c.Kind {
	case ConnDiscovering:
		return "Discovering..."
	case ConnConnected:
		return "Connected"
	case ConnError:
		return "Error: " + c.Reason
	default:
		return "Disconnected"
	}
}

// PreferenceMode selects how the displayed zone is chosen.
type PreferenceMode string

const (
	PreferAuto     PreferenceMode = "auto"
	PreferSelected PreferenceMode = "selected"
)

// DefaultGracePeriodMinutes is the grace period applied to new selections.
const DefaultGracePeriodMinutes = 5

// ZonePreference is the user's zone choice.
type ZonePreference struct {
	Mode               PreferenceMode
	ZoneID             string // set when Mode is PreferSelected
	SmartSwitching     bool
	GracePeriodMinutes uint
}

// AutoPreference follows whichever zone starts playing.
func AutoPreference() ZonePreference {
	return ZonePreference{Mode: PreferAuto}
}

// SelectedPreference pins zoneID with smart switching enabled.
func SelectedPreference(zoneID string) ZonePreference {
	return ZonePreference{
		Mode:               PreferSelected,
		ZoneID:             zoneID,
		SmartSwitching:     true,
		GracePeriodMinutes: DefaultGracePeriodMinutes,
	}
}

// IsAuto reports whether p is the automatic preference.
func (p ZonePreference) IsAuto() bool { return p.Mode != PreferSelected }

// GracePeriod returns the grace period as a duration.
func (p ZonePreference) GracePeriod() time.Duration {
	return time.Duration(p.GracePeriodMinutes) * time.Minute
}

// AppState is the single shared record the reconciler mutates. Access it
// through state.Store; presenters only ever see clones.
type AppState struct {
	CurrentTrack     *NowPlayingData
	ConnectionStatus ConnectionStatus
	AllZones         []Zone
	ZonePreference   ZonePreference
	// ActiveZoneID is the zone whose data drives CurrentTrack ("" when none).
	// While IsSmartSwitched it is the zone being followed.
	ActiveZoneID string
	// PreferredZoneStoppedAt is when the pinned zone was last seen leaving
	// playback; nil while it plays or since the user picked it.
	PreferredZoneStoppedAt *time.Time
	IsSmartSwitched        bool
	// FollowedZoneIdleSince is when the zone followed by smart switching
	// stopped playing.
	FollowedZoneIdleSince *time.Time
	LastMenuRebuild       *time.Time
}

// NewAppState returns the initial state: automatic preference, no zones,
// disconnected.
func NewAppState() *AppState {
	return &AppState{
		ConnectionStatus: Disconnected(),
		AllZones:         []Zone{},
		ZonePreference:   AutoPreference(),
	}
}

// Clone returns a deep copy that shares no memory with s.
func (s *AppState) Clone() *AppState {
	c := *s
	c.CurrentTrack = s.CurrentTrack.Clone()
	c.AllZones = make([]Zone, len(s.AllZones))
	for i, z := range s.AllZones {
		c.AllZones[i] = z.Clone()
	}
	c.PreferredZoneStoppedAt = cloneTime(s.PreferredZoneStoppedAt)
	c.FollowedZoneIdleSince = cloneTime(s.FollowedZoneIdleSince)
	c.LastMenuRebuild = cloneTime(s.LastMenuRebuild)
	return &c
}

// Zone returns a pointer into AllZones for id, or nil.
func (s *AppState) Zone(id string) *Zone {
	if id == "" {
		return nil
	}
	for i := range s.AllZones {
		if s.AllZones[i].ZoneID == id {
			return &s.AllZones[i]
		}
	}
	return nil
}

// ActiveZone returns the zone driving CurrentTrack, or nil.
func (s *AppState) ActiveZone() *Zone {
	return s.Zone(s.ActiveZoneID)
}

// DisplayTargetID returns the zone whose updates should be displayed under a
// Selected preference: the followed zone while smart-switched, otherwise the
// pinned zone. It returns "" under the automatic preference.
func (s *AppState) DisplayTargetID() string {
	if s.ZonePreference.IsAuto() {
		return ""
	}
	if s.IsSmartSwitched && s.ActiveZoneID != "" {
		return s.ActiveZoneID
	}
	return s.ZonePreference.ZoneID
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
