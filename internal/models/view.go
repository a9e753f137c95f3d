package models

// ZoneView is the JSON shape of a zone in a StatusView.
type ZoneView struct {
	ZoneID      string        `json:"zone_id"`
	DisplayName string        `json:"display_name"`
	State       PlaybackState `json:"state"`
	Title       string        `json:"title,omitempty"`
	Artist      string        `json:"artist,omitempty"`
	Active      bool          `json:"active"`
	Selected    bool          `json:"selected"`
}

// TrackView is the JSON shape of the displayed track. Artwork is reduced to a
// flag to keep control responses small.
type TrackView struct {
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	Album      string        `json:"album"`
	State      PlaybackState `json:"state"`
	HasArtwork bool          `json:"has_artwork"`
}

// StatusView is the read-only view of AppState served by the control service
// and rendered by the CLI and TUI.
type StatusView struct {
	Connection         ConnectionKind `json:"connection"`
	ConnectionReason   string         `json:"connection_reason,omitempty"`
	Preference         PreferenceMode `json:"preference"`
	PreferredZoneID    string         `json:"preferred_zone_id,omitempty"`
	SmartSwitching     bool           `json:"smart_switching"`
	GracePeriodMinutes uint           `json:"grace_period_minutes"`
	ActiveZoneID       string         `json:"active_zone_id,omitempty"`
	SmartSwitched      bool           `json:"smart_switched"`
	Track              *TrackView     `json:"track,omitempty"`
	Zones              []ZoneView     `json:"zones"`
	WorkerRunning      bool           `json:"worker_running"`
	WorkerRestarts     uint           `json:"worker_restarts"`
	WorkerPID          int            `json:"worker_pid,omitempty"`
	Diagnostics        []string       `json:"diagnostics,omitempty"`
}

// NewStatusView builds the view for s.
func NewStatusView(s *AppState) StatusView {
	v := StatusView{
		Connection:         s.ConnectionStatus.Kind,
		ConnectionReason:   s.ConnectionStatus.Reason,
		Preference:         s.ZonePreference.Mode,
		PreferredZoneID:    s.ZonePreference.ZoneID,
		SmartSwitching:     s.ZonePreference.SmartSwitching,
		GracePeriodMinutes: s.ZonePreference.GracePeriodMinutes,
		ActiveZoneID:       s.ActiveZoneID,
		SmartSwitched:      s.IsSmartSwitched,
		Zones:              make([]ZoneView, 0, len(s.AllZones)),
	}
	if v.Preference == "" {
		v.Preference = PreferAuto
	}
	if t := s.CurrentTrack; t != nil {
		v.Track = &TrackView{
			Title:      t.Title,
			Artist:     t.Artist,
			Album:      t.Album,
			State:      t.State,
			HasArtwork: t.Artwork != nil,
		}
	}
	for _, z := range s.AllZones {
		zv := ZoneView{
			ZoneID:      z.ZoneID,
			DisplayName: z.DisplayName,
			State:       z.State,
			Active:      z.ZoneID == s.ActiveZoneID,
			Selected:    !s.ZonePreference.IsAuto() && z.ZoneID == s.ZonePreference.ZoneID,
		}
		if z.NowPlaying != nil {
			zv.Title = z.NowPlaying.Title
			zv.Artist = z.NowPlaying.Artist
		}
		v.Zones = append(v.Zones, zv)
	}
	return v
}
