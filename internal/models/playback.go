// Package models holds the data types shared by the daemon, the CLI and the TUI.
package models

import (
	"fmt"
	"time"
)

// PlaybackState is the transport state of a zone.
type PlaybackState string

const (
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateStopped PlaybackState = "stopped"
	StateLoading PlaybackState = "loading"
)

// Valid reports whether s is one of the known playback states.
func (s PlaybackState) Valid() bool {
	switch s {
	case StatePlaying, StatePaused, StateStopped, StateLoading:
		return true
	}
	return false
}

// Active reports whether the zone is producing or about to produce sound.
func (s PlaybackState) Active() bool {
	return s == StatePlaying || s == StateLoading
}

// Label returns the capitalized name used in menus ("Playing", "Paused", ...).
func (s PlaybackState) Label() string {
	switch s {
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateStopped:
		return "Stopped"
	case StateLoading:
		return "Loading"
	}
	return string(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s PlaybackState) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid playback state %q", string(s))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown values are rejected.
func (s *PlaybackState) UnmarshalText(text []byte) error {
	v := PlaybackState(text)
	if !v.Valid() {
		return fmt.Errorf("invalid playback state %q", string(text))
	}
	*s = v
	return nil
}

// NowPlayingData describes the track currently loaded on a zone.
type NowPlayingData struct {
	Title  string        `json:"title"`
	Artist string        `json:"artist"`
	Album  string        `json:"album"`
	State  PlaybackState `json:"state"`
	// Artwork is a data URL ("data:image/jpeg;base64,...") when the worker has one.
	Artwork *string `json:"artwork,omitempty"`
}

// Clone returns a deep copy of d. A nil receiver yields nil.
func (d *NowPlayingData) Clone() *NowPlayingData {
	if d == nil {
		return nil
	}
	c := *d
	if d.Artwork != nil {
		a := *d.Artwork
		c.Artwork = &a
	}
	return &c
}

// Zone is a playback endpoint reported by the worker.
type Zone struct {
	ZoneID      string          `json:"zone_id"`
	DisplayName string          `json:"display_name"`
	State       PlaybackState   `json:"state"`
	NowPlaying  *NowPlayingData `json:"now_playing,omitempty"`
	// StateChangedAt is the local time the zone last changed state. Only
	// differences between two readings are meaningful.
	StateChangedAt time.Time `json:"-"`
}

// Clone returns a deep copy of z.
func (z Zone) Clone() Zone {
	z.NowPlaying = z.NowPlaying.Clone()
	return z
}

// Label returns the menu label for the zone, e.g. "Kitchen (Playing)".
func (z Zone) Label() string {
	return fmt.Sprintf("%s (%s)", z.DisplayName, z.State.Label())
}
