// Package protocol decodes the newline-delimited JSON stream the worker
// writes to its standard output.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// Message type discriminators.
const (
	TypeNowPlaying = "now_playing"
	TypeZoneList   = "zone_list"
	TypeStatus     = "status"
	TypeError      = "error"
)

// DisconnectedZoneID is the reserved zone id the worker sends when it lost
// its connection to the core. No other field of such a message is meaningful.
const DisconnectedZoneID = "__disconnected__"

// ErrUnknownType is returned by Decode when the discriminator is missing or
// not one of the known message types.
var ErrUnknownType = errors.New("unknown message type")

// DecodeError reports a line that is not a valid message of its declared type.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("malformed message: %v", e.Err)
	}
	return fmt.Sprintf("malformed %s message: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Message is one decoded worker message: *NowPlaying, *ZoneList, *Status or
// *Error.
type Message interface {
	Type() string
	message()
}

// NowPlaying reports the track on one zone.
type NowPlaying struct {
	ZoneID string
	Data   models.NowPlayingData
}

// Disconnected reports whether this is the reserved disconnect sentinel.
func (m *NowPlaying) Disconnected() bool { return m.ZoneID == DisconnectedZoneID }

// ZoneList is the full list of zones known to the worker.
type ZoneList struct {
	Zones []models.Zone
}

// Status carries a connection status keyword.
type Status struct {
	State   string
	Message string
}

// Error carries a worker-side error description.
type Error struct {
	Message string
}

func (*NowPlaying) Type() string { return TypeNowPlaying }
func (*ZoneList) Type() string   { return TypeZoneList }
func (*Status) Type() string     { return TypeStatus }
func (*Error) Type() string      { return TypeError }

func (*NowPlaying) message() {}
func (*ZoneList) message()   {}
func (*Status) message()     {}
func (*Error) message()      {}

type envelope struct {
	Type string `json:"type"`
}

type wireNowPlaying struct {
	ZoneID  *string `json:"zone_id"`
	Title   string  `json:"title"`
	Artist  string  `json:"artist"`
	Album   string  `json:"album"`
	State   string  `json:"state"`
	Artwork *string `json:"artwork"`
}

type wireTrack struct {
	Title   string  `json:"title"`
	Artist  string  `json:"artist"`
	Album   string  `json:"album"`
	Artwork *string `json:"artwork"`
}

type wireZone struct {
	ZoneID      string     `json:"zone_id"`
	DisplayName string     `json:"display_name"`
	State       string     `json:"state"`
	NowPlaying  *wireTrack `json:"now_playing"`
}

type wireZoneList struct {
	Zones *[]wireZone `json:"zones"`
}

type wireStatus struct {
	State   *string `json:"state"`
	Message *string `json:"message"`
}

type wireError struct {
	Message *string `json:"message"`
}

// Decode parses one line into a Message. Unknown discriminators yield an
// error wrapping ErrUnknownType; everything else that cannot be decoded
// yields a *DecodeError.
func Decode(line []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, &DecodeError{Err: err}
	}

	switch env.Type {
	case TypeNowPlaying:
		return decodeNowPlaying(line)
	case TypeZoneList:
		return decodeZoneList(line)
	case TypeStatus:
		return decodeStatus(line)
	case TypeError:
		return decodeError(line)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnknownType)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}
}

func decodeNowPlaying(line []byte) (Message, error) {
	var w wireNowPlaying
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, &DecodeError{Type: TypeNowPlaying, Err: err}
	}
	if w.ZoneID == nil || *w.ZoneID == "" {
		return nil, &DecodeError{Type: TypeNowPlaying, Err: errors.New("missing zone_id")}
	}
	if *w.ZoneID == DisconnectedZoneID {
		return &NowPlaying{ZoneID: DisconnectedZoneID}, nil
	}
	state, err := parseState(w.State)
	if err != nil {
		return nil, &DecodeError{Type: TypeNowPlaying, Err: err}
	}
	return &NowPlaying{
		ZoneID: *w.ZoneID,
		Data: models.NowPlayingData{
			Title:   w.Title,
			Artist:  w.Artist,
			Album:   w.Album,
			State:   state,
			Artwork: w.Artwork,
		},
	}, nil
}

func decodeZoneList(line []byte) (Message, error) {
	var w wireZoneList
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, &DecodeError{Type: TypeZoneList, Err: err}
	}
	if w.Zones == nil {
		return nil, &DecodeError{Type: TypeZoneList, Err: errors.New("missing zones")}
	}

	zones := make([]models.Zone, 0, len(*w.Zones))
	seen := make(map[string]struct{}, len(*w.Zones))
	for i, wz := range *w.Zones {
		if wz.ZoneID == "" {
			return nil, &DecodeError{Type: TypeZoneList, Err: fmt.Errorf("zone %d: missing zone_id", i)}
		}
		// Zone ids are unique; later duplicates are ignored.
		if _, dup := seen[wz.ZoneID]; dup {
			continue
		}
		seen[wz.ZoneID] = struct{}{}

		state, err := parseState(wz.State)
		if err != nil {
			return nil, &DecodeError{Type: TypeZoneList, Err: fmt.Errorf("zone %q: %w", wz.ZoneID, err)}
		}
		z := models.Zone{
			ZoneID:      wz.ZoneID,
			DisplayName: wz.DisplayName,
			State:       state,
		}
		if wz.NowPlaying != nil {
			z.NowPlaying = &models.NowPlayingData{
				Title:   wz.NowPlaying.Title,
				Artist:  wz.NowPlaying.Artist,
				Album:   wz.NowPlaying.Album,
				State:   state,
				Artwork: wz.NowPlaying.Artwork,
			}
		}
		zones = append(zones, z)
	}
	return &ZoneList{Zones: zones}, nil
}

func decodeStatus(line []byte) (Message, error) {
	var w wireStatus
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, &DecodeError{Type: TypeStatus, Err: err}
	}
	if w.State == nil {
		return nil, &DecodeError{Type: TypeStatus, Err: errors.New("missing state")}
	}
	m := &Status{State: *w.State}
	if w.Message != nil {
		m.Message = *w.Message
	}
	return m, nil
}

func decodeError(line []byte) (Message, error) {
	var w wireError
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, &DecodeError{Type: TypeError, Err: err}
	}
	if w.Message == nil {
		return nil, &DecodeError{Type: TypeError, Err: errors.New("missing message")}
	}
	return &Error{Message: *w.Message}, nil
}

func parseState(s string) (models.PlaybackState, error) {
	var st models.PlaybackState
	if err := st.UnmarshalText([]byte(s)); err != nil {
		return "", err
	}
	return st, nil
}
