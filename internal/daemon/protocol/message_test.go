package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchfire-io/nowplaying/internal/models"
)

func TestDecodeNowPlaying(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"now_playing","zone_id":"z1","title":"So What","artist":"Miles Davis","album":"Kind of Blue","state":"playing","artwork":"data:image/jpeg;base64,AA=="}`))
	require.NoError(t, err)

	np, ok := msg.(*NowPlaying)
	require.True(t, ok, "got %T", msg)
	assert.Equal(t, "z1", np.ZoneID)
	assert.Equal(t, "So What", np.Data.Title)
	assert.Equal(t, models.StatePlaying, np.Data.State)
	require.NotNil(t, np.Data.Artwork)
	assert.Equal(t, "data:image/jpeg;base64,AA==", *np.Data.Artwork)
	assert.False(t, np.Disconnected())
}

func TestDecodeDisconnectedSentinelIgnoresOtherFields(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"now_playing","zone_id":"__disconnected__","state":"bogus"}`))
	require.NoError(t, err)
	np := msg.(*NowPlaying)
	assert.True(t, np.Disconnected())
}

func TestDecodeZoneList(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"zone_list","zones":[
		{"zone_id":"a","display_name":"Kitchen","state":"playing","now_playing":{"title":"T","artist":"A","album":"B"}},
		{"zone_id":"b","display_name":"Den","state":"stopped"},
		{"zone_id":"a","display_name":"Dup","state":"paused"}]}`))
	require.NoError(t, err)

	zl := msg.(*ZoneList)
	require.Len(t, zl.Zones, 2)
	assert.Equal(t, "Kitchen", zl.Zones[0].DisplayName)
	require.NotNil(t, zl.Zones[0].NowPlaying)
	assert.Equal(t, models.StatePlaying, zl.Zones[0].NowPlaying.State)
	assert.Nil(t, zl.Zones[1].NowPlaying)
}

func TestDecodeStatusAndError(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"status","state":"connected","message":"core found"}`))
	require.NoError(t, err)
	assert.Equal(t, &Status{State: "connected", Message: "core found"}, msg)

	msg, err = Decode([]byte(`{"type":"error","message":"boom"}`))
	require.NoError(t, err)
	assert.Equal(t, &Error{Message: "boom"}, msg)
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		unknownType bool
	}{
		{"not json", `{"type":`, false},
		{"array", `[1,2]`, false},
		{"missing type", `{"zone_id":"a"}`, true},
		{"unknown type", `{"type":"volume","level":3}`, true},
		{"now_playing missing zone", `{"type":"now_playing","state":"playing"}`, false},
		{"now_playing bad state", `{"type":"now_playing","zone_id":"a","state":"buffering"}`, false},
		{"zone_list missing zones", `{"type":"zone_list"}`, false},
		{"zone_list bad state", `{"type":"zone_list","zones":[{"zone_id":"a","state":"idle"}]}`, false},
		{"zone_list missing id", `{"type":"zone_list","zones":[{"state":"playing"}]}`, false},
		{"status missing state", `{"type":"status"}`, false},
		{"error missing message", `{"type":"error"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.line))
			require.Error(t, err)
			assert.Nil(t, msg)
			if tt.unknownType {
				assert.ErrorIs(t, err, ErrUnknownType)
				assert.Equal(t, "unknown_type", DropReason(err))
				return
			}
			var de *DecodeError
			assert.True(t, errors.As(err, &de), "got %v", err)
			assert.Equal(t, "malformed", DropReason(err))
		})
	}
}

func TestDecodeEmptyZoneList(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"zone_list","zones":[]}`))
	require.NoError(t, err)
	assert.Empty(t, msg.(*ZoneList).Zones)
}
