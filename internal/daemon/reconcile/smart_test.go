package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/watchfire-io/nowplaying/internal/daemon/protocol"
	"github.com/watchfire-io/nowplaying/internal/models"
)

// pinnedSetup returns state pinned to "home" while it plays and "away" is stopped.
func pinnedSetup(t *testing.T) (*Reconciler, *models.AppState) {
	t.Helper()
	r := New()
	s := models.NewAppState()
	s.AllZones = []models.Zone{playingZone("home", "home-song"), zone("away", "away", models.StateStopped)}
	require.NoError(t, SelectZone(s, "home", t0))
	return r, s
}

func withTrack(z models.Zone, title string) models.Zone {
	z.NowPlaying = &models.NowPlayingData{Title: title, State: z.State}
	return z
}

func list(zones ...models.Zone) *protocol.ZoneList {
	return &protocol.ZoneList{Zones: zones}
}

func TestSmartSwitchFollowsPlayingZone(t *testing.T) {
	r, s := pinnedSetup(t)

	d := r.Apply(s, list(zone("home", "home", models.StateStopped), playingZone("away", "away-song")), t0.Add(time.Second))
	assert.True(t, d.Rebuild)
	assert.True(t, d.Icon)
	assert.True(t, s.IsSmartSwitched)
	assert.Equal(t, "away", s.ActiveZoneID)
	assert.Equal(t, "away-song", s.CurrentTrack.Title)
	require.NotNil(t, s.PreferredZoneStoppedAt)

	// Updates for the followed zone are displayed, the pinned zone's are cached.
	d = r.Apply(s, nowPlaying("away", models.StatePlaying), t0.Add(2*time.Second))
	assert.True(t, d.Icon)
	assert.Equal(t, "track-away", s.CurrentTrack.Title)
	d = r.Apply(s, nowPlaying("home", models.StateStopped), t0.Add(2*time.Second))
	assert.True(t, d.Empty())
}

func TestSmartSwitchRevertsWhenPinnedPlays(t *testing.T) {
	r, s := pinnedSetup(t)
	r.Apply(s, list(zone("home", "home", models.StateStopped), playingZone("away", "away-song")), t0.Add(time.Second))
	require.True(t, s.IsSmartSwitched)

	d := r.Apply(s, list(playingZone("home", "home-song"), playingZone("away", "away-song")), t0.Add(3*time.Second))
	assert.True(t, d.Rebuild)
	assert.False(t, s.IsSmartSwitched)
	assert.Equal(t, "home", s.ActiveZoneID)
	assert.Equal(t, "home-song", s.CurrentTrack.Title)
	assert.Nil(t, s.PreferredZoneStoppedAt)
}

func TestSmartSwitchRevertsAfterGracePeriod(t *testing.T) {
	r, s := pinnedSetup(t)
	r.Apply(s, list(zone("home", "home", models.StateStopped), playingZone("away", "away-song")), t0.Add(time.Second))
	require.True(t, s.IsSmartSwitched)

	idle := t0.Add(10 * time.Second)
	r.Apply(s, list(withTrack(zone("home", "home", models.StateStopped), "home-song"), zone("away", "away", models.StatePaused)), idle)
	require.NotNil(t, s.FollowedZoneIdleSince)
	assert.True(t, s.IsSmartSwitched)

	d := r.Tick(s, idle.Add(4*time.Minute))
	assert.True(t, d.Empty())
	assert.True(t, s.IsSmartSwitched)

	d = r.Tick(s, idle.Add(5*time.Minute))
	assert.True(t, d.Rebuild)
	assert.False(t, s.IsSmartSwitched)
	assert.Equal(t, "home", s.ActiveZoneID)
	assert.Equal(t, models.StateStopped, s.CurrentTrack.State)
}

func TestSmartSwitchIdleResetsWhenFollowedResumes(t *testing.T) {
	r, s := pinnedSetup(t)
	r.Apply(s, list(zone("home", "home", models.StateStopped), playingZone("away", "away-song")), t0.Add(time.Second))
	r.Apply(s, list(zone("home", "home", models.StateStopped), zone("away", "away", models.StatePaused)), t0.Add(2*time.Second))
	require.NotNil(t, s.FollowedZoneIdleSince)

	r.Apply(s, list(zone("home", "home", models.StateStopped), playingZone("away", "away-song")), t0.Add(3*time.Second))
	assert.Nil(t, s.FollowedZoneIdleSince)
	r.Tick(s, t0.Add(time.Hour))
	assert.True(t, s.IsSmartSwitched)
}

func TestSmartSwitchNotEnteredForFreshSelection(t *testing.T) {
	r := New()
	s := models.NewAppState()
	s.AllZones = []models.Zone{zone("home", "home", models.StateStopped), playingZone("away", "away-song")}
	require.NoError(t, SelectZone(s, "home", t0))

	r.Apply(s, list(zone("home", "home", models.StateStopped), playingZone("away", "away-song")), t0.Add(time.Second))
	assert.False(t, s.IsSmartSwitched)
	assert.Empty(t, s.ActiveZoneID)
}

func TestSmartSwitchDisabled(t *testing.T) {
	r, s := pinnedSetup(t)
	s.ZonePreference.SmartSwitching = false

	r.Apply(s, list(zone("home", "home", models.StateStopped), playingZone("away", "away-song")), t0.Add(time.Second))
	assert.False(t, s.IsSmartSwitched)
	assert.Equal(t, "home", s.ActiveZoneID)
}

func TestDisconnectedSentinelEndsSmartSwitch(t *testing.T) {
	r, s := pinnedSetup(t)
	r.Apply(s, list(zone("home", "home", models.StateStopped), playingZone("away", "away-song")), t0.Add(time.Second))
	require.True(t, s.IsSmartSwitched)

	d := r.Apply(s, &protocol.NowPlaying{ZoneID: protocol.DisconnectedZoneID}, t0.Add(2*time.Second))
	assert.True(t, d.Rebuild)
	assert.False(t, s.IsSmartSwitched)
	assert.Empty(t, s.ActiveZoneID)
}
