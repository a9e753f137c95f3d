package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/watchfire-io/nowplaying/internal/daemon/reconcile"
	"github.com/watchfire-io/nowplaying/internal/models"
)

type fakeController struct {
	mu       sync.Mutex
	state    *models.AppState
	selected []string
}

func (f *fakeController) Snapshot() *models.AppState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

func (f *fakeController) SelectZone(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Zone(id) == nil {
		return fmt.Errorf("failed to select zone %q: %w", id, reconcile.ErrUnknownZone)
	}
	f.selected = append(f.selected, id)
	return nil
}

func (f *fakeController) SelectAuto() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append(f.selected, "auto")
}

func (f *fakeController) Diagnostics() []string { return []string{"warn: slow core"} }

type fakeWorker struct{}

func (fakeWorker) IsRunning() bool    { return true }
func (fakeWorker) RestartCount() uint { return 2 }
func (fakeWorker) PID() int           { return 4242 }

func startServer(t *testing.T, shutdown func()) (*Client, *fakeController) {
	t.Helper()
	s := models.NewAppState()
	s.ConnectionStatus = models.Connected()
	s.AllZones = []models.Zone{
		{ZoneID: "z1", DisplayName: "Kitchen", State: models.StatePlaying,
			NowPlaying: &models.NowPlayingData{Title: "Song", Artist: "Band", State: models.StatePlaying}},
		{ZoneID: "z2", DisplayName: "Office", State: models.StateStopped},
	}
	s.ActiveZoneID = "z1"
	s.CurrentTrack = &models.NowPlayingData{Title: "Song", Artist: "Band", State: models.StatePlaying}
	ctrl := &fakeController{state: s}

	lis := bufconn.Listen(1 << 20)
	srv := NewWithListener(lis, Options{Controller: ctrl, Worker: fakeWorker{}, Shutdown: shutdown})
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)

	client, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, ctrl
}

func TestGetState(t *testing.T) {
	client, _ := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v, err := client.GetState(ctx)
	require.NoError(t, err)

	assert.Equal(t, models.ConnConnected, v.Connection)
	assert.Equal(t, models.PreferAuto, v.Preference)
	assert.Equal(t, "z1", v.ActiveZoneID)
	require.NotNil(t, v.Track)
	assert.Equal(t, "Song", v.Track.Title)
	require.Len(t, v.Zones, 2)
	assert.Equal(t, "Kitchen", v.Zones[0].DisplayName)
	assert.True(t, v.Zones[0].Active)
	assert.True(t, v.WorkerRunning)
	assert.Equal(t, uint(2), v.WorkerRestarts)
	assert.Equal(t, 4242, v.WorkerPID)
	assert.Equal(t, []string{"warn: slow core"}, v.Diagnostics)
}

func TestSelectZone(t *testing.T) {
	client, ctrl := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.SelectZone(ctx, "z2"))
	require.NoError(t, client.SelectZone(ctx, ""))

	err := client.SelectZone(ctx, "missing")
	assert.True(t, errors.Is(err, ErrZoneNotFound))

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	assert.Equal(t, []string{"z2", "auto"}, ctrl.selected)
}

func TestShutdown(t *testing.T) {
	called := make(chan struct{})
	client, _ := startServer(t, func() { close(called) })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Shutdown(ctx))
	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown callback not called")
	}
}

func TestViewStructRoundTrip(t *testing.T) {
	v := models.StatusView{
		Connection:         models.ConnError,
		ConnectionReason:   "worker exited",
		Preference:         models.PreferSelected,
		PreferredZoneID:    "z2",
		SmartSwitching:     true,
		GracePeriodMinutes: 5,
		Zones:              []models.ZoneView{{ZoneID: "z2", DisplayName: "Office", State: models.StateStopped, Selected: true}},
		WorkerRestarts:     7,
	}
	s, err := ViewToStruct(v)
	require.NoError(t, err)
	assert.Equal(t, "error", s.GetFields()["connection"].GetStringValue())

	back, err := StructToView(s)
	require.NoError(t, err)
	assert.Equal(t, v, back)
}
