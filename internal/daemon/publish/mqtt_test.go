package publish

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/watchfire-io/nowplaying/internal/models"
)

type doneToken struct{ done chan struct{} }

func newDoneToken() *doneToken {
	t := &doneToken{done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return nil }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	sent         []published
	disconnected bool
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) pahomqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	f.sent = append(f.sent, published{topic: topic, retained: retained, payload: b})
	return newDoneToken()
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	f.disconnected = true
	f.mu.Unlock()
}

func (f *fakeClient) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.sent...)
}

func playingState() *models.AppState {
	s := models.NewAppState()
	s.ConnectionStatus = models.Connected()
	s.AllZones = []models.Zone{{ZoneID: "z1", DisplayName: "Kitchen", State: models.StatePlaying}}
	s.ActiveZoneID = "z1"
	s.CurrentTrack = &models.NowPlayingData{Title: "Song", Artist: "Band", Album: "Record", State: models.StatePlaying}
	return s
}

func TestPayload(t *testing.T) {
	tests := []struct {
		name  string
		state *models.AppState
		want  TrackPayload
	}{
		{
			name:  "empty",
			state: models.NewAppState(),
			want:  TrackPayload{Connection: "disconnected"},
		},
		{
			name:  "playing",
			state: playingState(),
			want: TrackPayload{
				ZoneID: "z1", ZoneName: "Kitchen", Title: "Song", Artist: "Band",
				Album: "Record", State: "playing", Connection: "connected",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Payload(tt.state))
		})
	}
}

func TestPublishSkipsUnchangedPayload(t *testing.T) {
	fc := &fakeClient{}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := newPublisher(fc, "home/nowplaying", zap.NewNop(), func() time.Time { return now })

	s := playingState()
	p.Publish(s)
	now = now.Add(time.Minute)
	p.Publish(s)

	sent := fc.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "home/nowplaying/state", sent[0].topic)
	assert.True(t, sent[0].retained)

	var got TrackPayload
	require.NoError(t, json.Unmarshal(sent[0].payload, &got))
	assert.Equal(t, "Song", got.Title)
	assert.Equal(t, "2026-01-02T03:04:05Z", got.UpdatedAt)

	s.CurrentTrack.Title = "Other"
	p.Publish(s)
	assert.Len(t, fc.messages(), 2)
}

func TestCloseSendsOfflineStatus(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, "np", zap.NewNop(), time.Now)
	p.Close()

	sent := fc.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "np/status", sent[0].topic)
	assert.Contains(t, string(sent[0].payload), `"status":"offline"`)
	assert.True(t, fc.disconnected)
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(models.MQTTConfig{Broker: "tcp://broker:1883", Topic: "np", Username: "u", Password: "p"})
	assert.Equal(t, "nowplayingd", opts.ClientID)
	assert.Equal(t, "u", opts.Username)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "np/status", opts.WillTopic)
	assert.True(t, opts.WillRetained)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "broker:1883", opts.Servers[0].Host)
	assert.True(t, opts.AutoReconnect)
	assert.False(t, opts.ConnectRetry)
}

type connectToken struct {
	done     chan struct{}
	finished bool
	err      error
}

func (t *connectToken) Wait() bool                     { return t.finished }
func (t *connectToken) WaitTimeout(time.Duration) bool { return t.finished }
func (t *connectToken) Done() <-chan struct{}          { return t.done }
func (t *connectToken) Error() error                   { return t.err }

type stubClient struct {
	pahomqtt.Client
	token        pahomqtt.Token
	disconnected atomic.Bool
}

func (c *stubClient) Connect() pahomqtt.Token { return c.token }
func (c *stubClient) Disconnect(uint)         { c.disconnected.Store(true) }

func TestConnectFailureDisconnectsClient(t *testing.T) {
	tests := []struct {
		name  string
		token *connectToken
	}{
		{"timeout", &connectToken{done: make(chan struct{})}},
		{"refused", &connectToken{done: make(chan struct{}), finished: true, err: errors.New("connection refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClient{token: tt.token}
			orig := newClient
			newClient = func(*pahomqtt.ClientOptions) pahomqtt.Client { return stub }
			defer func() { newClient = orig }()

			p, err := Connect(models.MQTTConfig{Broker: "tcp://127.0.0.1:1", Topic: "np"}, zap.NewNop())
			assert.ErrorIs(t, err, ErrConnectionFailed)
			assert.Nil(t, p)
			assert.True(t, stub.disconnected.Load(), "failed client must not keep dialing")
		})
	}
}

func TestConnectUnreachableBroker(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	start := time.Now()
	p, err := Connect(models.MQTTConfig{Broker: "tcp://" + addr, Topic: "np"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrConnectionFailed)
	assert.Nil(t, p)
	assert.Less(t, time.Since(start), 5*time.Second)
}
