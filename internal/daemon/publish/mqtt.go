// Package publish mirrors the displayed track to an MQTT broker.
package publish

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/watchfire-io/nowplaying/internal/models"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 500 // milliseconds
	keepAlive         = 60 * time.Second
	qos               = 1
)

// ErrConnectionFailed is returned when the broker cannot be reached.
var ErrConnectionFailed = errors.New("mqtt connection failed")

var newClient = pahomqtt.NewClient

// client is the subset of pahomqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// TrackPayload is the retained document published on <topic>/state.
type TrackPayload struct {
	ZoneID     string `json:"zone_id"`
	ZoneName   string `json:"zone_name"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	State      string `json:"state"`
	Connection string `json:"connection"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// MQTTPublisher publishes the displayed track whenever it changes.
type MQTTPublisher struct {
	client client
	topic  string
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	last []byte
}

// Connect dials the broker configured in cfg and returns a publisher. The
// broker publishes an offline status on <topic>/status if the daemon dies.
func Connect(cfg models.MQTTConfig, logger *zap.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mqtt")
	opts := clientOptions(cfg)

	p := &MQTTPublisher{topic: cfg.Topic, logger: logger, now: time.Now}
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		logger.Info("connected to broker", zap.String("broker", cfg.Broker))
		c.Publish(p.statusTopic(), qos, true, statusPayload("online", time.Now()))
		p.republish(c)
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("broker connection lost", zap.Error(err))
	})

	c := newClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		c.Disconnect(0)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	p.client = c
	return p, nil
}

func newPublisher(c client, topic string, logger *zap.Logger, now func() time.Time) *MQTTPublisher {
	return &MQTTPublisher{client: c, topic: topic, logger: logger, now: now}
}

func clientOptions(cfg models.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "nowplayingd"
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	// Reconnects only after a first successful connect; a broker that is
	// down at startup disables publishing.
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)
	opts.SetWill(cfg.Topic+"/status", statusPayload("offline", time.Now()), qos, true)
	return opts
}

func (p *MQTTPublisher) stateTopic() string  { return p.topic + "/state" }
func (p *MQTTPublisher) statusTopic() string { return p.topic + "/status" }

// Publish sends the state payload if it differs from the last one sent.
// It never blocks on the broker.
func (p *MQTTPublisher) Publish(s *models.AppState) {
	body, err := json.Marshal(Payload(s))
	if err != nil {
		p.logger.Error("failed to encode payload", zap.Error(err))
		return
	}
	p.mu.Lock()
	if bytes.Equal(body, p.last) {
		p.mu.Unlock()
		return
	}
	p.last = body
	p.mu.Unlock()

	stamped, err := json.Marshal(withTime(Payload(s), p.now()))
	if err != nil {
		p.logger.Error("failed to encode payload", zap.Error(err))
		return
	}
	p.send(p.client, stamped)
}

// republish resends the last payload after a reconnect.
func (p *MQTTPublisher) republish(c client) {
	p.mu.Lock()
	last := p.last
	p.mu.Unlock()
	if last == nil {
		return
	}
	p.send(c, last)
}

func (p *MQTTPublisher) send(c client, body []byte) {
	if c == nil {
		return
	}
	token := c.Publish(p.stateTopic(), qos, true, body)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.logger.Warn("publish timed out", zap.String("topic", p.stateTopic()))
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Warn("publish failed", zap.String("topic", p.stateTopic()), zap.Error(err))
		}
	}()
}

// Close publishes a graceful offline status and disconnects.
func (p *MQTTPublisher) Close() {
	if p.client == nil {
		return
	}
	token := p.client.Publish(p.statusTopic(), qos, true, statusPayload("offline", p.now()))
	token.WaitTimeout(publishTimeout)
	p.client.Disconnect(disconnectQuiesce)
}

// Payload builds the state document for s, without a timestamp.
func Payload(s *models.AppState) TrackPayload {
	out := TrackPayload{Connection: string(s.ConnectionStatus.Kind)}
	if z := s.Zone(s.ActiveZoneID); z != nil {
		out.ZoneID = z.ZoneID
		out.ZoneName = z.DisplayName
	} else {
		out.ZoneID = s.ActiveZoneID
	}
	if t := s.CurrentTrack; t != nil {
		out.Title = t.Title
		out.Artist = t.Artist
		out.Album = t.Album
		out.State = string(t.State)
	}
	return out
}

func withTime(p TrackPayload, now time.Time) TrackPayload {
	p.UpdatedAt = now.UTC().Format(time.RFC3339)
	return p
}

func statusPayload(status string, now time.Time) string {
	return fmt.Sprintf(`{"status":%q,"timestamp":%q}`, status, now.UTC().Format(time.RFC3339))
}
