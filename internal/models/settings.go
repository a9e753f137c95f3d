package models

import "time"

// WorkerConfig describes how to launch the worker process.
type WorkerConfig struct {
	Path   string   `yaml:"path"`   // empty = lookup next to the daemon, then in PATH
	Script string   `yaml:"script"` // development mode: run Script with Node
	Node   string   `yaml:"node"`
	Args   []string `yaml:"args,omitempty"`
}

// RestartConfig holds the crash-restart backoff policy.
type RestartConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Multiplier   float64       `yaml:"multiplier"`
}

// ShutdownConfig bounds how long stopping the worker may take.
type ShutdownConfig struct {
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
	JoinTimeout     time.Duration `yaml:"join_timeout"`
}

// ZonesConfig holds the persisted zone preference.
type ZonesConfig struct {
	Preferred          string `yaml:"preferred"` // empty = automatic
	SmartSwitching     bool   `yaml:"smart_switching"`
	GracePeriodMinutes uint   `yaml:"grace_period_minutes"`
}

// Preference converts the persisted settings into a ZonePreference.
func (z ZonesConfig) Preference() ZonePreference {
	if z.Preferred == "" {
		return AutoPreference()
	}
	p := SelectedPreference(z.Preferred)
	p.SmartSwitching = z.SmartSwitching
	if z.GracePeriodMinutes > 0 {
		p.GracePeriodMinutes = z.GracePeriodMinutes
	}
	return p
}

// MQTTConfig configures the optional now-playing publisher.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug | info | warn | error
	Development bool   `yaml:"development"`
}

// Settings represents global application settings.
// This corresponds to ~/.nowplaying/settings.yaml.
type Settings struct {
	Version  int            `yaml:"version"`
	Worker   WorkerConfig   `yaml:"worker"`
	Restart  RestartConfig  `yaml:"restart"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
	Zones    ZonesConfig    `yaml:"zones"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Worker: WorkerConfig{
			Node: "node",
		},
		Restart: RestartConfig{
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		},
		Shutdown: ShutdownConfig{
			GracefulTimeout: 5 * time.Second,
			JoinTimeout:     2 * time.Second,
		},
		Zones: ZonesConfig{
			SmartSwitching:     true,
			GracePeriodMinutes: DefaultGracePeriodMinutes,
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
			Topic:  "nowplaying",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills zero values left by a partial settings file.
func (s *Settings) ApplyDefaults() {
	d := NewSettings()
	if s.Version == 0 {
		s.Version = d.Version
	}
	if s.Worker.Node == "" {
		s.Worker.Node = d.Worker.Node
	}
	if s.Restart.InitialDelay <= 0 {
		s.Restart.InitialDelay = d.Restart.InitialDelay
	}
	if s.Restart.MaxDelay <= 0 {
		s.Restart.MaxDelay = d.Restart.MaxDelay
	}
	if s.Restart.Multiplier < 1 {
		s.Restart.Multiplier = d.Restart.Multiplier
	}
	if s.Shutdown.GracefulTimeout <= 0 {
		s.Shutdown.GracefulTimeout = d.Shutdown.GracefulTimeout
	}
	if s.Shutdown.JoinTimeout <= 0 {
		s.Shutdown.JoinTimeout = d.Shutdown.JoinTimeout
	}
	if s.Zones.GracePeriodMinutes == 0 {
		s.Zones.GracePeriodMinutes = d.Zones.GracePeriodMinutes
	}
	if s.MQTT.Broker == "" {
		s.MQTT.Broker = d.MQTT.Broker
	}
	if s.MQTT.Topic == "" {
		s.MQTT.Topic = d.MQTT.Topic
	}
	if s.Logging.Level == "" {
		s.Logging.Level = d.Logging.Level
	}
}
