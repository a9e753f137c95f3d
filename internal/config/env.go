package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env holds the settings read from the process environment.
type Env struct {
	// RoonHost and RoonPort are passed through to the worker unchanged.
	RoonHost string `envconfig:"ROON_HOST"`
	RoonPort string `envconfig:"ROON_PORT"`

	WorkerPath string `envconfig:"NOWPLAYING_WORKER"`
	LogLevel   string `envconfig:"NOWPLAYING_LOG_LEVEL"`
	LogDev     bool   `envconfig:"NOWPLAYING_LOG_DEV" default:"false"`
}

// LoadEnv loads configuration from environment variables.
func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	return &env, nil
}

// WorkerEnv returns the KEY=value pairs forwarded to the worker process.
// Unset variables are omitted so the worker applies its own defaults.
func (e *Env) WorkerEnv() []string {
	var out []string
	if e.RoonHost != "" {
		out = append(out, "ROON_HOST="+e.RoonHost)
	}
	if e.RoonPort != "" {
		out = append(out, "ROON_PORT="+e.RoonPort)
	}
	return out
}
