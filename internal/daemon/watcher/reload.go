package watcher

import (
	"context"

	"go.uber.org/zap"

	"github.com/watchfire-io/nowplaying/internal/config"
	"github.com/watchfire-io/nowplaying/internal/models"
)

// SettingsTarget receives reloaded settings.
type SettingsTarget interface {
	ApplyPreference(p models.ZonePreference)
}

// LevelSetter changes the log level at runtime.
type LevelSetter interface {
	SetLevel(level string) error
}

// Reload applies settings file changes to target until ctx is done.
// Invalid files are logged and ignored so a half-saved edit never resets
// the running configuration.
func Reload(ctx context.Context, w *Watcher, target SettingsTarget, levels LevelSetter, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-w.Events():
			if e.Type == EventRemoved {
				logger.Info("settings file removed, keeping current settings", zap.String("path", e.Path))
				continue
			}
			s, err := config.LoadSettingsFile(e.Path)
			if err != nil {
				logger.Warn("ignoring invalid settings file", zap.String("path", e.Path), zap.Error(err))
				continue
			}
			logger.Info("settings reloaded", zap.String("path", e.Path))
			target.ApplyPreference(s.Zones.Preference())
			if levels != nil {
				if err := levels.SetLevel(s.Logging.Level); err != nil {
					logger.Warn("invalid log level", zap.String("level", s.Logging.Level), zap.Error(err))
				}
			}
		}
	}
}
