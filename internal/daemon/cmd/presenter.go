package cmd

import (
	"go.uber.org/zap"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// logPresenter stands in for the tray in foreground mode.
type logPresenter struct {
	logger *zap.Logger
}

func newLogPresenter(logger *zap.Logger) *logPresenter {
	return &logPresenter{logger: logger.Named("presenter")}
}

func (p *logPresenter) RenderSnapshot(s *models.AppState) {
	zones := make([]string, 0, len(s.AllZones))
	for _, z := range s.AllZones {
		zones = append(zones, z.Label())
	}
	p.logger.Info("menu",
		zap.String("status", s.ConnectionStatus.String()),
		zap.String("preference", string(s.ZonePreference.Mode)),
		zap.String("preferred_zone", s.ZonePreference.ZoneID),
		zap.Bool("smart_switched", s.IsSmartSwitched),
		zap.Strings("zones", zones))
}

func (p *logPresenter) UpdateIcon(s *models.AppState) {
	t := s.CurrentTrack
	if t == nil {
		p.logger.Info("now playing", zap.String("state", "none"))
		return
	}
	p.logger.Info("now playing",
		zap.String("zone_id", s.ActiveZoneID),
		zap.String("title", t.Title),
		zap.String("artist", t.Artist),
		zap.String("album", t.Album),
		zap.String("state", string(t.State)))
}
