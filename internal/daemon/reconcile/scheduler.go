package reconcile

import (
	"time"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// DefaultRebuildWindow is the minimum spacing between zone-driven menu rebuilds.
const DefaultRebuildWindow = time.Second

// RebuildScheduler debounces menu rebuilds caused by zone list changes.
type RebuildScheduler struct {
	Window time.Duration
}

// TryRebuild reports whether a rebuild may happen at now and, if so, records
// now as the last rebuild time. The caller must hold the store write lock so
// the decision and the stamp are one step.
func (r RebuildScheduler) TryRebuild(s *models.AppState, now time.Time) bool {
	if s.LastMenuRebuild != nil && now.Sub(*s.LastMenuRebuild) < r.Window {
		return false
	}
	MarkRebuilt(s, now)
	return true
}

// MarkRebuilt records a rebuild that happened outside the scheduler.
func MarkRebuilt(s *models.AppState, now time.Time) {
	t := now
	s.LastMenuRebuild = &t
}
