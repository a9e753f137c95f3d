// Package state holds the daemon's single shared AppState behind a
// reader-writer lock.
package state

import (
	"sync"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// Store guards one models.AppState. Callbacks passed to Read and Update run
// with the lock held and must not block or call into presentation code.
type Store struct {
	mu    sync.RWMutex
	state *models.AppState
}

// New returns a store holding initial, or a fresh NewAppState when nil.
func New(initial *models.AppState) *Store {
	if initial == nil {
		initial = models.NewAppState()
	}
	return &Store{state: initial}
}

// Update runs fn with the write lock held.
func (s *Store) Update(fn func(*models.AppState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Read runs fn with the read lock held. fn must not modify the state.
func (s *Store) Read(fn func(*models.AppState)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *models.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}
