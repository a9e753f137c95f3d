package tui

import "github.com/watchfire-io/nowplaying/internal/models"

// StateMsg carries a fresh state from GetState.
type StateMsg struct {
	View models.StatusView
	poll bool // part of the polling loop
}

// ErrorMsg carries an error to display.
type ErrorMsg struct {
	Err  error
	poll bool
}

// SelectedMsg signals a zone selection went through. Empty ZoneID means
// automatic.
type SelectedMsg struct {
	ZoneID string
}

// pollMsg triggers the next GetState.
type pollMsg struct{}
