// Package tui implements the live `nowplaying watch` view.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// Backend is the control service as seen by the TUI.
type Backend interface {
	GetState(ctx context.Context) (models.StatusView, error)
	SelectZone(ctx context.Context, id string) error
}

// Run launches the TUI against b and blocks until the user quits.
func Run(b Backend) error {
	p := tea.NewProgram(NewModel(b), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
