package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	pollInterval = time.Second
	rpcTimeout   = 3 * time.Second
)

// fetchStateCmd reads the state once. When poll is set the result
// schedules the next poll, so exactly one polling loop exists.
func fetchStateCmd(b Backend, poll bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		defer cancel()
		v, err := b.GetState(ctx)
		if err != nil {
			return ErrorMsg{Err: err, poll: poll}
		}
		return StateMsg{View: v, poll: poll}
	}
}

func selectZoneCmd(b Backend, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
		defer cancel()
		if err := b.SelectZone(ctx, id); err != nil {
			return ErrorMsg{Err: err}
		}
		return SelectedMsg{ZoneID: id}
	}
}

func pollCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}
