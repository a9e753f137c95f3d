package cli

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/watchfire-io/nowplaying/internal/models"
)

func plain(s string) string { return ansi.Strip(s) }

func sampleView() models.StatusView {
	return models.StatusView{
		Connection:         models.ConnConnected,
		Preference:         models.PreferSelected,
		PreferredZoneID:    "o",
		SmartSwitching:     true,
		GracePeriodMinutes: 5,
		ActiveZoneID:       "k",
		SmartSwitched:      true,
		Track:              &models.TrackView{Title: "Song", Artist: "Band", Album: "Record", State: models.StatePlaying},
		Zones: []models.ZoneView{
			{ZoneID: "k", DisplayName: "Kitchen", State: models.StatePlaying, Title: "Song", Artist: "Band", Active: true},
			{ZoneID: "o", DisplayName: "Office", State: models.StateStopped, Selected: true},
		},
		WorkerRunning:  true,
		WorkerPID:      99,
		WorkerRestarts: 1,
		Diagnostics:    []string{"discovering core"},
	}
}

func TestFormatStatus(t *testing.T) {
	out := plain(formatStatus(sampleView()))
	assert.Contains(t, out, "Connected")
	assert.Contains(t, out, "Pinned to Office (smart switching, 5 min grace)")
	assert.Contains(t, out, "Following:  Kitchen")
	assert.Contains(t, out, "Track:      Song")
	assert.Contains(t, out, "Playing")

	empty := plain(formatStatus(models.StatusView{Connection: models.ConnError, ConnectionReason: "worker exited"}))
	assert.Contains(t, empty, "Error: worker exited")
	assert.Contains(t, empty, "Automatic")
	assert.Contains(t, empty, "Waiting for music...")
}

func TestFormatZones(t *testing.T) {
	out := plain(formatZones(sampleView()))
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if assert.Len(t, lines, 3) {
		assert.Contains(t, lines[0], "ID")
		assert.True(t, strings.HasPrefix(lines[1], "> k"))
		assert.Contains(t, lines[1], "Song — Band")
		assert.True(t, strings.HasPrefix(lines[2], "* o"))
	}

	assert.Equal(t, "No zones available.\n", plain(formatZones(models.StatusView{})))
}

func TestFormatWorker(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*models.StatusView)
		contains []string
		excludes []string
	}{
		{
			name:     "connected",
			mutate:   func(*models.StatusView) {},
			contains: []string{"Worker:     running (PID 99)", "Restarts:   1", "Last output: discovering core"},
			excludes: []string{"backing off"},
		},
		{
			name: "crashing",
			mutate: func(v *models.StatusView) {
				v.Connection = models.ConnError
				v.WorkerRunning = false
				v.WorkerRestarts = 3
				v.Diagnostics = []string{"starting", "ECONNREFUSED"}
			},
			contains: []string{"not running", "Restarts:   3 (backing off)", "Last output: ECONNREFUSED"},
			excludes: []string{"starting"},
		},
		{
			name: "quiet worker",
			mutate: func(v *models.StatusView) {
				v.Diagnostics = nil
			},
			excludes: []string{"Last output"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := sampleView()
			tt.mutate(&v)
			out := plain(formatWorker(v))
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, out, unwanted)
			}
		})
	}
}

func TestFormatDaemonReport(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	info := &models.DaemonInfo{Host: "127.0.0.1", Port: 50051, PID: 42, StartedAt: started}
	now := started.Add(90*time.Minute + 1500*time.Millisecond)

	view := sampleView()
	out := plain(formatDaemonReport(&daemonReport{Info: info, View: &view}, now))
	assert.Contains(t, out, "Daemon is running.")
	assert.Contains(t, out, "Address:    127.0.0.1:50051")
	assert.Contains(t, out, "PID:        42")
	assert.Contains(t, out, "Uptime:     1h30m1s")
	assert.Contains(t, out, "Connection: Connected")
	assert.Contains(t, out, "running (PID 99)")

	out = plain(formatDaemonReport(&daemonReport{Info: info, ViewErr: errors.New("connection refused")}, now))
	assert.Contains(t, out, "Control:    unreachable: connection refused")
	assert.NotContains(t, out, "Worker:")
}

func TestDaemonArgs(t *testing.T) {
	assert.Nil(t, daemonArgs(0))
	assert.Equal(t, []string{"--port", "7000"}, daemonArgs(7000))
}

func TestDaemonCandidates(t *testing.T) {
	assert.Equal(t,
		[]string{filepath.Join("/opt/np/bin", daemonBinaryName), filepath.Join("build", daemonBinaryName)},
		daemonCandidates("/opt/np/bin/nowplaying"))
	assert.Equal(t, []string{filepath.Join("build", daemonBinaryName)}, daemonCandidates(""))
}

func TestPollUntil(t *testing.T) {
	calls := 0
	assert.True(t, pollUntil(time.Second, time.Millisecond, func() bool {
		calls++
		return calls == 3
	}))
	assert.Equal(t, 3, calls)

	assert.False(t, pollUntil(20*time.Millisecond, 5*time.Millisecond, func() bool { return false }))
}
