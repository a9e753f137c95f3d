package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/watchfire-io/nowplaying/internal/models"
)

func stateBadge(s models.PlaybackState) string {
	label := s.Label()
	switch s {
	case models.StatePlaying:
		return badgePlaying.Render(label)
	case models.StatePaused:
		return badgePaused.Render(label)
	case models.StateLoading:
		return badgeLoading.Render(label)
	default:
		return badgeStopped.Render(label)
	}
}

func connectionLine(v models.StatusView) string {
	switch v.Connection {
	case models.ConnConnected:
		return styleSuccess.Render("Connected")
	case models.ConnDiscovering:
		return styleWarning.Render("Discovering...")
	case models.ConnError:
		return styleError.Render("Error: " + v.ConnectionReason)
	default:
		return styleHint.Render("Disconnected")
	}
}

func preferenceLine(v models.StatusView) string {
	if v.Preference != models.PreferSelected {
		return "Automatic"
	}
	line := "Pinned to " + zoneName(v, v.PreferredZoneID)
	if v.SmartSwitching {
		line += fmt.Sprintf(" (smart switching, %d min grace)", v.GracePeriodMinutes)
	}
	return line
}

func zoneName(v models.StatusView, id string) string {
	for _, z := range v.Zones {
		if z.ZoneID == id {
			return z.DisplayName
		}
	}
	return id
}

func writeRow(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", styleLabel.Render(fmt.Sprintf("%-11s", label+":")), value)
}

// formatStatus renders the status command output.
func formatStatus(v models.StatusView) string {
	var b strings.Builder
	writeRow(&b, "Connection", connectionLine(v))
	writeRow(&b, "Zone", preferenceLine(v))
	if v.SmartSwitched {
		writeRow(&b, "Following", zoneName(v, v.ActiveZoneID))
	}

	if t := v.Track; t != nil && t.Title != "" {
		writeRow(&b, "Track", styleValue.Render(t.Title))
		if t.Artist != "" {
			writeRow(&b, "Artist", t.Artist)
		}
		if t.Album != "" {
			writeRow(&b, "Album", t.Album)
		}
		writeRow(&b, "State", stateBadge(t.State))
	} else {
		writeRow(&b, "Track", styleHint.Render("Waiting for music..."))
	}
	return b.String()
}

// formatWorker renders the worker rows of daemon status: liveness, restarts
// since the last confirmed connection and the last line it wrote to stderr.
func formatWorker(v models.StatusView) string {
	var b strings.Builder
	state := styleError.Render("not running")
	if v.WorkerRunning {
		state = styleSuccess.Render(fmt.Sprintf("running (PID %d)", v.WorkerPID))
	}
	writeRow(&b, "Worker", state)

	restarts := strconv.FormatUint(uint64(v.WorkerRestarts), 10)
	if v.WorkerRestarts > 0 && v.Connection != models.ConnConnected {
		restarts = styleWarning.Render(restarts) + styleHint.Render(" (backing off)")
	}
	writeRow(&b, "Restarts", restarts)

	if n := len(v.Diagnostics); n > 0 {
		writeRow(&b, "Last output", styleHint.Render(v.Diagnostics[n-1]))
	}
	return b.String()
}

// formatDaemonReport renders `daemon status` for a running daemon.
func formatDaemonReport(r *daemonReport, now time.Time) string {
	var b strings.Builder
	b.WriteString(styleSuccess.Render("Daemon is running.") + "\n")
	writeRow(&b, "Address", styleValue.Render(r.Info.Address()))
	writeRow(&b, "PID", strconv.Itoa(r.Info.PID))
	writeRow(&b, "Uptime", now.Sub(r.Info.StartedAt).Truncate(time.Second).String())

	if r.View == nil {
		reason := "no answer"
		if r.ViewErr != nil {
			reason = r.ViewErr.Error()
		}
		writeRow(&b, "Control", styleWarning.Render("unreachable: ")+reason)
		return b.String()
	}
	writeRow(&b, "Connection", connectionLine(*r.View))
	b.WriteString(formatWorker(*r.View))
	return b.String()
}

// formatZones renders the zones command output as a table.
func formatZones(v models.StatusView) string {
	if len(v.Zones) == 0 {
		return styleHint.Render("No zones available.") + "\n"
	}

	idWidth, nameWidth := len("ID"), len("ZONE")
	for _, z := range v.Zones {
		idWidth = max(idWidth, lipgloss.Width(z.ZoneID))
		nameWidth = max(nameWidth, lipgloss.Width(z.DisplayName))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  %s  %s  %s\n",
		styleLabel.Render(pad("ID", idWidth)),
		styleLabel.Render(pad("ZONE", nameWidth)),
		styleLabel.Render("STATE"))
	for _, z := range v.Zones {
		marker := " "
		switch {
		case z.Selected:
			marker = "*"
		case z.Active:
			marker = ">"
		}
		line := fmt.Sprintf("%s %s  %s  %s", marker, pad(z.ZoneID, idWidth), pad(z.DisplayName, nameWidth), stateBadge(z.State))
		if z.Title != "" {
			line += "  " + styleHint.Render(trackSummary(z.Title, z.Artist))
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func trackSummary(title, artist string) string {
	if artist == "" {
		return title
	}
	return title + " — " + artist
}

func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
