package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/watchfire-io/nowplaying/internal/config"
	"github.com/watchfire-io/nowplaying/internal/models"
)

const (
	daemonBinaryName = "nowplayingd"

	daemonStartTimeout = 5 * time.Second
	// The daemon gives the worker its graceful window before exiting.
	daemonStopTimeout = 10 * time.Second
	daemonPollEvery   = 100 * time.Millisecond
)

var errDaemonBinaryNotFound = errors.New(daemonBinaryName + " not found, install or build it first")

// daemonReport is what `daemon status` knows about the running daemon. View
// is nil when the control service did not answer.
type daemonReport struct {
	Info    *models.DaemonInfo
	View    *models.StatusView
	ViewErr error
}

// fetchDaemonReport returns nil when no daemon is running. The worker view is
// best-effort.
func fetchDaemonReport() (*daemonReport, error) {
	info, err := config.RunningDaemon()
	if errors.Is(err, config.ErrDaemonNotRunning) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r := &daemonReport{Info: info}
	client, err := connectDaemon()
	if err != nil {
		r.ViewErr = err
		return r, nil
	}
	defer client.Close()

	ctx, cancel := rpcContext()
	defer cancel()
	view, err := client.GetState(ctx)
	if err != nil {
		r.ViewErr = err
		return r, nil
	}
	r.View = &view
	return r, nil
}

// startDaemon launches nowplayingd in the background and waits until it has
// written its daemon file.
func startDaemon(port int) (*models.DaemonInfo, error) {
	path, err := findDaemonBinary()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, daemonArgs(port)...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start daemon: %w", err)
	}
	_ = cmd.Process.Release()

	var info *models.DaemonInfo
	ready := pollUntil(daemonStartTimeout, daemonPollEvery, func() bool {
		info, err = config.RunningDaemon()
		return err == nil
	})
	if !ready {
		return nil, fmt.Errorf("daemon failed to start within %v", daemonStartTimeout)
	}
	return info, nil
}

func daemonArgs(port int) []string {
	if port <= 0 {
		return nil
	}
	return []string{"--port", strconv.Itoa(port)}
}

// findDaemonBinary looks on PATH first, then next to this executable, then in
// a local build directory.
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath(daemonBinaryName); err == nil {
		return path, nil
	}
	execPath, _ := os.Executable()
	for _, candidate := range daemonCandidates(execPath) {
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, nil
		}
	}
	return "", errDaemonBinaryNotFound
}

func daemonCandidates(execPath string) []string {
	var out []string
	if execPath != "" {
		out = append(out, filepath.Join(filepath.Dir(execPath), daemonBinaryName))
	}
	return append(out, filepath.Join("build", daemonBinaryName))
}

// pollUntil calls done every interval until it returns true or timeout
// elapses.
func pollUntil(timeout, interval time.Duration, done func() bool) bool {
	deadline := time.Now().Add(timeout)
	for {
		if done() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(interval)
	}
}
