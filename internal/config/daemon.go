package config

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// ErrDaemonNotRunning is returned when no live daemon is recorded.
var ErrDaemonNotRunning = errors.New("daemon is not running")

// LoadDaemonInfo loads the daemon connection info from ~/.nowplaying/daemon.yaml.
// Returns nil if the file doesn't exist.
func LoadDaemonInfo() (*models.DaemonInfo, error) {
	path, err := GlobalDaemonFile()
	if err != nil {
		return nil, err
	}
	if !FileExists(path) {
		return nil, nil
	}

	var info models.DaemonInfo
	if err := LoadYAML(path, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// SaveDaemonInfo saves the daemon connection info to ~/.nowplaying/daemon.yaml.
func SaveDaemonInfo(info *models.DaemonInfo) error {
	if err := EnsureGlobalDir(); err != nil {
		return err
	}
	path, err := GlobalDaemonFile()
	if err != nil {
		return err
	}
	return SaveYAML(path, info)
}

// RemoveDaemonInfo removes the daemon.yaml file.
func RemoveDaemonInfo() error {
	path, err := GlobalDaemonFile()
	if err != nil {
		return err
	}
	if !FileExists(path) {
		return nil
	}
	return os.Remove(path)
}

// ProcessAlive reports whether a process with pid exists (kill -0).
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// IsDaemonRunning checks if the daemon process is still running.
// Returns true if daemon.yaml exists and the PID is alive. A stale file is
// removed.
func IsDaemonRunning() (bool, *models.DaemonInfo, error) {
	info, err := LoadDaemonInfo()
	if err != nil {
		return false, nil, err
	}
	if info == nil {
		return false, nil, nil
	}
	if !ProcessAlive(info.PID) {
		_ = RemoveDaemonInfo()
		return false, info, nil
	}
	return true, info, nil
}

// RunningDaemon returns the info of the live daemon or ErrDaemonNotRunning.
func RunningDaemon() (*models.DaemonInfo, error) {
	running, info, err := IsDaemonRunning()
	if err != nil {
		return nil, fmt.Errorf("failed to read daemon info: %w", err)
	}
	if !running {
		return nil, ErrDaemonNotRunning
	}
	return info, nil
}
