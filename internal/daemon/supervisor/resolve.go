package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/watchfire-io/nowplaying/internal/models"
)

// WorkerBinaryName is the executable looked up when no path is configured.
const WorkerBinaryName = "nowplaying-worker"

// Command is a resolved worker invocation.
type Command struct {
	Path string
	Args []string
	Dir  string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Path
	}
	return fmt.Sprintf("%s %v", c.Path, c.Args)
}

// Resolver finds the worker command for one spawn attempt.
type Resolver func() (Command, error)

// StaticResolver always returns cmd.
func StaticResolver(cmd Command) Resolver {
	return func() (Command, error) { return cmd, nil }
}

// SettingsResolver resolves the worker from an override path (the
// NOWPLAYING_WORKER environment variable) and the worker settings.
func SettingsResolver(override string, cfg models.WorkerConfig) Resolver {
	return func() (Command, error) { return ResolveWorker(override, cfg) }
}

// ResolveWorker finds the worker in this order: override, settings path,
// development script run with Node, PATH, next to the daemon executable.
func ResolveWorker(override string, cfg models.WorkerConfig) (Command, error) {
	// 1. Explicit override and configured path
	for _, p := range []string{override, cfg.Path} {
		if p == "" {
			continue
		}
		if isFile(p) {
			return Command{Path: p, Args: cfg.Args}, nil
		}
		return Command{}, fmt.Errorf("%w: %s does not exist", ErrWorkerNotFound, p)
	}

	// 2. Development mode: run the built worker script with Node
	if cfg.Script != "" {
		if !isFile(cfg.Script) {
			return Command{}, fmt.Errorf("%w: script %s does not exist", ErrWorkerNotFound, cfg.Script)
		}
		node := cfg.Node
		if node == "" {
			node = "node"
		}
		nodePath, err := exec.LookPath(node)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s not found in PATH: %v", ErrWorkerNotFound, node, err)
		}
		args := append([]string{cfg.Script}, cfg.Args...)
		return Command{Path: nodePath, Args: args}, nil
	}

	// 3. PATH
	name := WorkerBinaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	if path, err := exec.LookPath(name); err == nil {
		return Command{Path: path, Args: cfg.Args}, nil
	}

	// 4. Bundled next to the daemon
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates := []string{filepath.Join(dir, name)}
		if runtime.GOOS == "darwin" {
			candidates = append(candidates, filepath.Join(dir, "..", "Resources", name))
		}
		for _, p := range candidates {
			if isFile(p) {
				return Command{Path: p, Args: cfg.Args}, nil
			}
		}
	}

	return Command{}, fmt.Errorf("%w: install %s or set worker.path in ~/.nowplaying/settings.yaml", ErrWorkerNotFound, WorkerBinaryName)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
