package supervisor

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
)

// workerHandle is one live worker process. Only the Supervisor holds it.
type workerHandle struct {
	id        string
	cmd       *exec.Cmd
	stdin     io.WriteCloser // kept open, never written
	stdout    *os.File
	stderr    *os.File
	startedAt time.Time

	done    chan struct{} // closed after cmd.Wait returns
	exitErr error
	readers sync.WaitGroup

	stopped bool // guarded by Supervisor.stopMu
}

// startWorker launches c with its three standard streams captured. The
// daemon keeps the read ends of stdout and stderr; the write ends belong to
// the child only, so end-of-stream means the worker is gone.
func startWorker(c Command, env []string) (*workerHandle, error) {
	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), env...)
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &StreamCaptureError{Stream: "stdin", Err: err}
	}
	outR, outW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, &StreamCaptureError{Stream: "stdout", Err: err}
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		outR.Close()
		outW.Close()
		return nil, &StreamCaptureError{Stream: "stderr", Err: err}
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		for _, f := range []*os.File{outR, outW, errR, errW} {
			f.Close()
		}
		return nil, &SpawnError{Path: c.Path, Err: err}
	}
	outW.Close()
	errW.Close()

	w := &workerHandle{
		id:        uuid.NewString(),
		cmd:       cmd,
		stdin:     stdin,
		stdout:    outR,
		stderr:    errR,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	go func() {
		w.exitErr = cmd.Wait()
		close(w.done)
	}()
	return w, nil
}

// running is a non-blocking liveness probe.
func (w *workerHandle) running() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// waitExit waits up to timeout for the process to exit.
func (w *workerHandle) waitExit(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return true
	case <-timer.C:
		return false
	}
}

// joinReaders waits up to timeout for both output readers to return.
func (w *workerHandle) joinReaders(timeout time.Duration) bool {
	finished := make(chan struct{})
	go func() {
		w.readers.Wait()
		close(finished)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-finished:
		return true
	case <-timer.C:
		return false
	}
}

func (w *workerHandle) pid() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}
