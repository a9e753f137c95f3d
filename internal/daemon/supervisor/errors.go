package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrStopped is returned by Spawn once Stop has been called.
	ErrStopped = errors.New("supervisor stopped")

	// ErrAlreadyRunning is returned by Spawn while a worker is alive.
	ErrAlreadyRunning = errors.New("worker already running")

	// ErrWorkerNotFound means no worker executable or script could be located.
	ErrWorkerNotFound = errors.New("worker executable not found")

	// ErrShutdownTimeout is logged when the worker ignores the terminate
	// request and has to be killed.
	ErrShutdownTimeout = errors.New("worker did not exit within graceful timeout")

	// ErrReaderJoinTimeout is logged when an output reader is still running
	// after the worker was stopped.
	ErrReaderJoinTimeout = errors.New("worker output readers did not finish")
)

// SpawnError reports that the worker could not be located or launched.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to spawn worker: %v", e.Err)
	}
	return fmt.Sprintf("failed to spawn worker %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// StreamCaptureError reports that one of the worker's standard streams could
// not be attached.
type StreamCaptureError struct {
	Stream string
	Err    error
}

func (e *StreamCaptureError) Error() string {
	return fmt.Sprintf("failed to capture worker %s: %v", e.Stream, e.Err)
}

func (e *StreamCaptureError) Unwrap() error { return e.Err }
