// Package supervisor runs the worker process: it spawns it, reads its output,
// restarts it with backoff when it dies, and stops it on shutdown.
package supervisor

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/watchfire-io/nowplaying/internal/daemon/metrics"
	"github.com/watchfire-io/nowplaying/internal/daemon/protocol"
	"github.com/watchfire-io/nowplaying/internal/logging"
)

const (
	DefaultGracefulTimeout = 5 * time.Second
	DefaultJoinTimeout     = 2 * time.Second

	stdoutLogLimit = 200
)

// Sink receives everything the supervisor observes. Methods are called from
// reader and restart goroutines and must not block for long.
type Sink interface {
	HandleMessage(msg protocol.Message)
	HandleDiagnostic(line string)
	WorkerExited()
	SpawnFailed(err error)
}

// Config configures a Supervisor.
type Config struct {
	Resolve         Resolver
	Env             []string // extra KEY=value pairs for the worker
	Backoff         Backoff
	GracefulTimeout time.Duration
	JoinTimeout     time.Duration
	MaxLineBytes    int
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
}

// shared is the state both supervisor views see.
type shared struct {
	mu           sync.Mutex
	restartCount uint

	shutdown     atomic.Bool
	stopped      chan struct{}
	shutdownOnce sync.Once
}

func (s *shared) requestShutdown() {
	s.shutdownOnce.Do(func() {
		s.shutdown.Store(true)
		close(s.stopped)
	})
}

// restartHandle is the view captured by reader and restart goroutines. It can
// read and bump the restart counter, read the shutdown flag and spawn a new
// worker; it cannot stop anything.
type restartHandle struct {
	*shared
	spawn   func() error
	backoff Backoff
	sink    Sink
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func (h *restartHandle) count() uint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.restartCount
}

func (h *restartHandle) increment() {
	h.mu.Lock()
	h.restartCount++
	h.mu.Unlock()
}

func (h *restartHandle) reset() {
	h.mu.Lock()
	h.restartCount = 0
	h.mu.Unlock()
}

// restart waits out the backoff delay and spawns a new worker, repeating
// while spawning fails.
func (h *restartHandle) restart() {
	for {
		n := h.count()
		delay := h.backoff.Delay(n)
		h.logger.Info("restarting worker", zap.Duration("delay", delay), zap.Uint("attempt", n+1))
		h.metrics.RestartScheduled()

		timer := time.NewTimer(delay)
		select {
		case <-h.stopped:
			timer.Stop()
			return
		case <-timer.C:
		}
		if h.shutdown.Load() {
			return
		}

		// Counted before the new worker's readers exist so a "connected"
		// from that worker always lands after the bump.
		h.increment()
		err := h.spawn()
		switch {
		case err == nil, errors.Is(err, ErrStopped):
			return
		case errors.Is(err, ErrAlreadyRunning):
			h.logger.Warn("worker restart skipped", zap.Error(err))
			return
		}
		h.logger.Error("worker restart failed", zap.Error(err))
		h.sink.SpawnFailed(err)
	}
}

// Supervisor owns the worker process.
type Supervisor struct {
	cfg    Config
	sink   Sink
	logger *zap.Logger

	shared   *shared
	restarts *restartHandle

	mu     sync.Mutex // guards worker
	worker *workerHandle

	stopMu sync.Mutex // serializes Stop
}

// New creates a Supervisor. Nothing runs until Start or Spawn.
func New(cfg Config, sink Sink) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}

	s := &Supervisor{
		cfg:    cfg,
		sink:   sink,
		logger: cfg.Logger.Named("supervisor"),
		shared: &shared{stopped: make(chan struct{})},
	}
	s.restarts = &restartHandle{
		shared:  s.shared,
		spawn:   s.Spawn,
		backoff: cfg.Backoff,
		sink:    sink,
		logger:  s.logger,
		metrics: cfg.Metrics,
	}
	return s
}

// Start spawns the worker. If that fails the failure is reported to the sink
// and retried with the same backoff used after crashes; the error is still
// returned so the caller can log it.
func (s *Supervisor) Start() error {
	err := s.Spawn()
	if err == nil || errors.Is(err, ErrStopped) || errors.Is(err, ErrAlreadyRunning) {
		return err
	}
	s.sink.SpawnFailed(err)
	go s.restarts.restart()
	return err
}

// Spawn launches the worker and starts one reader per output stream. It may
// be called from any goroutine once the previous worker has exited.
func (s *Supervisor) Spawn() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shared.shutdown.Load() {
		return ErrStopped
	}
	if s.worker != nil && s.worker.running() {
		return ErrAlreadyRunning
	}

	cmd, err := s.cfg.Resolve()
	if err != nil {
		s.cfg.Metrics.SpawnResult(false)
		var se *SpawnError
		if errors.As(err, &se) {
			return err
		}
		return &SpawnError{Err: err}
	}

	w, err := startWorker(cmd, s.cfg.Env)
	if err != nil {
		s.cfg.Metrics.SpawnResult(false)
		return err
	}
	s.worker = w
	s.cfg.Metrics.SpawnResult(true)
	s.logger.Info("worker started",
		zap.String("command", cmd.String()),
		zap.Int("pid", w.pid()),
		zap.String("generation", w.id))

	w.readers.Add(2)
	go s.readStdout(w)
	go s.readStderr(w)
	return nil
}

func (s *Supervisor) readStdout(w *workerHandle) {
	defer w.readers.Done()
	defer w.stdout.Close()

	log := s.logger.With(zap.String("generation", w.id))
	dec := protocol.NewDecoder(w.stdout, protocol.Options{
		MaxLineBytes: s.cfg.MaxLineBytes,
		Stop:         s.shared.shutdown.Load,
		OnLine: func(line []byte) {
			if ce := log.Check(zap.DebugLevel, "worker stdout"); ce != nil {
				ce.Write(zap.String("line", logging.Truncate(string(line), stdoutLogLimit)))
			}
		},
		OnDrop: func(_ []byte, err error) {
			log.Warn("dropped worker message", zap.Error(err))
			s.cfg.Metrics.MessageDropped(protocol.DropReason(err))
		},
	})

	for dec.Next() {
		msg := dec.Message()
		if st, ok := msg.(*protocol.Status); ok && st.State == "connected" {
			s.restarts.reset()
		}
		s.sink.HandleMessage(msg)
	}
	if err := dec.Err(); err != nil {
		log.Warn("worker stdout read failed", zap.Error(err))
	}

	if s.shared.shutdown.Load() {
		return
	}
	log.Warn("worker stdout closed unexpectedly")
	s.cfg.Metrics.WorkerExited()
	s.sink.WorkerExited()
	go func() {
		s.retire(w)
		s.restarts.restart()
	}()
}

// retire makes sure a worker whose stdout is gone is no longer running
// before a replacement is spawned.
func (s *Supervisor) retire(w *workerHandle) {
	if !w.running() {
		return
	}
	log := s.logger.With(zap.String("generation", w.id), zap.Int("pid", w.pid()))
	log.Warn("worker closed stdout but is still running, terminating")
	if err := terminate(w.cmd.Process); err != nil {
		log.Warn("failed to send terminate signal", zap.Error(err))
	}
	if !w.waitExit(s.cfg.GracefulTimeout) {
		log.Warn("killing worker", zap.Error(ErrShutdownTimeout))
		if err := kill(w.cmd.Process); err != nil {
			log.Error("failed to kill worker", zap.Error(err))
			return
		}
		<-w.done
	}
}

func (s *Supervisor) readStderr(w *workerHandle) {
	defer w.readers.Done()
	defer w.stderr.Close()

	log := s.cfg.Logger.Named("worker").With(zap.String("generation", w.id))
	sc := protocol.NewLineScanner(w.stderr, protocol.Options{
		MaxLineBytes: s.cfg.MaxLineBytes,
		Stop:         s.shared.shutdown.Load,
	})
	for sc.Next() {
		log.Info(sc.Text())
		s.sink.HandleDiagnostic(sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Debug("worker stderr read failed", zap.Error(err))
	}
}

// Stop shuts the worker down: terminate request, then kill after the graceful
// timeout. No restart happens after Stop. Safe to call concurrently and more
// than once.
func (s *Supervisor) Stop() error {
	s.shared.requestShutdown()

	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	s.mu.Lock()
	w := s.worker
	s.mu.Unlock()
	if w == nil || w.stopped {
		return nil
	}
	w.stopped = true

	log := s.logger.With(zap.String("generation", w.id), zap.Int("pid", w.pid()))
	_ = w.stdin.Close()

	if w.running() {
		if err := terminate(w.cmd.Process); err != nil {
			log.Warn("failed to send terminate signal", zap.Error(err))
		}
		if !w.waitExit(s.cfg.GracefulTimeout) {
			log.Warn("killing worker", zap.Error(ErrShutdownTimeout))
			if err := kill(w.cmd.Process); err != nil {
				log.Error("failed to kill worker", zap.Error(err))
			}
			<-w.done
		}
	}

	if !w.joinReaders(s.cfg.JoinTimeout) {
		log.Warn("abandoning worker readers", zap.Error(ErrReaderJoinTimeout))
		// Unblock reads held open by a grandchild that kept the pipes.
		_ = w.stdout.Close()
		_ = w.stderr.Close()
	}

	s.cfg.Metrics.WorkerExited()
	log.Info("worker stopped")
	return nil
}

// IsRunning reports whether a worker process is alive.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worker != nil && s.worker.running()
}

// RestartCount returns the number of restarts since the last confirmed
// connection.
func (s *Supervisor) RestartCount() uint {
	return s.restarts.count()
}

// PID returns the current worker's process id, or 0.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker == nil || !s.worker.running() {
		return 0
	}
	return s.worker.pid()
}

// Generation returns the id of the most recently spawned worker.
func (s *Supervisor) Generation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.worker == nil {
		return ""
	}
	return s.worker.id
}
