package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/watchfire-io/nowplaying/internal/buildinfo"
	"github.com/watchfire-io/nowplaying/internal/config"
	"github.com/watchfire-io/nowplaying/internal/daemon/dispatch"
	"github.com/watchfire-io/nowplaying/internal/daemon/engine"
	"github.com/watchfire-io/nowplaying/internal/daemon/metrics"
	"github.com/watchfire-io/nowplaying/internal/daemon/publish"
	"github.com/watchfire-io/nowplaying/internal/daemon/server"
	"github.com/watchfire-io/nowplaying/internal/daemon/state"
	"github.com/watchfire-io/nowplaying/internal/daemon/supervisor"
	"github.com/watchfire-io/nowplaying/internal/daemon/tray"
	"github.com/watchfire-io/nowplaying/internal/daemon/watcher"
	"github.com/watchfire-io/nowplaying/internal/logging"
	"github.com/watchfire-io/nowplaying/internal/models"
)

type runOptions struct {
	foreground bool
	port       int
}

func run(opts runOptions) error {
	if err := config.EnsureGlobalDir(); err != nil {
		return fmt.Errorf("failed to create global directory: %w", err)
	}

	running, info, err := config.IsDaemonRunning()
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if running {
		return fmt.Errorf("daemon already running on port %d (PID %d)", info.Port, info.PID)
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	logger, err := newLogger(settings, env, opts.foreground)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting nowplayingd",
		zap.String("version", buildinfo.Short()),
		zap.Bool("foreground", opts.foreground))

	d := newDaemon(opts, settings, env, logger)
	if opts.foreground {
		return d.runForeground()
	}
	return d.runWithTray()
}

func newLogger(settings *models.Settings, env *config.Env, foreground bool) (*logging.Logger, error) {
	cfg := logging.DefaultConfig()
	cfg.Level = settings.Logging.Level
	if env.LogLevel != "" {
		cfg.Level = env.LogLevel
	}
	cfg.Development = settings.Logging.Development || env.LogDev
	if !foreground {
		if err := config.EnsureGlobalLogsDir(); err != nil {
			return nil, err
		}
		path, err := config.DaemonLogFile()
		if err != nil {
			return nil, err
		}
		cfg.OutputPaths = []string{path}
	}
	return logging.New(cfg)
}

// daemon owns every long-lived component of nowplayingd.
type daemon struct {
	opts     runOptions
	settings *models.Settings
	env      *config.Env
	logger   *logging.Logger

	store      *state.Store
	dispatcher *dispatch.Dispatcher
	engine     *engine.Engine
	supervisor *supervisor.Supervisor
	metrics    *metrics.Metrics
	publisher  *publish.MQTTPublisher
	server     *server.Server
	watcher    *watcher.Watcher

	ctx    context.Context
	cancel context.CancelFunc

	quit     chan struct{}
	quitOnce sync.Once
	stopOnce sync.Once
}

func newDaemon(opts runOptions, settings *models.Settings, env *config.Env, logger *logging.Logger) *daemon {
	ctx, cancel := context.WithCancel(context.Background())
	d := &daemon{
		opts:     opts,
		settings: settings,
		env:      env,
		logger:   logger,
		metrics:  metrics.New(),
		ctx:      ctx,
		cancel:   cancel,
		quit:     make(chan struct{}),
	}

	initial := models.NewAppState()
	initial.ZonePreference = settings.Zones.Preference()
	d.store = state.New(initial)
	d.dispatcher = dispatch.New(0, logger.Named("dispatch"))

	var pub engine.Publisher
	if settings.MQTT.Enabled {
		p, err := publish.Connect(settings.MQTT, logger.Logger)
		if err != nil {
			logger.Warn("mqtt publisher disabled", zap.Error(err))
		} else {
			d.publisher = p
			pub = p
		}
	}

	d.engine = engine.New(engine.Options{
		Store:              d.store,
		Dispatcher:         d.dispatcher,
		Publisher:          pub,
		Metrics:            d.metrics,
		Logger:             logger.Logger,
		OnPreferenceChange: d.persistPreference,
	})

	d.supervisor = supervisor.New(supervisor.Config{
		Resolve: supervisor.SettingsResolver(env.WorkerPath, settings.Worker),
		Env:     env.WorkerEnv(),
		Backoff: supervisor.Backoff{
			Initial:    settings.Restart.InitialDelay,
			Max:        settings.Restart.MaxDelay,
			Multiplier: settings.Restart.Multiplier,
		},
		GracefulTimeout: settings.Shutdown.GracefulTimeout,
		JoinTimeout:     settings.Shutdown.JoinTimeout,
		Logger:          logger.Logger,
		Metrics:         d.metrics,
	}, d.engine)

	return d
}

// start brings up every service and spawns the worker. The presenter must
// be set and the dispatcher running before it is called.
func (d *daemon) start() error {
	srv, err := server.New(server.Options{
		Host:       "localhost",
		Port:       d.opts.port,
		Controller: d.engine,
		Worker:     d.supervisor,
		Logger:     d.logger.Logger,
		Shutdown:   d.requestShutdown,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	d.server = srv

	go func() {
		if err := srv.Serve(); err != nil {
			d.logger.Error("control service failed", zap.Error(err))
			d.requestShutdown()
		}
	}()

	if addr := d.settings.Metrics.Listen; addr != "" {
		go func() {
			if err := d.metrics.Serve(d.ctx, addr, d.logger.Logger); err != nil {
				d.logger.Warn("metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	d.startWatcher()
	go d.engine.Run(d.ctx)
	d.engine.RenderAll()

	if err := d.supervisor.Start(); err != nil {
		d.logger.Error("worker failed to start, retrying", zap.Error(err))
	}

	info := models.NewDaemonInfo("localhost", srv.Port(), os.Getpid())
	info.WorkerPID = d.supervisor.PID()
	if err := config.SaveDaemonInfo(info); err != nil {
		return fmt.Errorf("failed to write daemon info: %w", err)
	}
	d.logger.Info("daemon started", zap.Int("port", srv.Port()), zap.Int("pid", os.Getpid()))
	return nil
}

func (d *daemon) startWatcher() {
	dir, err := config.GlobalDir()
	if err != nil {
		d.logger.Warn("settings watcher disabled", zap.Error(err))
		return
	}
	w, err := watcher.New(dir, []string{config.SettingsFileName}, d.logger.Logger)
	if err != nil {
		d.logger.Warn("settings watcher disabled", zap.Error(err))
		return
	}
	if err := w.Start(); err != nil {
		d.logger.Warn("settings watcher disabled", zap.Error(err))
		return
	}
	d.watcher = w

	// An explicit environment level pins the log level.
	var levels watcher.LevelSetter
	if d.env.LogLevel == "" {
		levels = d.logger
	}
	go watcher.Reload(d.ctx, w, d.engine, levels, d.logger.Logger)
}

// stop tears everything down in reverse order. Safe to call more than once.
func (d *daemon) stop() {
	d.stopOnce.Do(func() {
		d.cancel()
		if err := d.supervisor.Stop(); err != nil {
			d.logger.Warn("failed to stop worker", zap.Error(err))
		}
		if d.server != nil {
			d.server.Stop()
		}
		if d.watcher != nil {
			d.watcher.Stop()
		}
		if d.publisher != nil {
			d.publisher.Close()
		}
		d.dispatcher.Close()
		if err := config.RemoveDaemonInfo(); err != nil {
			d.logger.Warn("failed to remove daemon info", zap.Error(err))
		}
		d.logger.Info("daemon stopped")
	})
}

// requestShutdown asks the run loop to exit.
func (d *daemon) requestShutdown() {
	d.quitOnce.Do(func() { close(d.quit) })
}

// waitForQuit blocks until a signal arrives or shutdown is requested.
func (d *daemon) waitForQuit() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-d.quit:
		d.logger.Info("shutdown requested")
	}
}

// runForeground runs the daemon without a system tray, blocking on signals.
func (d *daemon) runForeground() error {
	d.engine.SetPresenter(newLogPresenter(d.logger.Logger))
	go d.dispatcher.Run()

	if err := d.start(); err != nil {
		d.stop()
		return err
	}
	d.waitForQuit()
	d.stop()
	return nil
}

// runWithTray runs the daemon with a system tray icon on the main goroutine.
// systray.Run must occupy the main goroutine on macOS.
func (d *daemon) runWithTray() error {
	t := tray.New(d.engine, d.requestShutdown, d.logger.Logger)
	d.engine.SetPresenter(t)

	var startErr error
	t.Run(func() {
		go d.dispatcher.Run()
		if err := d.start(); err != nil {
			startErr = err
			t.Quit()
			return
		}
		go func() {
			d.waitForQuit()
			t.Quit()
		}()
	}, d.stop)

	// The tray can exit without going through waitForQuit.
	d.stop()
	return startErr
}

// persistPreference writes a user's zone choice to settings.yaml so it
// survives restarts. The settings watcher sees the write and re-applies the
// same preference, which is a no-op.
func (d *daemon) persistPreference(p models.ZonePreference) {
	s, err := config.LoadSettings()
	if err != nil {
		d.logger.Warn("failed to load settings", zap.Error(err))
		return
	}
	if p.IsAuto() {
		s.Zones.Preferred = ""
	} else {
		s.Zones.Preferred = p.ZoneID
		s.Zones.SmartSwitching = p.SmartSwitching
		s.Zones.GracePeriodMinutes = p.GracePeriodMinutes
	}
	if err := config.SaveSettings(s); err != nil {
		d.logger.Warn("failed to save zone preference", zap.Error(err))
	}
}
