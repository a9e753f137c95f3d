// Package engine connects the worker supervisor, the reconciler and the
// presentation layer around the shared state store.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/watchfire-io/nowplaying/internal/daemon/dispatch"
	"github.com/watchfire-io/nowplaying/internal/daemon/metrics"
	"github.com/watchfire-io/nowplaying/internal/daemon/protocol"
	"github.com/watchfire-io/nowplaying/internal/daemon/reconcile"
	"github.com/watchfire-io/nowplaying/internal/daemon/state"
	"github.com/watchfire-io/nowplaying/internal/models"
)

// DefaultTickInterval is how often time-based policy is re-evaluated.
const DefaultTickInterval = 15 * time.Second

const diagnosticsKept = 20

// Presenter draws the menu and icon. Both methods are only ever called on
// the dispatcher goroutine and receive a private copy of the state.
type Presenter interface {
	RenderSnapshot(s *models.AppState)
	UpdateIcon(s *models.AppState)
}

// Publisher mirrors the displayed track somewhere else.
type Publisher interface {
	Publish(s *models.AppState)
}

// Options configures an Engine.
type Options struct {
	Store      *state.Store
	Reconciler *reconcile.Reconciler
	Dispatcher *dispatch.Dispatcher
	Presenter  Presenter
	Publisher  Publisher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger

	// OnPreferenceChange is called after the user picks a zone or automatic
	// mode, outside any lock.
	OnPreferenceChange func(models.ZonePreference)

	TickInterval time.Duration
	Now          func() time.Time
}

// Engine applies worker output and user actions to the store and schedules
// presenter refreshes. It implements supervisor.Sink.
type Engine struct {
	store      *state.Store
	reconciler *reconcile.Reconciler
	dispatcher *dispatch.Dispatcher
	publisher  Publisher
	metrics    *metrics.Metrics
	logger     *zap.Logger
	onPref     func(models.ZonePreference)
	tick       time.Duration
	now        func() time.Time

	presenterMu sync.RWMutex
	presenter   Presenter

	diagMu sync.Mutex
	diags  []string
}

// New creates an Engine. Store and Dispatcher are required.
func New(opts Options) *Engine {
	if opts.Reconciler == nil {
		opts.Reconciler = reconcile.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:      opts.Store,
		reconciler: opts.Reconciler,
		dispatcher: opts.Dispatcher,
		presenter:  opts.Presenter,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     opts.Logger.Named("engine"),
		onPref:     opts.OnPreferenceChange,
		tick:       opts.TickInterval,
		now:        opts.Now,
	}
}

// SetPresenter replaces the presenter. Used when the presenter needs the
// engine to be constructed first.
func (e *Engine) SetPresenter(p Presenter) {
	e.presenterMu.Lock()
	e.presenter = p
	e.presenterMu.Unlock()
}

func (e *Engine) currentPresenter() Presenter {
	e.presenterMu.RLock()
	defer e.presenterMu.RUnlock()
	return e.presenter
}

// HandleMessage reconciles one worker message.
func (e *Engine) HandleMessage(msg protocol.Message) {
	e.metrics.MessageReceived(msg.Type())
	now := e.now()
	var d reconcile.Directives
	e.store.Update(func(s *models.AppState) {
		d = e.reconciler.Apply(s, msg, now)
	})
	if st, ok := msg.(*protocol.Status); ok {
		e.logger.Info("worker status", zap.String("state", st.State), zap.String("message", st.Message))
	}
	if em, ok := msg.(*protocol.Error); ok {
		e.logger.Warn("worker error", zap.String("message", em.Message))
	}
	e.refresh(d)
}

// HandleDiagnostic keeps the most recent worker stderr lines.
func (e *Engine) HandleDiagnostic(line string) {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	e.diags = append(e.diags, line)
	if len(e.diags) > diagnosticsKept {
		e.diags = e.diags[len(e.diags)-diagnosticsKept:]
	}
}

// Diagnostics returns the most recent worker stderr lines, oldest first.
func (e *Engine) Diagnostics() []string {
	e.diagMu.Lock()
	defer e.diagMu.Unlock()
	return append([]string(nil), e.diags...)
}

// WorkerExited records an unexpected worker exit.
func (e *Engine) WorkerExited() {
	e.store.Update(func(s *models.AppState) {
		s.ConnectionStatus = models.StatusError("worker exited")
	})
	e.refresh(reconcile.Directives{Rebuild: true, Icon: true})
}

// SpawnFailed records a failed spawn attempt.
func (e *Engine) SpawnFailed(err error) {
	e.store.Update(func(s *models.AppState) {
		s.ConnectionStatus = models.StatusError(fmt.Sprintf("worker failed to start: %v", err))
	})
	e.refresh(reconcile.Directives{Rebuild: true, Icon: true})
}

// SelectZone pins id. The menu is rebuilt first, then the icon refreshed.
func (e *Engine) SelectZone(id string) error {
	now := e.now()
	var err error
	var pref models.ZonePreference
	e.store.Update(func(s *models.AppState) {
		err = reconcile.SelectZone(s, id, now)
		pref = s.ZonePreference
	})
	if err != nil {
		return fmt.Errorf("failed to select zone %q: %w", id, err)
	}
	e.logger.Info("zone selected", zap.String("zone_id", id))
	e.refresh(reconcile.Directives{Rebuild: true, Icon: true})
	e.notifyPreference(pref)
	return nil
}

// SelectAuto returns to automatic zone selection.
func (e *Engine) SelectAuto() {
	now := e.now()
	e.store.Update(func(s *models.AppState) {
		reconcile.SelectAuto(s, now)
	})
	e.logger.Info("automatic zone selection")
	e.refresh(reconcile.Directives{Rebuild: true, Icon: true})
	e.notifyPreference(models.AutoPreference())
}

// ApplyPreference applies a preference loaded from settings. It is a no-op
// when p matches the current preference.
func (e *Engine) ApplyPreference(p models.ZonePreference) {
	now := e.now()
	changed := false
	e.store.Update(func(s *models.AppState) {
		if s.ZonePreference == p {
			return
		}
		reconcile.SelectPreference(s, p, now)
		changed = true
	})
	if changed {
		e.logger.Info("zone preference loaded", zap.String("mode", string(p.Mode)), zap.String("zone_id", p.ZoneID))
		e.refresh(reconcile.Directives{Rebuild: true, Icon: true})
	}
}

func (e *Engine) notifyPreference(p models.ZonePreference) {
	if e.onPref != nil {
		e.onPref(p)
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() *models.AppState {
	return e.store.Snapshot()
}

// RenderAll schedules a full menu rebuild and icon refresh, stamping the
// rebuild time. Used for the initial draw.
func (e *Engine) RenderAll() {
	now := e.now()
	e.store.Update(func(s *models.AppState) {
		reconcile.MarkRebuilt(s, now)
	})
	e.refresh(reconcile.Directives{Rebuild: true, Icon: true})
}

// Run re-evaluates time-based policy until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one time-based evaluation.
func (e *Engine) Tick() {
	now := e.now()
	var d reconcile.Directives
	e.store.Update(func(s *models.AppState) {
		d = e.reconciler.Tick(s, now)
	})
	e.refresh(d)
}

// refresh queues presenter calls for d. The snapshot is taken on the
// dispatcher goroutine so the presenter always sees the latest state, and
// the store lock is released before the presenter runs.
func (e *Engine) refresh(d reconcile.Directives) {
	if d.Empty() {
		return
	}
	ok := e.dispatcher.Submit(func() {
		snap := e.store.Snapshot()
		p := e.currentPresenter()
		if d.Rebuild {
			if p != nil {
				p.RenderSnapshot(snap)
			}
			e.metrics.Rebuilt()
		}
		if d.Icon {
			if p != nil {
				p.UpdateIcon(snap)
			}
			e.metrics.IconUpdated()
			if e.publisher != nil {
				e.publisher.Publish(snap)
			}
		}
	})
	if !ok {
		e.logger.Debug("dispatcher closed, dropping refresh")
	}
}
