// Package metrics exposes the daemon's Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// Worker metrics
	WorkerSpawns   *prometheus.CounterVec
	WorkerRestarts prometheus.Counter
	WorkerUp       prometheus.Gauge

	// Protocol metrics
	Messages        *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec

	// Presentation metrics
	MenuRebuilds prometheus.Counter
	IconUpdates  prometheus.Counter

	registry *prometheus.Registry
}

// New creates metrics registered on a fresh registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewWith(reg)
	m.registry = reg
	return m
}

// NewWith registers the metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WorkerSpawns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nowplaying_worker_spawns_total",
				Help: "Worker spawn attempts by result",
			},
			[]string{"result"},
		),
		WorkerRestarts: f.NewCounter(prometheus.CounterOpts{
			Name: "nowplaying_worker_restarts_total",
			Help: "Restarts scheduled after the worker exited unexpectedly",
		}),
		WorkerUp: f.NewGauge(prometheus.GaugeOpts{
			Name: "nowplaying_worker_up",
			Help: "1 while a worker process is running",
		}),
		Messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nowplaying_messages_total",
				Help: "Worker messages decoded by type",
			},
			[]string{"type"},
		),
		MessagesDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nowplaying_messages_dropped_total",
				Help: "Worker output lines dropped by reason",
			},
			[]string{"reason"},
		),
		MenuRebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "nowplaying_menu_rebuilds_total",
			Help: "Full menu rebuilds sent to the presenter",
		}),
		IconUpdates: f.NewCounter(prometheus.CounterOpts{
			Name: "nowplaying_icon_updates_total",
			Help: "Icon refreshes sent to the presenter",
		}),
	}
}

func (m *Metrics) SpawnResult(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.WorkerSpawns.WithLabelValues("ok").Inc()
		m.WorkerUp.Set(1)
		return
	}
	m.WorkerSpawns.WithLabelValues("error").Inc()
}

func (m *Metrics) WorkerExited() {
	if m == nil {
		return
	}
	m.WorkerUp.Set(0)
}

func (m *Metrics) RestartScheduled() {
	if m == nil {
		return
	}
	m.WorkerRestarts.Inc()
}

func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageDropped(reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Rebuilt() {
	if m == nil {
		return
	}
	m.MenuRebuilds.Inc()
}

func (m *Metrics) IconUpdated() {
	if m == nil {
		return
	}
	m.IconUpdates.Inc()
}

// Handler returns the /metrics handler for the registry created by New.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
