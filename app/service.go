// Package app wires configured components into the synthesis and sweep
// pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/evsim/app/plugins"
	"github.com/kilianp07/evsim/config"
	"github.com/kilianp07/evsim/core/eventcache"
	"github.com/kilianp07/evsim/core/experiment"
	coremetrics "github.com/kilianp07/evsim/core/metrics"
	coremon "github.com/kilianp07/evsim/core/monitoring"
	"github.com/kilianp07/evsim/core/runlog"
	"github.com/kilianp07/evsim/infra/logger"
	"github.com/kilianp07/evsim/infra/metrics"
	"github.com/kilianp07/evsim/infra/monitoring"
	"github.com/kilianp07/evsim/infra/sessions"
	"github.com/kilianp07/evsim/infra/simulator"
)

// ErrNoSimulator is returned when a sweep is requested without a
// configured simulator command.
var ErrNoSimulator = errors.New("simulator.command is not configured")

// Service holds every long-lived component built from the configuration.
type Service struct {
	Config    *config.Config
	Log       logger.Logger
	Sink      coremetrics.MetricsSink
	Ledger    runlog.Store
	Store     eventcache.Store
	Events    *eventcache.Cache
	Runs      *experiment.RunCache
	Source    experiment.SessionSource
	Simulator experiment.Simulator
	Monitor   coremon.Monitor
}

// Option customizes a Service after the configured components are built.
type Option func(*Service)

// WithSimulator overrides the configured simulator.
func WithSimulator(sim experiment.Simulator) Option {
	return func(s *Service) { s.Simulator = sim }
}

// WithSource overrides the configured session source.
func WithSource(src experiment.SessionSource) Option {
	return func(s *Service) { s.Source = src }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	ledger, err := plugins.NewLedger(cfg.Ledger)
	if err != nil {
		closeSink(sink)
		return nil, fmt.Errorf("ledger: %w", err)
	}
	store, err := plugins.NewEventStore(cfg)
	if err != nil {
		_ = ledger.Close()
		closeSink(sink)
		return nil, fmt.Errorf("event store: %w", err)
	}

	svc := &Service{
		Config:  cfg,
		Log:     log,
		Sink:    sink,
		Ledger:  ledger,
		Store:   store,
		Events:  eventcache.New(store, logger.New("eventcache"), sink),
		Runs:    experiment.NewRunCache(cfg.ResultsDir, ledger, sink, logger.New("runcache")),
		Monitor: mon,
	}
	if cfg.Sessions.Path != "" {
		svc.Source = sessions.NewFileSource(cfg.Sessions.Path)
	}
	if cfg.Simulator.Command != "" {
		sim, err := simulator.NewExecSimulator(cfg.Simulator)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("simulator: %w", err)
		}
		svc.Simulator = sim
	}
	for _, o := range opts {
		o(svc)
	}
	log.Debugw("service ready", map[string]any{
		"cache_dir":   cfg.CacheDir,
		"results_dir": cfg.ResultsDir,
		"event_store": cfg.EventCache.Backend,
		"ledger":      cfg.Ledger.Backend,
		"sinks":       len(cfg.Metrics.Sinks),
	})
	return svc, nil
}

func closeSink(s coremetrics.MetricsSink) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}

// Sweep returns a sweep of p over the service components.
func (s *Service) Sweep(p *experiment.Plan) *experiment.Sweep {
	return &experiment.Sweep{
		Plan:      p,
		Synthesis: s.Config.Synthesis,
		Events:    s.Events,
		Source:    s.Source,
		Runs:      s.Runs,
		Simulator: s.Simulator,
		Log:       logger.New("sweep"),
		Sink:      s.Sink,
	}
}

// RunSweep executes the sweep of p. The Prometheus endpoint is served for
// the duration of the sweep when metrics.prometheus_port is set.
func (s *Service) RunSweep(ctx context.Context, p *experiment.Plan, onProgress func(experiment.Progress)) (experiment.SweepReport, error) {
	if s.Simulator == nil {
		return experiment.SweepReport{}, ErrNoSimulator
	}
	if port := s.Config.Metrics.PrometheusPort; port != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.StartPromServer(srvCtx, port, prometheus.DefaultGatherer); err != nil {
				s.Log.Errorf("prom server: %v", err)
			}
		}()
	}
	sw := s.Sweep(p)
	sw.OnProgress = onProgress
	return sw.Run(ctx)
}

// Aggregator returns an aggregator over the run cache.
func (s *Service) Aggregator() *experiment.Aggregator {
	return &experiment.Aggregator{Runs: s.Runs, Log: logger.New("aggregate")}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Ledger != nil {
		errs = append(errs, s.Ledger.Close())
	}
	if c, ok := s.Store.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.Sink.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if s.Monitor != nil {
		s.Monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
