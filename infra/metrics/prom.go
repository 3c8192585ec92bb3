package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/evsim/core/metrics"
)

// PromSink exposes sweep activity as Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	results   *prometheus.GaugeVec
	lookups   *prometheus.CounterVec
	sessions  *prometheus.CounterVec
	fallbacks prometheus.Counter
}

// NewPromSink registers metrics on the default Prometheus registerer. The
// HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evsim_runs_total",
			Help: "Run transitions by algorithm, scenario and status",
		}, []string{"algorithm", "scenario", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evsim_run_duration_seconds",
			Help:    "Wall time of finished simulations",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"algorithm", "status"}),
		results: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "evsim_run_result",
			Help: "Metrics reported by the last completed run of a combination",
		}, []string{"algorithm", "scenario", "window", "metric"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evsim_event_cache_lookups_total",
			Help: "Event cache lookups by result",
		}, []string{"result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evsim_sessions_total",
			Help: "Raw sessions processed by queue builds, by outcome",
		}, []string{"outcome"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evsim_battery_fallbacks_total",
			Help: "Sessions that fell back to the ideal battery model",
		}),
	}
	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.results, err = register(reg, s.results); err != nil {
		return nil, err
	}
	if s.lookups, err = register(reg, s.lookups); err != nil {
		return nil, err
	}
	if s.sessions, err = register(reg, s.sessions); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, s.fallbacks); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when c was registered
// before, so several sinks can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun counts the transition. Finished runs also feed the duration
// histogram, and completed ones publish their metrics.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Algorithm, ev.Scenario, string(ev.Status)).Inc()
	switch ev.Status {
	case coremetrics.RunCompleted, coremetrics.RunFailed:
		s.duration.WithLabelValues(ev.Algorithm, string(ev.Status)).Observe(ev.Duration.Seconds())
	}
	if ev.Status == coremetrics.RunCompleted {
		for name, v := range ev.Metrics {
			s.results.WithLabelValues(ev.Algorithm, ev.Scenario, ev.Window, name).Set(v)
		}
	}
	return nil
}

// RecordCacheLookup counts event cache lookups.
func (s *PromSink) RecordCacheLookup(ev coremetrics.CacheEvent) error {
	s.lookups.WithLabelValues(string(ev.Result)).Inc()
	return nil
}

// RecordBuild counts converted, skipped and filtered sessions.
func (s *PromSink) RecordBuild(ev coremetrics.BuildEvent) error {
	s.sessions.WithLabelValues("converted").Add(float64(ev.Converted))
	s.sessions.WithLabelValues("skipped").Add(float64(ev.Skipped))
	s.sessions.WithLabelValues("filtered").Add(float64(ev.Filtered))
	s.fallbacks.Add(float64(ev.Fallbacks))
	return nil
}
