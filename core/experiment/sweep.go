package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/evsim/core/eventcache"
	"github.com/kilianp07/evsim/core/logger"
	"github.com/kilianp07/evsim/core/metrics"
	"github.com/kilianp07/evsim/core/model"
	"github.com/kilianp07/evsim/core/monitoring"
	"github.com/kilianp07/evsim/core/synth"
)

// SessionSource supplies the raw session records of a site for a window.
type SessionSource interface {
	Sessions(ctx context.Context, site string, w model.Window) ([]model.RawSession, error)
}

// RunFailure is a run the sweep could not complete.
type RunFailure struct {
	Key RunKey
	Err error
}

// SweepReport summarizes a sweep. Total counts every planned run.
type SweepReport struct {
	Total     int
	Completed int
	Skipped   int
	Failed    []RunFailure
}

// Progress is published after every run of a sweep.
type Progress struct {
	Key    RunKey
	Status Status
	Done   int
	Total  int
	Err    error
}

// Sweep executes every (window, scenario, algorithm) of a plan in order.
type Sweep struct {
	Plan      *Plan
	Synthesis synth.Options
	Events    *eventcache.Cache
	Source    SessionSource
	Runs      *RunCache
	Simulator Simulator
	Log       logger.Logger
	Sink      metrics.MetricsSink
	// OnProgress is called after every run when set.
	OnProgress func(Progress)
}

// Run executes the sweep sequentially. Failed runs are collected in the
// report and never stop the sweep; only ctx cancellation does.
func (s *Sweep) Run(ctx context.Context) (SweepReport, error) {
	log := s.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	sink := s.Sink
	if sink == nil {
		sink = metrics.NopSink{}
	}
	rep := SweepReport{Total: len(s.Plan.Runs())}
	done := 0
	progress := func(key RunKey, st Status, err error) {
		done++
		switch st {
		case StatusCompleted:
			rep.Completed++
		case StatusSkipped:
			rep.Skipped++
		case StatusFailed:
			rep.Failed = append(rep.Failed, RunFailure{Key: key, Err: err})
		}
		if s.OnProgress != nil {
			s.OnProgress(Progress{Key: key, Status: st, Done: done, Total: rep.Total, Err: err})
		}
	}

	for _, w := range s.Plan.ResolvedWindows() {
		sessions := &sessionMemo{src: s.Source, site: s.Plan.Site, window: w}
		for _, sc := range s.Plan.Scenarios {
			keys := make([]RunKey, 0, len(s.Plan.Algorithms))
			pending := false
			for _, alg := range s.Plan.Algorithms {
				k := RunKey{Window: w, Tariff: s.Plan.Tariff, Revenue: s.Plan.Revenue, Scenario: sc.Name, Algorithm: alg}
				keys = append(keys, k)
				if s.Runs.Status(k) != StatusCompleted {
					pending = true
				}
			}

			var queue *model.EventQueue
			opts := sc.SynthOptions(s.Synthesis)
			if pending {
				if err := ctx.Err(); err != nil {
					return rep, err
				}
				var err error
				queue, _, err = s.queue(ctx, w, sc, opts, sessions, log, sink)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return rep, err
					}
					log.Errorf("events for %s/%s: %v", w.Label(), sc.Name, err)
					monitoring.CaptureException(err, map[string]string{"window": w.Label(), "scenario": sc.Name})
					for _, k := range keys {
						if s.Runs.Status(k) == StatusCompleted {
							progress(k, StatusSkipped, nil)
							continue
						}
						progress(k, StatusFailed, fmt.Errorf("build events: %w", err))
					}
					continue
				}
			}

			for _, k := range keys {
				if err := ctx.Err(); err != nil {
					return rep, err
				}
				in := SimulationInput{
					Site:          s.Plan.Site,
					Algorithm:     k.Algorithm,
					Start:         w.Start,
					End:           w.End,
					PeriodMinutes: opts.PeriodMinutes,
					Voltage:       opts.Voltage,
					Tariff:        s.Plan.Tariff,
					Options:       sc.Sim,
					Queue:         queue,
				}
				res, err := s.Runs.Execute(ctx, k, s.Simulator, in)
				if err != nil && res.Status == StatusPending {
					return rep, err
				}
				progress(k, res.Status, err)
			}
		}
	}
	log.Infof("sweep finished: %d completed, %d skipped, %d failed of %d", rep.Completed, rep.Skipped, len(rep.Failed), rep.Total)
	return rep, nil
}

func (s *Sweep) queue(ctx context.Context, w model.Window, sc Scenario, opts synth.Options, sessions *sessionMemo, log logger.Logger, sink metrics.MetricsSink) (*model.EventQueue, QueueInfo, error) {
	info := QueueInfo{Window: w, Scenario: sc.Name}
	b, err := synth.NewBuilder(opts, log)
	if err != nil {
		return nil, info, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}
	key := eventcache.NewKey(s.Plan.Site, w, sc.Name, b.Options())
	info.Key = key.Name()
	q, lookup, err := s.Events.GetOrBuild(ctx, key, func(ctx context.Context) (*model.EventQueue, error) {
		recs, err := sessions.get(ctx)
		if err != nil {
			return nil, err
		}
		q, rep := b.Build(recs, w)
		ev := metrics.BuildEvent{
			Window:    w.Label(),
			Scenario:  sc.Name,
			Converted: rep.Converted,
			Skipped:   len(rep.Skipped),
			Filtered:  rep.Filtered,
			Fallbacks: rep.Fallbacks,
			Time:      time.Now(),
		}
		if err := metrics.RecordBuildEvent(sink, ev); err != nil {
			log.Warnw("record build metrics", map[string]any{"window": w.Label(), "error": err.Error()})
		}
		return q, nil
	})
	if err != nil {
		return nil, info, err
	}
	info.Lookup = lookup
	info.Events = q.Len()
	log.Debugw("event queue ready", map[string]any{"key": key.Name(), "lookup": string(lookup), "events": q.Len()})
	return q, info, nil
}

// QueueInfo describes one event queue prepared by BuildEvents.
type QueueInfo struct {
	Window   model.Window
	Scenario string
	Key      string
	Lookup   eventcache.Lookup
	Events   int
	Err      error
}

// BuildEvents loads or builds the event queue of every (window, scenario)
// of the plan without simulating. Per-queue failures are reported in the
// result; only ctx cancellation aborts.
func (s *Sweep) BuildEvents(ctx context.Context) ([]QueueInfo, error) {
	log := s.Log
	if log == nil {
		log = logger.NopLogger{}
	}
	sink := s.Sink
	if sink == nil {
		sink = metrics.NopSink{}
	}
	var out []QueueInfo
	for _, w := range s.Plan.ResolvedWindows() {
		sessions := &sessionMemo{src: s.Source, site: s.Plan.Site, window: w}
		for _, sc := range s.Plan.Scenarios {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			_, info, err := s.queue(ctx, w, sc, sc.SynthOptions(s.Synthesis), sessions, log, sink)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return out, err
				}
				log.Errorf("events for %s/%s: %v", w.Label(), sc.Name, err)
				info.Err = err
			}
			out = append(out, info)
		}
	}
	return out, nil
}

// sessionMemo fetches a window's sessions at most once, and only when a
// queue has to be built.
type sessionMemo struct {
	src    SessionSource
	site   string
	window model.Window
	recs   []model.RawSession
	err    error
	loaded bool
}

func (m *sessionMemo) get(ctx context.Context) ([]model.RawSession, error) {
	if !m.loaded {
		if m.src == nil {
			return nil, errors.New("no session source configured")
		}
		m.recs, m.err = m.src.Sessions(ctx, m.site, m.window)
		if m.err != nil && (errors.Is(m.err, context.Canceled) || errors.Is(m.err, context.DeadlineExceeded)) {
			return nil, m.err
		}
		m.loaded = true
	}
	return m.recs, m.err
}
