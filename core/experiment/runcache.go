package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/evsim/core/logger"
	"github.com/kilianp07/evsim/core/metrics"
	"github.com/kilianp07/evsim/core/monitoring"
	"github.com/kilianp07/evsim/core/runlog"
	"github.com/kilianp07/evsim/internal/atomicfile"
)

// ErrEmptyState is returned when a simulator finishes without a terminal
// state.
var ErrEmptyState = errors.New("simulator returned no terminal state")

// Result describes one Execute call.
type Result struct {
	Key      RunKey
	RunID    string
	Status   Status
	Duration time.Duration
	Metrics  map[string]float64
}

// RunCache executes runs at most once per key and persists their artifacts
// under a results root.
type RunCache struct {
	root   string
	ledger runlog.Store
	sink   metrics.MetricsSink
	log    logger.Logger
	now    func() time.Time
	newID  func() string
}

// NewRunCache returns a RunCache rooted at root. ledger, sink and log may be
// nil.
func NewRunCache(root string, ledger runlog.Store, sink metrics.MetricsSink, log logger.Logger) *RunCache {
	if ledger == nil {
		ledger = runlog.NopStore{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &RunCache{
		root:   root,
		ledger: ledger,
		sink:   sink,
		log:    log,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Root returns the results directory.
func (c *RunCache) Root() string { return c.root }

// Dir returns the directory of key.
func (c *RunCache) Dir(key RunKey) string { return key.Dir(c.root) }

// Manifest reads the manifest of key. A missing manifest returns
// os.ErrNotExist.
func (c *RunCache) Manifest(key RunKey) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(c.Dir(key), ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Status reports the state of key. A run with a manifest is completed only
// when the manifest says so and its terminal state is present. A directory
// holding a terminal state but no manifest was written without one and
// counts as completed. An unreadable manifest counts as pending.
func (c *RunCache) Status(key RunKey) Status {
	m, err := c.Manifest(key)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.log.Warnw("unreadable run manifest", map[string]any{"run": key.String(), "error": err.Error()})
			return StatusPending
		}
		if c.hasState(key) {
			return StatusCompleted
		}
		return StatusPending
	}
	if m.Status == StatusCompleted && !c.hasState(key) {
		return StatusPending
	}
	return m.Status
}

func (c *RunCache) hasState(key RunKey) bool {
	_, err := os.Stat(filepath.Join(c.Dir(key), StateFile))
	return err == nil
}

// Execute runs the simulation for key unless it already completed. A failed
// or interrupted earlier attempt is executed again. Failures are recorded in
// the manifest, the ledger and the error monitor, and returned as
// *RunExecutionFailed.
func (c *RunCache) Execute(ctx context.Context, key RunKey, sim Simulator, in SimulationInput) (Result, error) {
	if st := c.Status(key); st == StatusCompleted {
		res := Result{Key: key, Status: StatusSkipped}
		if m, err := c.Manifest(key); err == nil {
			res.RunID = m.RunID
		} else {
			res.RunID = c.adopt(key)
		}
		c.log.Debugw("run already completed", map[string]any{"run": key.String(), "run_id": res.RunID})
		c.record(key, res.RunID, StatusSkipped, 0, nil, "", c.now())
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{Key: key, Status: StatusPending}, err
	}

	dir := c.Dir(key)
	if err := c.clear(dir); err != nil {
		return c.fail(ctx, key, "", c.now(), err)
	}
	runID := c.newID()
	started := c.now()
	m := c.manifest(key, runID, StatusRunning, started)
	if err := atomicfile.WriteJSON(filepath.Join(dir, ManifestFile), m); err != nil {
		return c.fail(ctx, key, runID, started, err)
	}
	c.emit(ctx, key, runID, StatusRunning, 0, nil, "")
	c.log.Infof("run %s started (%s)", key, runID)

	out, err := simulate(ctx, sim, in)
	if err == nil {
		err = c.persist(dir, out)
	}
	if err != nil {
		return c.fail(ctx, key, runID, started, err)
	}

	finished := c.now()
	m.Status = StatusCompleted
	m.FinishedAt = &finished
	if err := atomicfile.WriteJSON(filepath.Join(dir, ManifestFile), m); err != nil {
		return c.fail(ctx, key, runID, started, err)
	}
	res := Result{Key: key, RunID: runID, Status: StatusCompleted, Duration: finished.Sub(started), Metrics: out.Metrics}
	c.emit(ctx, key, runID, StatusCompleted, res.Duration, out.Metrics, "")
	c.log.Infof("run %s completed in %s", key, res.Duration)
	return res, nil
}

// adopt writes a completed manifest for a terminal state found without one,
// so later lookups carry a run id.
func (c *RunCache) adopt(key RunKey) string {
	runID := c.newID()
	now := c.now()
	m := c.manifest(key, runID, StatusCompleted, now)
	m.FinishedAt = &now
	if err := atomicfile.WriteJSON(filepath.Join(c.Dir(key), ManifestFile), m); err != nil {
		c.log.Warnw("write adopted manifest", map[string]any{"run": key.String(), "error": err.Error()})
		return ""
	}
	c.log.Infof("run %s adopted existing terminal state (%s)", key, runID)
	return runID
}

func simulate(ctx context.Context, sim Simulator, in SimulationInput) (out *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simulator panic: %v", r)
		}
	}()
	out, err = sim.Simulate(ctx, in)
	if err == nil && (out == nil || len(out.State) == 0) {
		err = ErrEmptyState
	}
	return out, err
}

// persist writes metrics and solver statistics before the terminal state, so
// a present sim.json always has metrics next to it.
func (c *RunCache) persist(dir string, out *Outcome) error {
	if err := atomicfile.WriteJSON(filepath.Join(dir, MetricsFile), encodeMetrics(out.Metrics)); err != nil {
		return err
	}
	if out.SolveStats != nil {
		if err := atomicfile.WriteJSON(filepath.Join(dir, SolveStatsFile), out.SolveStats); err != nil {
			return err
		}
	}
	if !json.Valid(out.State) {
		return errors.New("terminal state is not valid JSON")
	}
	return atomicfile.WriteFile(filepath.Join(dir, StateFile), out.State)
}

// clear removes artifacts of an earlier attempt.
func (c *RunCache) clear(dir string) error {
	for _, name := range []string{StateFile, MetricsFile, SolveStatsFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func (c *RunCache) fail(ctx context.Context, key RunKey, runID string, started time.Time, cause error) (Result, error) {
	finished := c.now()
	m := c.manifest(key, runID, StatusFailed, started)
	m.FinishedAt = &finished
	m.Error = cause.Error()
	if err := atomicfile.WriteJSON(filepath.Join(c.Dir(key), ManifestFile), m); err != nil {
		c.log.Errorf("write failed manifest for %s: %v", key, err)
	}
	dur := finished.Sub(started)
	c.emit(ctx, key, runID, StatusFailed, dur, nil, cause.Error())
	runErr := &RunExecutionFailed{Key: key, RunID: runID, Err: cause}
	monitoring.CaptureException(runErr, map[string]string{
		"algorithm": key.Algorithm,
		"window":    key.Window.Label(),
		"scenario":  key.Scenario,
		"run_id":    runID,
	})
	c.log.Errorf("run %s failed: %v", key, cause)
	return Result{Key: key, RunID: runID, Status: StatusFailed, Duration: dur}, runErr
}

func (c *RunCache) manifest(key RunKey, runID string, st Status, started time.Time) Manifest {
	return Manifest{
		RunID:     runID,
		Status:    st,
		Algorithm: key.Algorithm,
		Window:    key.Window.Label(),
		Tariff:    key.Tariff,
		Revenue:   key.Revenue,
		Scenario:  key.Scenario,
		StartedAt: started,
	}
}

// emit records a transition in the ledger and the metrics sink. Neither may
// fail the run. Skipped runs only reach the sink.
func (c *RunCache) emit(ctx context.Context, key RunKey, runID string, st Status, dur time.Duration, m map[string]float64, errMsg string) {
	now := c.now()
	rec := runlog.Record{
		Timestamp:       now,
		RunID:           runID,
		Algorithm:       key.Algorithm,
		Window:          key.Window.Label(),
		Tariff:          key.Tariff,
		Revenue:         key.Revenue,
		Scenario:        key.Scenario,
		Status:          string(st),
		Dir:             c.Dir(key),
		DurationSeconds: dur.Seconds(),
		Error:           errMsg,
	}
	if err := c.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		c.log.Warnw("append run ledger", map[string]any{"run": key.String(), "error": err.Error()})
	}
	c.record(key, runID, st, dur, m, errMsg, now)
}

func (c *RunCache) record(key RunKey, runID string, st Status, dur time.Duration, m map[string]float64, errMsg string, now time.Time) {
	ev := metrics.RunEvent{
		RunID:     runID,
		Algorithm: key.Algorithm,
		Window:    key.Window.Label(),
		Tariff:    key.Tariff,
		Revenue:   key.Revenue,
		Scenario:  key.Scenario,
		Status:    metrics.RunStatus(st),
		Duration:  dur,
		Metrics:   m,
		Error:     errMsg,
		Time:      now,
	}
	if err := c.sink.RecordRun(ev); err != nil {
		c.log.Warnw("record run metrics", map[string]any{"run": key.String(), "error": err.Error()})
	}
}

// LoadMetrics reads metrics.json of a completed run. Anything else is
// reported as *MissingArtifact.
func (c *RunCache) LoadMetrics(key RunKey) (map[string]float64, error) {
	path := filepath.Join(c.Dir(key), MetricsFile)
	if st := c.Status(key); st != StatusCompleted {
		return nil, &MissingArtifact{Key: key, Path: path, Err: fmt.Errorf("run is %s", st)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MissingArtifact{Key: key, Path: path, Err: err}
	}
	m, err := decodeMetrics(data)
	if err != nil {
		return nil, &MissingArtifact{Key: key, Path: path, Err: err}
	}
	return m, nil
}

// LoadState returns the raw terminal state of a completed run.
func (c *RunCache) LoadState(key RunKey) (json.RawMessage, error) {
	path := filepath.Join(c.Dir(key), StateFile)
	if st := c.Status(key); st != StatusCompleted {
		return nil, &MissingArtifact{Key: key, Path: path, Err: fmt.Errorf("run is %s", st)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MissingArtifact{Key: key, Path: path, Err: err}
	}
	return data, nil
}

// LoadSolveStats returns the solver statistics of a run. ok is false when
// none were stored, which summaries render as NaN.
func (c *RunCache) LoadSolveStats(key RunKey) (stats map[string]any, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(c.Dir(key), SolveStatsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false, fmt.Errorf("decode solve stats: %w", err)
	}
	return stats, true, nil
}

// SolveStat returns a numeric solver statistic, or NaN when the statistics
// or the entry are absent.
func SolveStat(stats map[string]any, name string) float64 {
	if v, ok := stats[name].(float64); ok {
		return v
	}
	return math.NaN()
}
