package app

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evsim/config"
	"github.com/kilianp07/evsim/core/factory"
	coremetrics "github.com/kilianp07/evsim/core/metrics"
	"github.com/kilianp07/evsim/core/experiment"
	"github.com/kilianp07/evsim/core/model"
	"github.com/kilianp07/evsim/core/runlog"
	"github.com/kilianp07/evsim/core/synth"
)

type staticSource []model.RawSession

func (s staticSource) Sessions(context.Context, string, model.Window) ([]model.RawSession, error) {
	return s, nil
}

func session(t *testing.T, id, from, to string, kwh float64) model.RawSession {
	t.Helper()
	start, err := time.Parse(time.RFC3339, from)
	require.NoError(t, err)
	end, err := time.Parse(time.RFC3339, to)
	require.NoError(t, err)
	return model.RawSession{
		SessionID:      id,
		SpaceID:        "CA-" + id,
		ConnectionTime: model.Timestamp{Time: start},
		DisconnectTime: model.Timestamp{Time: end},
		KWhDelivered:   &kwh,
	}
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := &config.Config{
		CacheDir:   filepath.Join(dir, "events"),
		ResultsDir: filepath.Join(dir, "results"),
	}
	cfg.Ledger.Backend = "sqlite"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func testPlan(t *testing.T) *experiment.Plan {
	p := &experiment.Plan{
		Site:       "caltech",
		Revenue:    0.3,
		Windows:    []experiment.WindowSpec{{Name: "Oct", Start: "2019-10-01", End: "2019-10-02"}},
		Scenarios:  []experiment.Scenario{{Name: "base", Estimation: synth.GroundTruth}},
		Algorithms: []string{"llf", "uncontrolled"},
	}
	require.NoError(t, p.Validate())
	return p
}

func TestServiceSweepAndSummary(t *testing.T) {
	cfg := testConfig(t)
	sim := experiment.SimulatorFunc(func(_ context.Context, in experiment.SimulationInput) (*experiment.Outcome, error) {
		return &experiment.Outcome{
			State: json.RawMessage(`{"ok":true}`),
			Metrics: map[string]float64{
				experiment.MetricProportionDelivered:  100,
				experiment.MetricTotalEnergyRequested: 10,
				experiment.MetricDemandCharge:         1,
				experiment.MetricEnergyCost:           1,
			},
		}, nil
	})
	src := staticSource{session(t, "1", "2019-10-01T08:00:00-07:00", "2019-10-01T12:00:00-07:00", 10)}

	svc, err := New(cfg, WithSimulator(sim), WithSource(src))
	require.NoError(t, err)
	defer svc.Close()

	var seen []experiment.Progress
	rep, err := svc.RunSweep(context.Background(), testPlan(t), func(p experiment.Progress) { seen = append(seen, p) })
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Completed)
	assert.Len(t, seen, 2)

	recs, err := svc.Ledger.Query(context.Background(), runlog.Query{Status: "completed"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	sum := svc.Aggregator().Summarize(testPlan(t))
	require.Len(t, sum.Rows, 2)
	assert.Empty(t, sum.Missing)
	assert.InDelta(t, 3.0, sum.Rows[0].Revenue, 1e-9)
	assert.InDelta(t, 1.0, sum.Rows[0].Profit, 1e-9)
}

func TestServiceRequiresSimulatorForSweep(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Close()
	assert.Nil(t, svc.Source)
	_, err = svc.RunSweep(context.Background(), testPlan(t), nil)
	assert.ErrorIs(t, err, ErrNoSimulator)
}

func TestServiceRejectsUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "statsd"}}
	_, err := New(cfg)
	assert.ErrorContains(t, err, "metrics sink")
}

type closingSink struct {
	coremetrics.NopSink
	closed *atomic.Int32
}

func (s closingSink) Close() error {
	s.closed.Add(1)
	return nil
}

var sinkCloses atomic.Int32

func init() {
	_ = coremetrics.RegisterMetricsSink("closing", func(map[string]any) (coremetrics.MetricsSink, error) {
		return closingSink{closed: &sinkCloses}, nil
	})
}

func TestServiceClosesSinkOnSetupFailure(t *testing.T) {
	sinkCloses.Store(0)
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "closing"}}
	cfg.EventCache.Backend = "s3"
	_, err := New(cfg)
	assert.ErrorContains(t, err, "event store")
	assert.Equal(t, int32(1), sinkCloses.Load())

	cfg = testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "closing"}}
	cfg.Ledger.Backend = "csv"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "ledger")
	assert.Equal(t, int32(2), sinkCloses.Load())

	cfg = testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "closing"}}
	cfg.Simulator.Command = "sim"
	cfg.Simulator.Timeout = -time.Second
	_, err = New(cfg)
	assert.ErrorContains(t, err, "simulator")
	assert.Equal(t, int32(3), sinkCloses.Load())
}
