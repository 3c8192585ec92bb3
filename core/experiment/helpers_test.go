package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/evsim/core/model"
)

func f64(v float64) *float64 { return &v }

func ts(s string) model.Timestamp {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return model.Timestamp{Time: t}
}

func rawSession(id, conn, disc string, kwh float64) model.RawSession {
	return model.RawSession{
		SessionID:      id,
		SpaceID:        "CA-" + id,
		StationID:      "st-" + id,
		ConnectionTime: ts(conn),
		DisconnectTime: ts(disc),
		KWhDelivered:   f64(kwh),
	}
}

type fakeSource struct {
	mu    sync.Mutex
	recs  []model.RawSession
	err   error
	calls int
}

func (f *fakeSource) Sessions(context.Context, string, model.Window) ([]model.RawSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.recs, f.err
}

// fakeSimulator derives deterministic metrics from the queue and counts
// calls. Algorithms listed in fail return an error. The metric named by
// undefined is reported as NaN.
type fakeSimulator struct {
	mu        sync.Mutex
	calls     int
	fail      map[string]bool
	undefined string
	seen      []SimulationInput
}

func (f *fakeSimulator) Simulate(_ context.Context, in SimulationInput) (*Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, in)
	if f.fail[in.Algorithm] {
		return nil, errors.New("solver diverged")
	}
	var requested float64
	for _, s := range in.Queue.Sessions() {
		requested += s.RequestedEnergy
	}
	state, _ := json.Marshal(map[string]any{"events": in.Queue.Len(), "algorithm": in.Algorithm})
	out := &Outcome{
		State: state,
		Metrics: map[string]float64{
			MetricProportionDelivered:  90,
			MetricDemandsFullyMet:      80,
			MetricPeakCurrent:          120,
			MetricDemandCharge:         2,
			MetricEnergyCost:           1,
			MetricTotalEnergyDelivered: requested * 0.9,
			MetricTotalEnergyRequested: requested,
		},
		SolveStats: map[string]any{"iterations": float64(in.Queue.Len())},
	}
	if f.undefined != "" {
		out.Metrics[f.undefined] = math.NaN()
	}
	return out, nil
}

func (f *fakeSimulator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
