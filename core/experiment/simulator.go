package experiment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/evsim/core/model"
)

// SimulationInput is everything one simulator invocation receives.
type SimulationInput struct {
	Site          string            `json:"site"`
	Algorithm     string            `json:"algorithm"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	PeriodMinutes int               `json:"period_minutes"`
	Voltage       float64           `json:"voltage"`
	Tariff        string            `json:"tariff,omitempty"`
	Options       SimOptions        `json:"options"`
	Queue         *model.EventQueue `json:"queue"`
}

// Outcome is what a finished simulation hands back.
type Outcome struct {
	// State is the simulator's terminal state, stored as sim.json.
	State json.RawMessage `json:"state"`
	// Metrics is a flat mapping stored as metrics.json.
	Metrics map[string]float64 `json:"metrics"`
	// SolveStats is optional solver output stored as solve_stats.json.
	SolveStats map[string]any `json:"solve_stats,omitempty"`
}

// Simulator runs one simulation to completion. It is an external black box.
type Simulator interface {
	Simulate(ctx context.Context, in SimulationInput) (*Outcome, error)
}

// SimulatorFunc adapts a function to Simulator.
type SimulatorFunc func(ctx context.Context, in SimulationInput) (*Outcome, error)

func (f SimulatorFunc) Simulate(ctx context.Context, in SimulationInput) (*Outcome, error) {
	return f(ctx, in)
}

// Metric keys written by the simulator and read by the aggregator.
const (
	MetricProportionDelivered  = "proportion_delivered"
	MetricDemandsFullyMet      = "demands_fully_met"
	MetricPeakCurrent          = "peak_current"
	MetricDemandCharge         = "demand_charge"
	MetricEnergyCost           = "energy_cost"
	MetricTotalEnergyDelivered = "total_energy_delivered"
	MetricTotalEnergyRequested = "total_energy_requested"
)
