package experiment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/evsim/core/synth"
)

// SimOptions are forwarded to the simulator unchanged. Their effects belong
// to the simulator and its charging algorithms.
type SimOptions struct {
	// BasicEVSE models stations with continuous pilot signals.
	BasicEVSE bool `yaml:"basic_evse" json:"basic_evse"`
	// EstimateMaxRate lets the algorithm estimate each vehicle's max rate.
	EstimateMaxRate bool `yaml:"estimate_max_rate" json:"estimate_max_rate"`
	// UninterruptedCharging forbids pausing a session once it started.
	UninterruptedCharging bool `yaml:"uninterrupted_charging" json:"uninterrupted_charging"`
	// Quantized restricts pilots to the station's discrete set.
	Quantized bool `yaml:"quantized" json:"quantized"`
	// AllowOvercharging lets the algorithm exceed the requested energy.
	AllowOvercharging bool `yaml:"allow_overcharging" json:"allow_overcharging"`
	// Offline solves the whole window once with perfect information.
	Offline bool `yaml:"offline" json:"offline"`
}

// Scenario is a named demand scenario: how the event queue is synthesized
// and which simulator options apply to it.
type Scenario struct {
	Name          string               `yaml:"name" json:"name"`
	Estimation    synth.EstimationMode `yaml:"estimation" json:"estimation"`
	IdealBattery  bool                 `yaml:"ideal_battery" json:"ideal_battery"`
	ForceFeasible bool                 `yaml:"force_feasible" json:"force_feasible"`
	MaxLen        int64                `yaml:"max_len" json:"max_len"`
	RequireIntent bool                 `yaml:"require_intent" json:"require_intent"`
	Sim           SimOptions           `yaml:"sim" json:"sim"`
}

// Validate checks the scenario once when the plan is loaded.
func (s Scenario) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("scenario name is required"))
	}
	if strings.ContainsAny(s.Name, `/\`) || s.Name == "." || s.Name == ".." {
		errs = append(errs, fmt.Errorf("invalid scenario name %q", s.Name))
	}
	if s.Estimation != "" {
		if err := s.Estimation.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", s.Name, err))
		}
	}
	if s.MaxLen < 0 {
		errs = append(errs, fmt.Errorf("scenario %q: max_len must be >= 0", s.Name))
	}
	return errors.Join(errs...)
}

// SynthOptions overlays the scenario on the site-wide synthesis options.
func (s Scenario) SynthOptions(base synth.Options) synth.Options {
	o := base
	if s.Estimation != "" {
		o.Mode = s.Estimation
	}
	o.IdealBattery = s.IdealBattery
	o.ForceFeasible = s.ForceFeasible
	o.MaxLen = s.MaxLen
	o.RequireIntent = s.RequireIntent
	o.SetDefaults()
	return o
}
