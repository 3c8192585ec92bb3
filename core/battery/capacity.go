// Package battery derives the battery state attached to a synthesized
// charging session.
package battery

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/evsim/core/model"
)

const (
	// ChargerAmps is the pilot limit of the EVSEs the sessions come from.
	ChargerAmps = 32.0
	// TransitionSoC is where the two-stage model leaves constant power.
	TransitionSoC = 0.8
)

// PackSizesKWh are the candidate usable capacities, smallest first.
var PackSizesKWh = []float64{8, 16, 24, 32, 40, 50, 60, 75, 85, 100}

// ErrCapacityDerivationFailed is wrapped by every derivation failure.
var ErrCapacityDerivationFailed = errors.New("capacity derivation failed")

// Reason enumerates why a derivation failed.
type Reason string

const (
	ReasonNonFiniteEnergy    Reason = "non_finite_energy"
	ReasonNegativeEnergy     Reason = "negative_energy"
	ReasonNonPositiveStay    Reason = "non_positive_duration"
	ReasonInvalidElectrical  Reason = "invalid_voltage_or_period"
	ReasonRateExceeded       Reason = "energy_exceeds_charge_rate"
	ReasonNoFeasibleCapacity Reason = "no_feasible_capacity"
)

// DerivationError describes a failed derivation together with its inputs.
type DerivationError struct {
	Reason   Reason
	Energy   float64
	Duration int64
	Voltage  float64
	Period   float64
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("%v: %s (energy=%g kWh, duration=%d periods, voltage=%g V, period=%g min)",
		ErrCapacityDerivationFailed, e.Reason, e.Energy, e.Duration, e.Voltage, e.Period)
}

func (e *DerivationError) Unwrap() error { return ErrCapacityDerivationFailed }

// Fields returns the error as structured log fields.
func (e *DerivationError) Fields() map[string]any {
	return map[string]any{
		"reason":   string(e.Reason),
		"energy":   e.Energy,
		"duration": e.Duration,
		"voltage":  e.Voltage,
		"period":   e.Period,
	}
}

// Capacity is the derived usable capacity and initial charge in kWh.
type Capacity struct {
	CapacityKWh float64
	InitKWh     float64
}

// Derive picks the smallest pack whose constant-power window holds the
// delivered energy, and an initial charge such that the session ends at the
// transition point. It fails when the energy cannot have been delivered by the
// charger within the stay.
func Derive(energyKWh float64, durationPeriods int64, voltage, periodMinutes float64) (Capacity, error) {
	fail := func(r Reason) (Capacity, error) {
		return Capacity{}, &DerivationError{Reason: r, Energy: energyKWh, Duration: durationPeriods, Voltage: voltage, Period: periodMinutes}
	}
	switch {
	case math.IsNaN(energyKWh) || math.IsInf(energyKWh, 0):
		return fail(ReasonNonFiniteEnergy)
	case energyKWh < 0:
		return fail(ReasonNegativeEnergy)
	case durationPeriods <= 0:
		return fail(ReasonNonPositiveStay)
	case !(voltage > 0) || !(periodMinutes > 0) || math.IsInf(voltage, 0) || math.IsInf(periodMinutes, 0):
		return fail(ReasonInvalidElectrical)
	}

	rateKW := ChargerAmps * voltage / 1000
	hours := float64(durationPeriods) * periodMinutes / 60
	if energyKWh > rateKW*hours*(1+1e-9) {
		return fail(ReasonRateExceeded)
	}
	for _, size := range PackSizesKWh {
		window := size * TransitionSoC
		if energyKWh <= window {
			return Capacity{CapacityKWh: size, InitKWh: window - energyKWh}, nil
		}
	}
	return fail(ReasonNoFeasibleCapacity)
}

// Outcome is the battery chosen for a session. Fallback is set when a
// two-stage battery was requested but its derivation failed and the ideal
// model was substituted.
type Outcome struct {
	Battery  model.Battery
	Fallback error
}

// Resolve builds the battery for a session. The two-stage derivation is tried
// once; any failure yields the ideal model with Fallback set.
func Resolve(ideal bool, energyKWh float64, durationPeriods int64, voltage, periodMinutes, maxPowerKW float64) Outcome {
	if ideal {
		return Outcome{Battery: model.IdealBattery(energyKWh, maxPowerKW)}
	}
	c, err := Derive(energyKWh, durationPeriods, voltage, periodMinutes)
	if err != nil {
		return Outcome{Battery: model.IdealBattery(energyKWh, maxPowerKW), Fallback: err}
	}
	return Outcome{Battery: model.Battery{
		Kind:          model.BatteryLinear2Stage,
		CapacityKWh:   c.CapacityKWh,
		InitKWh:       c.InitKWh,
		MaxPowerKW:    maxPowerKW,
		TransitionSoC: TransitionSoC,
	}}
}
