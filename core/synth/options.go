package synth

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultPeriodMinutes   = 5
	DefaultVoltage         = 208.0
	DefaultMaxBatteryPower = 6.656
)

// Options are every parameter that changes the synthesized queue. They are
// validated once and then shared by the converter and the cache key.
type Options struct {
	// Mode selects the source of estimated departure and energy.
	Mode EstimationMode `json:"mode" yaml:"mode"`
	// PeriodMinutes is the simulation step used to quantize timestamps.
	PeriodMinutes int `json:"period_minutes" yaml:"period_minutes"`
	// Voltage is the network voltage used by the capacity model.
	Voltage float64 `json:"voltage" yaml:"voltage"`
	// MaxBatteryPower in kW is attached to every battery and bounds the
	// feasible energy.
	MaxBatteryPower float64 `json:"max_battery_power" yaml:"max_battery_power"`
	// IdealBattery skips the two-stage capacity model.
	IdealBattery bool `json:"ideal_battery" yaml:"ideal_battery"`
	// MaxLen caps the stay in periods. Zero disables the cap.
	MaxLen int64 `json:"max_len" yaml:"max_len"`
	// ForceFeasible clamps energy to what max power can deliver in the stay.
	ForceFeasible bool `json:"force_feasible" yaml:"force_feasible"`
	// RequireIntent drops sessions without user inputs before conversion.
	RequireIntent bool `json:"require_intent" yaml:"require_intent"`
}

// SetDefaults fills zero values.
func (o *Options) SetDefaults() {
	if o.Mode == "" {
		o.Mode = GroundTruth
	}
	if o.PeriodMinutes == 0 {
		o.PeriodMinutes = DefaultPeriodMinutes
	}
	if o.Voltage == 0 {
		o.Voltage = DefaultVoltage
	}
	if o.MaxBatteryPower == 0 {
		o.MaxBatteryPower = DefaultMaxBatteryPower
	}
}

// Validate checks the options once before any record is converted.
func (o Options) Validate() error {
	var errs []error
	if err := o.Mode.Validate(); err != nil {
		errs = append(errs, err)
	}
	if o.PeriodMinutes <= 0 {
		errs = append(errs, fmt.Errorf("period_minutes must be positive, got %d", o.PeriodMinutes))
	}
	if !(o.Voltage > 0) || math.IsInf(o.Voltage, 0) {
		errs = append(errs, fmt.Errorf("voltage must be positive, got %g", o.Voltage))
	}
	if !(o.MaxBatteryPower > 0) || math.IsInf(o.MaxBatteryPower, 0) {
		errs = append(errs, fmt.Errorf("max_battery_power must be positive, got %g", o.MaxBatteryPower))
	}
	if o.MaxLen < 0 {
		errs = append(errs, fmt.Errorf("max_len must not be negative, got %d", o.MaxLen))
	}
	return errors.Join(errs...)
}

// Params returns the converter parameters.
func (o Options) Params() Params {
	return Params{
		PeriodMinutes:   o.PeriodMinutes,
		Voltage:         o.Voltage,
		MaxBatteryPower: o.MaxBatteryPower,
		MaxLen:          o.MaxLen,
		ForceFeasible:   o.ForceFeasible,
		IdealBattery:    o.IdealBattery,
	}
}
