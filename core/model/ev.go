package model

import "fmt"

// BatteryKind selects how the simulator models the vehicle battery.
type BatteryKind string

const (
	// BatteryIdeal has a capacity equal to the delivered energy, starts empty
	// and accepts max power until full.
	BatteryIdeal BatteryKind = "ideal"
	// BatteryLinear2Stage charges at max power up to TransitionSoC and then
	// tapers linearly to zero at full charge.
	BatteryLinear2Stage BatteryKind = "linear_2_stage"
)

// Battery is the battery state attached to a charging session.
type Battery struct {
	Kind          BatteryKind `json:"kind"`
	CapacityKWh   float64     `json:"capacity_kwh"`
	InitKWh       float64     `json:"init_kwh"`
	MaxPowerKW    float64     `json:"max_power_kw"`
	TransitionSoC float64     `json:"transition_soc,omitempty"`
}

// IdealBattery returns the ideal model for the given delivered energy.
func IdealBattery(energyKWh, maxPowerKW float64) Battery {
	return Battery{Kind: BatteryIdeal, CapacityKWh: energyKWh, MaxPowerKW: maxPowerKW}
}

// ChargingSession is the simulation-ready unit built from a raw session.
// Arrival, Departure and EstimatedDeparture are simulation periods relative
// to the window start.
type ChargingSession struct {
	SessionID                string   `json:"session_id"`
	StationID                string   `json:"station_id"`
	Arrival                  int64    `json:"arrival"`
	Departure                int64    `json:"departure"`
	RequestedEnergy          float64  `json:"requested_energy"`
	ObservedEnergy           float64  `json:"observed_energy"`
	EstimatedDeparture       int64    `json:"estimated_departure"`
	EstimatedRequestedEnergy float64  `json:"estimated_requested_energy"`
	EstimatedDuration        *float64 `json:"estimated_duration,omitempty"`
	SessionDuration          float64  `json:"session_duration"`
	Battery                  Battery  `json:"battery"`
}

// Validate checks the interval invariants: neither the observed nor the
// estimated departure may precede arrival.
func (s ChargingSession) Validate() error {
	if s.Departure < s.Arrival {
		return fmt.Errorf("departure %d before arrival %d", s.Departure, s.Arrival)
	}
	if s.EstimatedDeparture < s.Arrival {
		return fmt.Errorf("estimated departure %d before arrival %d", s.EstimatedDeparture, s.Arrival)
	}
	return nil
}
