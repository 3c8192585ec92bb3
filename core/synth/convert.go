package synth

import (
	"math"
	"time"

	"github.com/kilianp07/evsim/core/battery"
	"github.com/kilianp07/evsim/core/model"
)

// MaxMinutesAvailable bounds a declared stay at one leap year, far below
// the range of time.Duration.
const MaxMinutesAvailable = 366 * 24 * 60

// Params are the per-batch inputs of Convert.
type Params struct {
	PeriodMinutes   int
	Voltage         float64
	MaxBatteryPower float64
	MaxLen          int64
	ForceFeasible   bool
	IdealBattery    bool
}

// Conversion is the result of converting one record. BatteryFallback is set
// when the two-stage battery could not be derived and the ideal model was
// used instead.
type Conversion struct {
	Session         model.ChargingSession
	BatteryFallback error
}

// Convert turns one raw session into a charging session. It performs no I/O.
func Convert(rec model.RawSession, mode EstimationMode, offset int64, p Params) (Conversion, error) {
	id := rec.SessionID
	if err := checkMandatory(rec); err != nil {
		return Conversion{}, err
	}
	observed := *rec.KWhDelivered

	arrival := Normalize(rec.ConnectionTime.Time, offset, p.PeriodMinutes)
	departure := Normalize(rec.DisconnectTime.Time, offset, p.PeriodMinutes)
	if p.MaxLen > 0 && departure-arrival > p.MaxLen {
		departure = arrival + p.MaxLen
	}
	if departure < arrival {
		return Conversion{}, invalidInterval(id, arrival, departure)
	}

	energy := observed
	if p.ForceFeasible {
		hours := float64((departure-arrival)*int64(p.PeriodMinutes)) / 60
		energy = math.Min(observed, p.MaxBatteryPower*hours)
	}

	est, err := estimate(rec, mode, offset, p)
	if err != nil {
		return Conversion{}, err
	}
	if p.MaxLen > 0 && est.departure-arrival > p.MaxLen {
		est.departure = arrival + p.MaxLen
	}

	out := battery.Resolve(p.IdealBattery, energy, departure-arrival, p.Voltage, float64(p.PeriodMinutes), p.MaxBatteryPower)

	sess := model.ChargingSession{
		SessionID:                id,
		StationID:                rec.SpaceID,
		Arrival:                  arrival,
		Departure:                departure,
		RequestedEnergy:          energy,
		ObservedEnergy:           observed,
		EstimatedDeparture:       est.departure,
		EstimatedRequestedEnergy: est.energy,
		EstimatedDuration:        est.duration,
		SessionDuration:          rec.DisconnectTime.Sub(rec.ConnectionTime.Time).Hours(),
		Battery:                  out.Battery,
	}
	if err := sess.Validate(); err != nil {
		return Conversion{}, &RecordError{SessionID: id, Err: ErrInvalidInterval, Detail: err.Error()}
	}
	return Conversion{Session: sess, BatteryFallback: out.Fallback}, nil
}

func checkMandatory(rec model.RawSession) error {
	id := rec.SessionID
	switch {
	case id == "":
		return malformed(id, "missing sessionID")
	case rec.SpaceID == "":
		return malformed(id, "missing spaceID")
	case rec.ConnectionTime.IsZero():
		return malformed(id, "missing connectionTime")
	case rec.DisconnectTime.IsZero():
		return malformed(id, "missing disconnectTime")
	case rec.KWhDelivered == nil:
		return malformed(id, "missing kWhDelivered")
	}
	e := *rec.KWhDelivered
	if math.IsNaN(e) || math.IsInf(e, 0) || e < 0 {
		return malformed(id, "invalid kWhDelivered %g", e)
	}
	return nil
}

type estimation struct {
	departure int64
	energy    float64
	duration  *float64
}

func estimate(rec model.RawSession, mode EstimationMode, offset int64, p Params) (estimation, error) {
	observed := estimation{
		departure: Normalize(rec.DisconnectTime.Time, offset, p.PeriodMinutes),
		energy:    *rec.KWhDelivered,
	}
	if mode != UserDeclared {
		return observed, nil
	}
	in, ok := rec.Intent()
	if !ok {
		return observed, nil
	}
	if math.IsNaN(in.MinutesAvailable) || in.MinutesAvailable < 0 || in.MinutesAvailable > MaxMinutesAvailable {
		return estimation{}, malformed(rec.SessionID, "invalid minutesAvailable %g", in.MinutesAvailable)
	}
	if math.IsNaN(in.KWhRequested) || math.IsInf(in.KWhRequested, 0) || in.KWhRequested < 0 {
		return estimation{}, malformed(rec.SessionID, "invalid kWhRequested %g", in.KWhRequested)
	}
	leave := rec.ConnectionTime.Add(time.Duration(in.MinutesAvailable * float64(time.Minute)))
	hours := in.MinutesAvailable / 60
	return estimation{
		departure: Normalize(leave, offset, p.PeriodMinutes),
		energy:    in.KWhRequested,
		duration:  &hours,
	}, nil
}
