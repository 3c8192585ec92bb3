package synth

import "time"

// PeriodIndex returns the number of whole periods elapsed between the Unix
// epoch and t. Instants within the same period share an index.
func PeriodIndex(t time.Time, periodMinutes int) int64 {
	size := int64(periodMinutes) * 60
	s := t.Unix()
	q := s / size
	if s%size != 0 && s < 0 {
		q--
	}
	return q
}

// WindowOffset returns the period index of the window start. Subtracting it
// re-bases session timestamps to 0 at the start of the window.
func WindowOffset(start time.Time, periodMinutes int) int64 {
	return PeriodIndex(start, periodMinutes)
}

// Normalize converts t into periods relative to offset.
func Normalize(t time.Time, offset int64, periodMinutes int) int64 {
	return PeriodIndex(t, periodMinutes) - offset
}
