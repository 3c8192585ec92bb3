package synth

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedRecord marks a record with missing or invalid mandatory
	// fields.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrInvalidInterval marks a record whose departure precedes its arrival.
	ErrInvalidInterval = errors.New("invalid interval")
)

// RecordError is returned by Convert for a record that cannot be turned into
// a charging session.
type RecordError struct {
	SessionID string
	Err       error
	Detail    string
}

func (e *RecordError) Error() string {
	id := e.SessionID
	if id == "" {
		id = "<unknown>"
	}
	return fmt.Sprintf("session %s: %v: %s", id, e.Err, e.Detail)
}

func (e *RecordError) Unwrap() error { return e.Err }

func malformed(id, format string, args ...any) error {
	return &RecordError{SessionID: id, Err: ErrMalformedRecord, Detail: fmt.Sprintf(format, args...)}
}

func invalidInterval(id string, arrival, departure int64) error {
	return &RecordError{SessionID: id, Err: ErrInvalidInterval,
		Detail: fmt.Sprintf("departure %d before arrival %d", departure, arrival)}
}
