package synth

import (
	"fmt"
	"strings"
)

// EstimationMode selects where the estimated departure and requested energy
// of a session come from.
type EstimationMode string

const (
	// GroundTruth uses the observed disconnect time and delivered energy.
	GroundTruth EstimationMode = "ground_truth"
	// UserDeclared uses the user inputs when present and the observed values
	// otherwise.
	UserDeclared EstimationMode = "user_declared"
)

// ParseEstimationMode accepts the canonical names and the labels used by
// the historical experiment scripts.
func ParseEstimationMode(s string) (EstimationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ground_truth", "ground-truth", "truevalue", "true_value":
		return GroundTruth, nil
	case "user_declared", "user-declared", "userinputs", "user_inputs":
		return UserDeclared, nil
	default:
		return "", fmt.Errorf("unknown estimation mode %q", s)
	}
}

// Validate reports whether m is a known mode.
func (m EstimationMode) Validate() error {
	if m != GroundTruth && m != UserDeclared {
		return fmt.Errorf("unknown estimation mode %q", string(m))
	}
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *EstimationMode) UnmarshalText(b []byte) error {
	v, err := ParseEstimationMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
