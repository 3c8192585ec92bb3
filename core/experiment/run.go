package experiment

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/evsim/core/model"
)

// Status is the state of a run record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusSkipped is an Execute outcome, never persisted.
	StatusSkipped Status = "skipped"
)

// Artifact file names inside a run directory.
const (
	StateFile      = "sim.json"
	MetricsFile    = "metrics.json"
	SolveStatsFile = "solve_stats.json"
	ManifestFile   = "manifest.json"
)

// NoTariff names the tariff directory of runs without a tariff signal.
const NoTariff = "none"

// RunKey identifies one run of the sweep.
type RunKey struct {
	Window    model.Window
	Tariff    string
	Revenue   float64
	Scenario  string
	Algorithm string
}

// TariffDir returns the tariff path segment.
func (k RunKey) TariffDir() string {
	if k.Tariff == "" {
		return NoTariff
	}
	return k.Tariff
}

// RevenueDir formats the rate the way it appears in run paths: the shortest
// decimal, always with a fractional part.
func (k RunKey) RevenueDir() string {
	s := strconv.FormatFloat(k.Revenue, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Dir returns the run directory under root:
// <algorithm>/<start>_<end>/<tariff>/<revenue>/<scenario>.
func (k RunKey) Dir(root string) string {
	return filepath.Join(root, k.Algorithm, k.Window.Label(), k.TariffDir(), k.RevenueDir(), k.Scenario)
}

func (k RunKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", k.Algorithm, k.Window.Label(), k.TariffDir(), k.RevenueDir(), k.Scenario)
}

// Manifest records the state of a run directory. It is written last on
// completion, so a completed manifest implies every artifact is in place.
type Manifest struct {
	RunID      string     `json:"run_id"`
	Status     Status     `json:"status"`
	Algorithm  string     `json:"algorithm"`
	Window     string     `json:"window"`
	Tariff     string     `json:"tariff"`
	Revenue    float64    `json:"revenue"`
	Scenario   string     `json:"scenario"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunExecutionFailed reports a run whose simulation or persistence failed.
type RunExecutionFailed struct {
	Key   RunKey
	RunID string
	Err   error
}

func (e *RunExecutionFailed) Error() string {
	return fmt.Sprintf("run %s failed: %v", e.Key, e.Err)
}

func (e *RunExecutionFailed) Unwrap() error { return e.Err }

// MissingArtifact reports a combination without usable metrics.
type MissingArtifact struct {
	Key  RunKey
	Path string
	Err  error
}

func (e *MissingArtifact) Error() string {
	return fmt.Sprintf("missing artifact %s: %v", e.Path, e.Err)
}

func (e *MissingArtifact) Unwrap() error { return e.Err }
