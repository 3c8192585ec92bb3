// Package simulator runs the external charging simulator as a subprocess.
//
// The process receives one experiment.SimulationInput as JSON on stdin and
// must write one experiment.Outcome as JSON on stdout. A non-zero exit is
// a failed run; the tail of stderr is kept in the error.
package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/evsim/core/experiment"
	"github.com/kilianp07/evsim/infra/logger"
)

// Config describes how to launch the simulator.
type Config struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	// Timeout bounds a single run. Zero means no limit beyond the context.
	Timeout time.Duration `json:"timeout"`
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return errors.New("simulator command is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("simulator timeout must not be negative")
	}
	return nil
}

const stderrTail = 2048

// ExecSimulator implements experiment.Simulator over a subprocess.
type ExecSimulator struct {
	cfg Config
	log logger.Logger
}

// NewExecSimulator validates cfg and returns the adapter.
func NewExecSimulator(cfg Config) (*ExecSimulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ExecSimulator{cfg: cfg, log: logger.New("simulator")}, nil
}

// Simulate runs the process once.
func (s *ExecSimulator) Simulate(ctx context.Context, in experiment.SimulationInput) (*experiment.Outcome, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode simulation input: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.cfg.Command, s.cfg.Args...)
	cmd.Env = s.environ(in)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	s.log.Debugw("starting simulator", map[string]any{"command": s.cfg.Command, "algorithm": in.Algorithm})
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("simulator %s: %w", in.Algorithm, ctxErr)
		}
		return nil, fmt.Errorf("simulator %s: %w: %s", in.Algorithm, err, tail(stderr.Bytes()))
	}

	var out experiment.Outcome
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decode simulator output: %w", err)
	}
	s.log.Debugw("simulator finished", map[string]any{
		"algorithm": in.Algorithm,
		"elapsed":   time.Since(start).String(),
		"metrics":   len(out.Metrics),
	})
	return &out, nil
}

// environ passes the parent environment, the configured overrides in
// key order, then the run identity.
func (s *ExecSimulator) environ(in experiment.SimulationInput) []string {
	env := os.Environ()
	keys := make([]string, 0, len(s.cfg.Env))
	for k := range s.cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+s.cfg.Env[k])
	}
	return append(env,
		"EVSIM_SITE="+in.Site,
		"EVSIM_ALGORITHM="+in.Algorithm,
	)
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(b)
}
