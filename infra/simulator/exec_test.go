package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evsim/core/experiment"
	"github.com/kilianp07/evsim/core/model"
)

// TestHelperProcess is not a real test; it stands in for the simulator
// binary when re-executed by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("EVSIM_HELPER_PROCESS") != "1" {
		return
	}
	var in experiment.SimulationInput
	if err := json.NewDecoder(os.Stdin).Decode(&in); err != nil {
		fmt.Fprintln(os.Stderr, "bad input:", err)
		os.Exit(2)
	}
	switch os.Getenv("HELPER_MODE") {
	case "fail":
		fmt.Fprintln(os.Stderr, "solver diverged")
		os.Exit(1)
	case "garbage":
		fmt.Fprint(os.Stdout, "not json")
	case "sleep":
		time.Sleep(10 * time.Second)
	default:
		out := experiment.Outcome{
			State: json.RawMessage(fmt.Sprintf(`{"algorithm":%q,"site":%q}`, os.Getenv("EVSIM_ALGORITHM"), os.Getenv("EVSIM_SITE"))),
			Metrics: map[string]float64{
				experiment.MetricTotalEnergyRequested: float64(in.Queue.Len()),
				experiment.MetricPeakCurrent:          in.Voltage,
			},
		}
		_ = json.NewEncoder(os.Stdout).Encode(out)
	}
	os.Exit(0)
}

func helper(mode string, timeout time.Duration) Config {
	return Config{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess"},
		Env:     map[string]string{"EVSIM_HELPER_PROCESS": "1", "HELPER_MODE": mode},
		Timeout: timeout,
	}
}

func input() experiment.SimulationInput {
	return experiment.SimulationInput{
		Site:          "caltech",
		Algorithm:     "llf",
		PeriodMinutes: 5,
		Voltage:       220,
		Queue:         model.NewEventQueue(nil),
	}
}

func TestExecSimulatorSuccess(t *testing.T) {
	sim, err := NewExecSimulator(helper("ok", 0))
	require.NoError(t, err)

	out, err := sim.Simulate(context.Background(), input())
	require.NoError(t, err)
	assert.JSONEq(t, `{"algorithm":"llf","site":"caltech"}`, string(out.State))
	assert.Equal(t, 220.0, out.Metrics[experiment.MetricPeakCurrent])
	assert.Equal(t, 0.0, out.Metrics[experiment.MetricTotalEnergyRequested])
}

func TestExecSimulatorFailureKeepsStderr(t *testing.T) {
	sim, err := NewExecSimulator(helper("fail", 0))
	require.NoError(t, err)
	_, err = sim.Simulate(context.Background(), input())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solver diverged")
}

func TestExecSimulatorBadOutput(t *testing.T) {
	sim, err := NewExecSimulator(helper("garbage", 0))
	require.NoError(t, err)
	_, err = sim.Simulate(context.Background(), input())
	assert.ErrorContains(t, err, "decode simulator output")
}

func TestExecSimulatorTimeout(t *testing.T) {
	sim, err := NewExecSimulator(helper("sleep", 200*time.Millisecond))
	require.NoError(t, err)
	_, err = sim.Simulate(context.Background(), input())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigValidate(t *testing.T) {
	_, err := NewExecSimulator(Config{})
	assert.Error(t, err)
	_, err = NewExecSimulator(Config{Command: "sim", Timeout: -time.Second})
	assert.Error(t, err)
}
