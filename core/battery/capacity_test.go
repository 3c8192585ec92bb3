package battery

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evsim/core/model"
)

func TestDerivePicksSmallestPack(t *testing.T) {
	c, err := Derive(10, 24, 208, 5)
	require.NoError(t, err)
	assert.Equal(t, 16.0, c.CapacityKWh)
	assert.InDelta(t, 2.8, c.InitKWh, 1e-9)
}

func TestDeriveZeroEnergy(t *testing.T) {
	c, err := Derive(0, 1, 208, 5)
	require.NoError(t, err)
	assert.Equal(t, PackSizesKWh[0], c.CapacityKWh)
	assert.InDelta(t, PackSizesKWh[0]*TransitionSoC, c.InitKWh, 1e-12)
}

func TestDeriveFailures(t *testing.T) {
	cases := []struct {
		name     string
		energy   float64
		duration int64
		voltage  float64
		period   float64
		reason   Reason
	}{
		{"nan", math.NaN(), 12, 208, 5, ReasonNonFiniteEnergy},
		{"negative", -1, 12, 208, 5, ReasonNegativeEnergy},
		{"zero stay", 1, 0, 208, 5, ReasonNonPositiveStay},
		{"zero voltage", 1, 12, 0, 5, ReasonInvalidElectrical},
		{"rate", 10, 12, 208, 5, ReasonRateExceeded},
		{"too big", 90, 1000, 208, 5, ReasonNoFeasibleCapacity},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Derive(c.energy, c.duration, c.voltage, c.period)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCapacityDerivationFailed))
			var de *DerivationError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, c.reason, de.Reason)
			assert.Equal(t, string(c.reason), de.Fields()["reason"])
		})
	}
}

func TestResolveFallsBackToIdeal(t *testing.T) {
	out := Resolve(false, 10, 0, 208, 5, 6.656)
	require.Error(t, out.Fallback)
	assert.Equal(t, model.IdealBattery(10, 6.656), out.Battery)

	again := Resolve(false, 10, 0, 208, 5, 6.656)
	assert.Equal(t, out, again)
}

func TestResolveTwoStage(t *testing.T) {
	out := Resolve(false, 5, 12, 208, 5, 6.656)
	require.NoError(t, out.Fallback)
	assert.Equal(t, model.BatteryLinear2Stage, out.Battery.Kind)
	assert.Equal(t, 8.0, out.Battery.CapacityKWh)
	assert.InDelta(t, 1.4, out.Battery.InitKWh, 1e-9)
	assert.Equal(t, 6.656, out.Battery.MaxPowerKW)
}

func TestResolveIdeal(t *testing.T) {
	out := Resolve(true, 5, 0, 208, 5, 6.656)
	assert.NoError(t, out.Fallback)
	assert.Equal(t, model.BatteryIdeal, out.Battery.Kind)
	assert.Equal(t, 5.0, out.Battery.CapacityKWh)
	assert.Zero(t, out.Battery.InitKWh)
}
