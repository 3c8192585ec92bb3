package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evsim/core/factory"
	coremetrics "github.com/kilianp07/evsim/core/metrics"
)

func TestBuiltinSinksRegistered(t *testing.T) {
	s, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	require.NoError(t, err)
	assert.IsType(t, coremetrics.NopSink{}, s)

	_, err = coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "statsd"}})
	assert.ErrorContains(t, err, "unknown module type")
}

func TestMQTTSinkFactoryRejectsMissingBroker(t *testing.T) {
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "mqtt", Conf: map[string]any{}}})
	assert.ErrorContains(t, err, "broker is required")
}

func TestPrometheusFactoryIsReusable(t *testing.T) {
	cfgs := []factory.ModuleConfig{{Type: "prometheus"}, {Type: "nop"}}
	first, err := coremetrics.NewMetricsSink(cfgs)
	require.NoError(t, err)
	second, err := coremetrics.NewMetricsSink(cfgs)
	require.NoError(t, err)
	assert.IsType(t, &coremetrics.MultiSink{}, first)
	assert.IsType(t, &coremetrics.MultiSink{}, second)
}
