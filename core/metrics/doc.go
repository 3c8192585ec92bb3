// Package metrics defines the observability sinks fed by the synthesis and
// experiment pipeline.
//
// A MetricsSink only has to record run transitions. Sinks may additionally
// implement CacheRecorder and BuildRecorder; MultiSink forwards those events
// to the sinks that support them.
package metrics
