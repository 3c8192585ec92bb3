package metrics

import (
	"errors"
	"io"
)

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the event to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordRun(ev RunEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordCacheLookup forwards cache lookups to sinks that support them.
func (m *MultiSink) RecordCacheLookup(ev CacheEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CacheRecorder); ok {
			if err := rec.RecordCacheLookup(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordBuild forwards build summaries to sinks that support them.
func (m *MultiSink) RecordBuild(ev BuildEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BuildRecorder); ok {
			if err := rec.RecordBuild(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCache sends ev to s when it records cache lookups.
func RecordCache(s MetricsSink, ev CacheEvent) error {
	if rec, ok := s.(CacheRecorder); ok {
		return rec.RecordCacheLookup(ev)
	}
	return nil
}

// RecordBuildEvent sends ev to s when it records builds.
func RecordBuildEvent(s MetricsSink, ev BuildEvent) error {
	if rec, ok := s.(BuildRecorder); ok {
		return rec.RecordBuild(ev)
	}
	return nil
}

// Close closes every sink that holds resources and joins their errors.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
