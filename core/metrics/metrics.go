package metrics

import "time"

// RunStatus mirrors the run states persisted in run manifests.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunSkipped   RunStatus = "skipped"
)

// RunEvent is emitted on every run transition.
type RunEvent struct {
	RunID     string
	Algorithm string
	Window    string
	Tariff    string
	Revenue   float64
	Scenario  string
	Status    RunStatus
	Duration  time.Duration
	Metrics   map[string]float64
	Error     string
	Time      time.Time
}

// MetricsSink records run transitions.
type MetricsSink interface {
	RecordRun(ev RunEvent) error
}

// CacheResult is the outcome of an event cache lookup.
type CacheResult string

const (
	CacheHit     CacheResult = "hit"
	CacheMiss    CacheResult = "miss"
	CacheCorrupt CacheResult = "corrupt"
)

// CacheEvent describes one event cache lookup.
type CacheEvent struct {
	Key    string
	Result CacheResult
	Time   time.Time
}

// CacheRecorder records event cache lookups.
type CacheRecorder interface {
	RecordCacheLookup(ev CacheEvent) error
}

// BuildEvent summarizes one event queue build.
type BuildEvent struct {
	Window    string
	Scenario  string
	Converted int
	Skipped   int
	Filtered  int
	Fallbacks int
	Time      time.Time
}

// BuildRecorder records event queue builds.
type BuildRecorder interface {
	RecordBuild(ev BuildEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunEvent) error           { return nil }
func (NopSink) RecordCacheLookup(CacheEvent) error { return nil }
func (NopSink) RecordBuild(BuildEvent) error       { return nil }
