package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	runs   int
	caches int
}

func (r *recordSink) RecordRun(RunEvent) error {
	r.runs++
	return nil
}

func (r *recordSink) RecordCacheLookup(CacheEvent) error {
	r.caches++
	return nil
}

type runOnlySink struct{ runs int }

func (r *runOnlySink) RecordRun(RunEvent) error {
	r.runs++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &runOnlySink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordRun(RunEvent{Status: RunCompleted}); err != nil {
		t.Fatalf("record run: %v", err)
	}
	if err := m.RecordCacheLookup(CacheEvent{Result: CacheHit}); err != nil {
		t.Fatalf("record cache: %v", err)
	}
	if err := m.RecordBuild(BuildEvent{}); err != nil {
		t.Fatalf("record build: %v", err)
	}
	if s1.runs != 1 || s2.runs != 1 {
		t.Fatalf("runs not forwarded: %d %d", s1.runs, s2.runs)
	}
	if s1.caches != 1 {
		t.Fatalf("cache lookup not forwarded")
	}
}

func TestRecordHelpersIgnoreUnsupportedSinks(t *testing.T) {
	if err := RecordCache(&runOnlySink{}, CacheEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := &recordSink{}
	if err := RecordCache(s, CacheEvent{}); err != nil || s.caches != 1 {
		t.Fatalf("cache lookup not recorded")
	}
	if err := RecordBuildEvent(NopSink{}, BuildEvent{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewMetricsSinkEmpty(t *testing.T) {
	s, err := NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}
}

type closingSink struct {
	runOnlySink
	closed bool
	err    error
}

func (c *closingSink) Close() error {
	c.closed = true
	return c.err
}

func TestMultiSinkClose(t *testing.T) {
	a := &closingSink{}
	b := &closingSink{err: errors.New("flush failed")}
	m := NewMultiSink(a, &runOnlySink{}, b)
	err := m.Close()
	if !a.closed || !b.closed {
		t.Fatalf("sinks not closed")
	}
	if !errors.Is(err, b.err) {
		t.Fatalf("expected close error, got %v", err)
	}
}
