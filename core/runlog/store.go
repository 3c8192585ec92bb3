// Package runlog keeps an append-only ledger of run state transitions.
package runlog

import (
	"context"
	"time"
)

// Record captures one run transition.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Algorithm string    `json:"algorithm"`
	Window    string    `json:"window"`
	Tariff    string    `json:"tariff"`
	Revenue   float64   `json:"revenue"`
	Scenario  string    `json:"scenario"`
	Status    string    `json:"status"`
	Dir       string    `json:"dir"`
	// DurationSeconds is set on terminal transitions.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match anything.
type Query struct {
	Start     time.Time
	End       time.Time
	RunID     string
	Algorithm string
	Status    string
	Scenario  string
}

// Match reports whether r satisfies every filter of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Algorithm != "" && r.Algorithm != q.Algorithm {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if q.Scenario != "" && r.Scenario != q.Scenario {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Latest keeps the last record of every run ID, in first-seen order.
func Latest(recs []Record) []Record {
	idx := make(map[string]int, len(recs))
	var out []Record
	for _, r := range recs {
		if i, ok := idx[r.RunID]; ok {
			out[i] = r
			continue
		}
		idx[r.RunID] = len(out)
		out = append(out, r)
	}
	return out
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
