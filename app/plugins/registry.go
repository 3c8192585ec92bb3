// Package plugins maps configured backend names to store constructors.
package plugins

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilianp07/evsim/config"
	"github.com/kilianp07/evsim/core/eventcache"
	"github.com/kilianp07/evsim/core/runlog"
)

// LedgerFactory builds a run ledger from its configuration.
type LedgerFactory func(cfg config.LedgerConfig) (runlog.Store, error)

// EventStoreFactory builds an event cache store from the full configuration.
type EventStoreFactory func(cfg *config.Config) (eventcache.Store, error)

var (
	Ledgers     = map[string]LedgerFactory{}
	EventStores = map[string]EventStoreFactory{}
)

func RegisterLedger(name string, f LedgerFactory)         { Ledgers[name] = f }
func RegisterEventStore(name string, f EventStoreFactory) { EventStores[name] = f }

// NewLedger builds the ledger named by cfg.Backend.
func NewLedger(cfg config.LedgerConfig) (runlog.Store, error) {
	f, ok := Ledgers[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown ledger backend %q (known: %s)", cfg.Backend, known(Ledgers))
	}
	return f(cfg)
}

// NewEventStore builds the event store named by cfg.EventCache.Backend.
func NewEventStore(cfg *config.Config) (eventcache.Store, error) {
	f, ok := EventStores[cfg.EventCache.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown event cache backend %q (known: %s)", cfg.EventCache.Backend, known(EventStores))
	}
	return f(cfg)
}

func known[F any](m map[string]F) string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
