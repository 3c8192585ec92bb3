package eventcache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/evsim/core/metrics"
	"github.com/kilianp07/evsim/core/model"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saveErr error
	saves   int
}

func newMemStore() *memStore { return &memStore{data: map[string][]byte{}} }

func (m *memStore) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.data[name]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *memStore) Save(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[name] = append([]byte(nil), data...)
	return nil
}

type lookupSink struct {
	metrics.NopSink
	results []metrics.CacheResult
}

func (s *lookupSink) RecordCacheLookup(ev metrics.CacheEvent) error {
	s.results = append(s.results, ev.Result)
	return nil
}

func sampleQueue() *model.EventQueue {
	est := 2.5
	return model.NewEventQueue([]model.ChargingSession{
		{
			SessionID: "b", StationID: "CA-1", Arrival: 12, Departure: 40,
			RequestedEnergy: 10, ObservedEnergy: 10, EstimatedDeparture: 42,
			EstimatedRequestedEnergy: 11, EstimatedDuration: &est, SessionDuration: 2.33,
			Battery: model.Battery{Kind: model.BatteryLinear2Stage, CapacityKWh: 16, InitKWh: 2.8, MaxPowerKW: 6.656, TransitionSoC: 0.8},
		},
		{
			SessionID: "a", StationID: "CA-2", Arrival: 3, Departure: 20,
			RequestedEnergy: 5, ObservedEnergy: 5, EstimatedDeparture: 20,
			EstimatedRequestedEnergy: 5, SessionDuration: 1.4,
			Battery: model.IdealBattery(5, 6.656),
		},
	})
}

func countingBuild(calls *int, q *model.EventQueue) BuildFunc {
	return func(context.Context) (*model.EventQueue, error) {
		*calls++
		return q, nil
	}
}

func TestGetOrBuildWritesThroughThenHits(t *testing.T) {
	store := newMemStore()
	sink := &lookupSink{}
	c := New(store, nil, sink)
	key := NewKey("caltech", testWindow(), "baseline", baseOptions())
	calls := 0
	build := countingBuild(&calls, sampleQueue())

	q1, l1, err := c.GetOrBuild(context.Background(), key, build)
	require.NoError(t, err)
	assert.Equal(t, Miss, l1)

	q2, l2, err := c.GetOrBuild(context.Background(), key, build)
	require.NoError(t, err)
	assert.Equal(t, Hit, l2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, q1, q2)
	assert.Equal(t, []metrics.CacheResult{metrics.CacheMiss, metrics.CacheHit}, sink.results)
}

func TestGetOrBuildFileStoreRoundTrip(t *testing.T) {
	c := New(NewFileStore(t.TempDir()), nil, nil)
	key := NewKey("jpl", testWindow(), "baseline", baseOptions())
	calls := 0
	want := sampleQueue()

	_, _, err := c.GetOrBuild(context.Background(), key, countingBuild(&calls, want))
	require.NoError(t, err)
	got, lookup, err := c.GetOrBuild(context.Background(), key, countingBuild(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, Hit, lookup)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)
}

func TestGetOrBuildDistinctOptionsDoNotCollide(t *testing.T) {
	c := New(newMemStore(), nil, nil)
	opts := baseOptions()
	k1 := NewKey("caltech", testWindow(), "baseline", opts)
	opts.MaxLen = 144
	k2 := NewKey("caltech", testWindow(), "baseline", opts)

	calls := 0
	_, _, err := c.GetOrBuild(context.Background(), k1, countingBuild(&calls, sampleQueue()))
	require.NoError(t, err)
	_, lookup, err := c.GetOrBuild(context.Background(), k2, countingBuild(&calls, &model.EventQueue{}))
	require.NoError(t, err)
	assert.Equal(t, Miss, lookup)
	assert.Equal(t, 2, calls)
}

func TestGetOrBuildRebuildsCorruptEntry(t *testing.T) {
	store := newMemStore()
	sink := &lookupSink{}
	c := New(store, nil, sink)
	key := NewKey("caltech", testWindow(), "baseline", baseOptions())
	store.data[key.Name()] = []byte("{not json")

	calls := 0
	q, lookup, err := c.GetOrBuild(context.Background(), key, countingBuild(&calls, sampleQueue()))
	require.NoError(t, err)
	assert.Equal(t, Rebuilt, lookup)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, calls)
	assert.Equal(t, []metrics.CacheResult{metrics.CacheCorrupt}, sink.results)

	_, lookup, err = c.GetOrBuild(context.Background(), key, countingBuild(&calls, nil))
	require.NoError(t, err)
	assert.Equal(t, Hit, lookup)
	assert.Equal(t, 1, calls)
}

func TestLoadRejectsMismatchedKey(t *testing.T) {
	store := newMemStore()
	c := New(store, nil, nil)
	k1 := NewKey("caltech", testWindow(), "baseline", baseOptions())
	_, _, err := c.GetOrBuild(context.Background(), k1, countingBuild(new(int), sampleQueue()))
	require.NoError(t, err)

	other := k1
	other.Site = "jpl"
	_, err = c.load(context.Background(), k1.Name(), other.Canonical())
	var readErr *CacheReadError
	require.ErrorAs(t, err, &readErr)
	assert.ErrorIs(t, err, errKeyMismatch)
}

func TestGetOrBuildPersistFailureStillReturnsQueue(t *testing.T) {
	store := newMemStore()
	store.saveErr = errors.New("disk full")
	c := New(store, nil, nil)
	key := NewKey("caltech", testWindow(), "baseline", baseOptions())

	q, lookup, err := c.GetOrBuild(context.Background(), key, countingBuild(new(int), sampleQueue()))
	require.NoError(t, err)
	assert.Equal(t, Miss, lookup)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 1, store.saves)
}

func TestGetOrBuildPropagatesBuildError(t *testing.T) {
	c := New(newMemStore(), nil, nil)
	key := NewKey("caltech", testWindow(), "baseline", baseOptions())
	boom := errors.New("source unavailable")
	_, _, err := c.GetOrBuild(context.Background(), key, func(context.Context) (*model.EventQueue, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}
