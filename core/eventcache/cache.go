package eventcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/evsim/core/logger"
	"github.com/kilianp07/evsim/core/metrics"
	"github.com/kilianp07/evsim/core/model"
)

const entryVersion = 1

// Lookup describes how GetOrBuild produced its queue.
type Lookup string

const (
	Hit Lookup = "hit"
	// Miss means no entry existed and the queue was built.
	Miss Lookup = "miss"
	// Rebuilt means an entry existed but could not be used.
	Rebuilt Lookup = "rebuilt"
)

// BuildFunc produces the queue for a key on a miss.
type BuildFunc func(ctx context.Context) (*model.EventQueue, error)

// CacheReadError reports an entry that exists but cannot be used.
type CacheReadError struct {
	Name string
	Err  error
}

func (e *CacheReadError) Error() string {
	return fmt.Sprintf("read cache entry %s: %v", e.Name, e.Err)
}

func (e *CacheReadError) Unwrap() error { return e.Err }

var errKeyMismatch = errors.New("stored key does not match")

type entry struct {
	Version int               `json:"version"`
	Key     string            `json:"key"`
	Queue   *model.EventQueue `json:"queue"`
}

// Cache is a write-through cache of event queues.
type Cache struct {
	store Store
	log   logger.Logger
	sink  metrics.MetricsSink
	now   func() time.Time
}

// New returns a Cache over store. log and sink may be nil.
func New(store Store, log logger.Logger, sink metrics.MetricsSink) *Cache {
	if log == nil {
		log = logger.NopLogger{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Cache{store: store, log: log, sink: sink, now: time.Now}
}

// GetOrBuild returns the cached queue for key, or builds, stores and returns
// it. build is not called on a hit. Failure to persist a freshly built queue
// is logged and does not fail the call.
func (c *Cache) GetOrBuild(ctx context.Context, key Key, build BuildFunc) (*model.EventQueue, Lookup, error) {
	name := key.Name()
	lookup := Miss

	q, err := c.load(ctx, name, key.Canonical())
	switch {
	case err == nil:
		c.record(name, metrics.CacheHit)
		c.log.Debugw("event cache hit", map[string]any{"key": name, "events": q.Len()})
		return q, Hit, nil
	case errors.Is(err, ErrNotFound):
		c.record(name, metrics.CacheMiss)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, "", err
	default:
		lookup = Rebuilt
		c.record(name, metrics.CacheCorrupt)
		c.log.Warnw("unusable event cache entry, rebuilding", map[string]any{"key": name, "error": err.Error()})
	}

	q, err = build(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("build events for %s: %w", name, err)
	}
	if q == nil {
		q = &model.EventQueue{}
	}
	if err := c.save(ctx, name, key.Canonical(), q); err != nil {
		c.log.Warnw("persist event cache entry", map[string]any{"key": name, "error": err.Error()})
	}
	return q, lookup, nil
}

func (c *Cache) load(ctx context.Context, name, canonical string) (*model.EventQueue, error) {
	data, err := c.store.Load(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &CacheReadError{Name: name, Err: err}
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &CacheReadError{Name: name, Err: err}
	}
	if e.Version != entryVersion {
		return nil, &CacheReadError{Name: name, Err: fmt.Errorf("unsupported version %d", e.Version)}
	}
	if e.Key != canonical {
		return nil, &CacheReadError{Name: name, Err: errKeyMismatch}
	}
	if e.Queue == nil {
		return nil, &CacheReadError{Name: name, Err: errors.New("missing queue")}
	}
	return e.Queue, nil
}

func (c *Cache) save(ctx context.Context, name, canonical string, q *model.EventQueue) error {
	data, err := json.Marshal(entry{Version: entryVersion, Key: canonical, Queue: q})
	if err != nil {
		return err
	}
	return c.store.Save(ctx, name, data)
}

func (c *Cache) record(name string, res metrics.CacheResult) {
	if err := metrics.RecordCache(c.sink, metrics.CacheEvent{Key: name, Result: res, Time: c.now()}); err != nil {
		c.log.Errorf("record cache lookup: %v", err)
	}
}
