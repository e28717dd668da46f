package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/crmkit/logger"
)

// Producer computes the value for a missing key.
type Producer func(ctx context.Context) (any, error)

// Observer is told about every lookup that goes through the cache.
type Observer func(ctx context.Context, key string, hit bool)

// Entry is a stored result. Entries are immutable once stored.
type Entry struct {
	Value    any
	StoredAt time.Time
	TTL      time.Duration
}

// Fresh reports whether the entry is still valid at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Sub(e.StoredAt) < e.TTL
}

// Age returns how long ago the entry was stored.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// Cache maps keys to entries and collapses concurrent misses per key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	flights singleflight.Group

	now      func() time.Time
	observer Observer
	log      *logger.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithObserver registers a lookup observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrNop(c.log).WithComponent("cache")
	return c
}

// Get returns the live value for key or runs producer to compute it.
//
// A ttl <= 0 disables caching for the call: producer always runs on the
// caller's context and nothing is stored or shared.
//
// The producer of a shared flight runs on a context detached from the
// caller's cancellation, so a caller giving up (Get returns ctx.Err())
// does not fail the other waiters.
func (c *Cache) Get(ctx context.Context, key string, ttl time.Duration, producer Producer) (any, error) {
	if ttl <= 0 {
		return producer(ctx)
	}

	if v, ok := c.lookup(key); ok {
		c.observe(ctx, key, true)
		return v, nil
	}
	c.observe(ctx, key, false)

	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(key, func() (any, error) {
		// another flight may have stored a value between our lookup and now
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v, err := producer(flightCtx)
		if err != nil {
			c.log.Debug("producer failed", logger.Fields(logger.FieldCacheKey, key, logger.FieldError, err.Error()))
			return nil, err
		}
		c.store(key, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Peek returns the last stored entry for key, fresh or not.
func (c *Cache) Peek(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Len returns the number of stored entries, including stale ones.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !e.Fresh(c.now()) {
		return nil, false
	}
	return e.Value, true
}

func (c *Cache) store(key string, v any, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry{Value: v, StoredAt: c.now(), TTL: ttl}
	c.mu.Unlock()
}

func (c *Cache) observe(ctx context.Context, key string, hit bool) {
	if c.observer != nil {
		c.observer(ctx, key, hit)
	}
}

// Fetch is the typed form of Cache.Get.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, producer func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	v, err := c.Get(ctx, key, ttl, func(ctx context.Context) (any, error) {
		return producer(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cache: entry %q holds %T, not %T", key, v, zero)
	}
	return t, nil
}

// PeekAs is the typed form of Cache.Peek.
func PeekAs[T any](c *Cache, key string) (T, Entry, bool) {
	var zero T
	e, ok := c.Peek(key)
	if !ok {
		return zero, Entry{}, false
	}
	t, ok := e.Value.(T)
	if !ok {
		return zero, Entry{}, false
	}
	return t, e, true
}
