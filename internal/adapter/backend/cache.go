package backend

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/accident-dashboard/internal/domain"
	"github.com/couchcryptid/accident-dashboard/internal/observability"
)

// CachedSource wraps a DataSource with in-memory LRU caches shared by all
// sessions. Entries expire after ttl so backend refreshes become visible.
type CachedSource struct {
	inner     domain.DataSource
	lists     *lruCache[[]string]
	analytics *lruCache[domain.Bundle]
	metrics   *observability.Metrics
}

// NewCachedSource creates a cache decorator around a data source.
func NewCachedSource(inner domain.DataSource, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedSource {
	return &CachedSource{
		inner:     inner,
		lists:     newLRUCache[[]string](maxEntries, ttl, clock),
		analytics: newLRUCache[domain.Bundle](maxEntries, ttl, clock),
		metrics:   metrics,
	}
}

func (c *CachedSource) States(ctx context.Context) ([]string, error) {
	return cached(c, c.lists, domain.QueryStates, "states", func() ([]string, error) {
		return c.inner.States(ctx)
	})
}

func (c *CachedSource) Cities(ctx context.Context, state string) ([]string, error) {
	return cached(c, c.lists, domain.QueryCities, "cities:"+state, func() ([]string, error) {
		return c.inner.Cities(ctx, state)
	})
}

func (c *CachedSource) Analytics(ctx context.Context, key domain.FetchKey) (domain.Bundle, error) {
	return cached(c, c.analytics, domain.QueryAnalytics, key.String(), func() (domain.Bundle, error) {
		return c.inner.Analytics(ctx, key)
	})
}

// cached looks key up and falls through to load on a miss. Only non-empty
// results are stored so an empty answer is asked again next time.
func cached[V []string | domain.Bundle](c *CachedSource, cache *lruCache[V], query, key string, load func() (V, error)) (V, error) {
	if v, ok := cache.get(key); ok {
		c.metrics.BackendCache.WithLabelValues(query, "hit").Inc()
		return v, nil
	}
	c.metrics.BackendCache.WithLabelValues(query, "miss").Inc()

	v, err := load()
	if err != nil {
		return v, err
	}
	if len(v) > 0 {
		cache.put(key, v)
	}
	return v, nil
}

// lruCache is a simple thread-safe LRU cache with per-entry expiry.
type lruCache[V any] struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry[V]
	head       *entry[V] // most recently used
	tail       *entry[V] // least recently used
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
	prev    *entry[V]
	next    *entry[V]
}

func newLRUCache[V any](maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache[V] {
	return &lruCache[V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry[V]),
	}
}

func (c *lruCache[V]) get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[V]) put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry[V]{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[V]) moveToFront(e *entry[V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[V]) addToFront(e *entry[V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[V]) remove(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
