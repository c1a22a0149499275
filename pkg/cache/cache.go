package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds cache statistics.
type Stats struct {
	Hits      int64 // Number of cache hits
	Misses    int64 // Number of cache misses
	Size      int   // Current number of entries
	Capacity  int   // Maximum capacity
	Evictions int64 // Number of evicted entries
	Expired   int64 // Number of expired entries
}

// Cache is a threadsafe LRU keyed by string with optional TTL.
type Cache[V any] struct {
	mu          sync.RWMutex
	ll          *list.List
	items       map[string]*list.Element
	capacity    int
	ttl         time.Duration
	now         func() time.Time
	stats       Stats
	cleanupStop context.CancelFunc
	cleanupDone chan struct{}
}

type entry[V any] struct {
	key    string
	value  V
	expire time.Time
}

// Option customises a Cache.
type Option func(*options)

type options struct {
	now     func() time.Time
	cleanup bool
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithoutCleanup disables the background expiry goroutine; expired entries
// are then only dropped lazily on access.
func WithoutCleanup() Option {
	return func(o *options) { o.cleanup = false }
}

// New returns a cache with given capacity and ttl.
// If ttl > 0, starts a background goroutine to periodically clean expired entries.
func New[V any](capacity int, ttl time.Duration, opts ...Option) *Cache[V] {
	if capacity <= 0 {
		capacity = 1024
	}
	o := options{now: time.Now, cleanup: true}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Cache[V]{
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		capacity: capacity,
		ttl:      ttl,
		now:      o.now,
	}
	if ttl > 0 && o.cleanup {
		c.cleanupDone = make(chan struct{})
		ctx, cancel := context.WithCancel(context.Background())
		c.cleanupStop = cancel
		go c.cleanupExpired(ctx, ttl)
	}
	return c
}

// Get retrieves a value if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	if ele, ok := c.items[key]; ok {
		ent := ele.Value.(*entry[V])
		if c.ttl > 0 && c.now().After(ent.expire) {
			c.removeElement(ele)
			atomic.AddInt64(&c.stats.Expired, 1)
			atomic.AddInt64(&c.stats.Misses, 1)
			return zero, false
		}
		c.ll.MoveToFront(ele)
		atomic.AddInt64(&c.stats.Hits, 1)
		return ent.value, true
	}
	atomic.AddInt64(&c.stats.Misses, 1)
	return zero, false
}

// Set inserts or updates a cache entry.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.items[key]; ok {
		c.ll.MoveToFront(ele)
		ent := ele.Value.(*entry[V])
		ent.value = value
		if c.ttl > 0 {
			ent.expire = c.now().Add(c.ttl)
		}
		return
	}
	if c.ll.Len() >= c.capacity {
		c.evictOldest()
	}
	ent := &entry[V]{key: key, value: value}
	if c.ttl > 0 {
		ent.expire = c.now().Add(c.ttl)
	}
	ele := c.ll.PushFront(ent)
	c.items[key] = ele
}

// Delete removes a key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ele, ok := c.items[key]; ok {
		c.removeElement(ele)
	}
}

func (c *Cache[V]) evictOldest() {
	ele := c.ll.Back()
	if ele != nil {
		c.removeElement(ele)
		atomic.AddInt64(&c.stats.Evictions, 1)
	}
}

func (c *Cache[V]) removeElement(ele *list.Element) {
	c.ll.Remove(ele)
	ent := ele.Value.(*entry[V])
	delete(c.items, ent.key)
}

// Stats returns current cache statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:      atomic.LoadInt64(&c.stats.Hits),
		Misses:    atomic.LoadInt64(&c.stats.Misses),
		Size:      c.ll.Len(),
		Capacity:  c.capacity,
		Evictions: atomic.LoadInt64(&c.stats.Evictions),
		Expired:   atomic.LoadInt64(&c.stats.Expired),
	}
}

func (c *Cache[V]) cleanupExpired(ctx context.Context, interval time.Duration) {
	every := interval / 2
	if every < time.Minute {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	defer close(c.cleanupDone)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanupOnce()
		}
	}
}

// cleanupOnce removes all expired entries in one pass.
func (c *Cache[V]) cleanupOnce() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ttl <= 0 {
		return
	}
	now := c.now()
	var expired []*list.Element
	for _, ele := range c.items {
		if now.After(ele.Value.(*entry[V]).expire) {
			expired = append(expired, ele)
		}
	}
	for _, ele := range expired {
		c.removeElement(ele)
		atomic.AddInt64(&c.stats.Expired, 1)
	}
}

// Close stops the background cleanup goroutine and waits for it to finish.
// It's safe to call Close multiple times.
func (c *Cache[V]) Close() error {
	c.mu.Lock()
	stop, done := c.cleanupStop, c.cleanupDone
	c.cleanupStop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
		if done != nil {
			<-done
		}
	}
	return nil
}
