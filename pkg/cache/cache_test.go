package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	t.Run("zero capacity uses default", func(t *testing.T) {
		c := New[string](0, 0)
		if c.capacity != 1024 {
			t.Errorf("expected default capacity 1024, got %d", c.capacity)
		}
	})

	t.Run("with ttl starts cleanup goroutine", func(t *testing.T) {
		c := New[string](100, 100*time.Millisecond)
		if c.cleanupStop == nil {
			t.Error("expected cleanup goroutine to be started")
		}
		c.Close()
	})

	t.Run("without cleanup option", func(t *testing.T) {
		c := New[string](100, time.Second, WithoutCleanup())
		if c.cleanupStop != nil {
			t.Error("expected no cleanup goroutine")
		}
	})
}

func TestGetSet(t *testing.T) {
	c := New[[]byte](10, 0)
	defer c.Close()

	c.Set("key1", []byte("value1"))
	val, ok := c.Get("key1")
	if !ok || string(val) != "value1" {
		t.Fatalf("expected value1, got %q ok=%v", val, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss")
	}
	c.Set("key1", []byte("value2"))
	val, _ = c.Get("key1")
	if string(val) != "value2" {
		t.Fatalf("expected updated value, got %q", val)
	}
	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 1 || stats.Size != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestLRUEviction(t *testing.T) {
	c := New[int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected least recently used key to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive")
	}
	if c.Stats().Evictions != 1 {
		t.Fatalf("expected one eviction, got %d", c.Stats().Evictions)
	}
}

func TestTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[bool](10, time.Minute, WithClock(func() time.Time { return now }), WithoutCleanup())
	c.Set("miss", true)
	if _, ok := c.Get("miss"); !ok {
		t.Fatalf("expected fresh entry")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("miss"); ok {
		t.Fatalf("expected expired entry")
	}
	if c.Stats().Expired != 1 {
		t.Fatalf("expected expired counter, got %+v", c.Stats())
	}
}

func TestCleanupOnce(t *testing.T) {
	now := time.Unix(0, 0)
	c := New[int](10, time.Second, WithClock(func() time.Time { return now }), WithoutCleanup())
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprint(i), i)
	}
	now = now.Add(2 * time.Second)
	c.cleanupOnce()
	if c.Stats().Size != 0 {
		t.Fatalf("expected all entries expired, size %d", c.Stats().Size)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int](64, time.Minute)
	defer c.Close()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("%d-%d", g, i%16)
				c.Set(key, i)
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Stats().Size > 64 {
		t.Fatalf("cache exceeded capacity: %d", c.Stats().Size)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	c := New[int](1, time.Second)
	c.Close()
	c.Close()
}
