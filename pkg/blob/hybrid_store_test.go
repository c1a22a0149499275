package blob

import (
	"bytes"
	"context"
	"testing"
)

func TestHybridStoreMirrorsWrites(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore(nil)
	secondary := NewMemoryStore(nil)
	hybrid, err := NewHybridStore(primary, secondary, HybridOptions{MirrorSecondary: true})
	if err != nil {
		t.Fatalf("new hybrid: %v", err)
	}
	if err := hybrid.Put(ctx, "retro/a/b/ab-64.svg", bytes.NewReader([]byte("hello")), 5, PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if ok, _ := Exists(ctx, primary, "retro/a/b/ab-64.svg"); !ok {
		t.Fatalf("primary missing object")
	}
	if ok, _ := Exists(ctx, secondary, "retro/a/b/ab-64.svg"); !ok {
		t.Fatalf("secondary missing object")
	}
}

func TestHybridStoreCachesOnRead(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore(nil)
	secondary := NewMemoryStore(nil)
	hybrid, err := NewHybridStore(primary, secondary, HybridOptions{MirrorSecondary: true, CacheOnRead: true})
	if err != nil {
		t.Fatalf("new hybrid: %v", err)
	}
	key := "wavatar/0/0/00-80.png"
	if err := hybrid.Put(ctx, key, bytes.NewReader([]byte("payload")), 7, PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	// Simulate primary loss.
	primary.Delete(ctx, key)
	body, _, err := ReadAll(ctx, hybrid, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("unexpected body %q", string(body))
	}
	if ok, _ := Exists(ctx, primary, key); !ok {
		t.Fatalf("expected cache refill in primary")
	}
}

func TestHybridStoreDeleteRemovesBothStores(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore(nil)
	secondary := NewMemoryStore(nil)
	hybrid, err := NewHybridStore(primary, secondary, HybridOptions{MirrorSecondary: true})
	if err != nil {
		t.Fatalf("new hybrid: %v", err)
	}
	key := "custom/1/2/12-64.png"
	if err := hybrid.Put(ctx, key, bytes.NewReader([]byte("gc-data")), 7, PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := hybrid.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if primary.Len() != 0 || secondary.Len() != 0 {
		t.Fatalf("data left after delete: primary=%d secondary=%d", primary.Len(), secondary.Len())
	}
}

func TestHybridStoreWalkMergesTiers(t *testing.T) {
	ctx := context.Background()
	primary := NewMemoryStore(nil)
	secondary := NewMemoryStore(nil)
	hybrid, err := NewHybridStore(primary, secondary, HybridOptions{})
	if err != nil {
		t.Fatalf("new hybrid: %v", err)
	}
	primary.Put(ctx, "ns/a/b/ab-1.png", bytes.NewReader([]byte("p")), 1, PutOptions{})
	secondary.Put(ctx, "ns/a/b/ab-1.png", bytes.NewReader([]byte("s")), 1, PutOptions{})
	secondary.Put(ctx, "ns/a/b/ab-2.png", bytes.NewReader([]byte("s")), 1, PutOptions{})
	var keys []string
	if err := hybrid.Walk(ctx, "ns", func(info Info) error {
		keys = append(keys, info.Key)
		return nil
	}); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected deduplicated keys, got %v", keys)
	}
}
