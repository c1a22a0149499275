package meta

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

func TestBoltStoreSaltIsGeneratedOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "meta.db")
	store, err := NewBoltStore(BoltConfig{Path: path})
	if err != nil {
		t.Fatalf("new bolt store: %v", err)
	}
	first, err := store.Salt(ctx)
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	if len(first) != SaltBytes*2 {
		t.Fatalf("expected %d hex chars, got %q", SaltBytes*2, first)
	}
	second, _ := store.Salt(ctx)
	if first != second {
		t.Fatalf("salt changed between calls: %s vs %s", first, second)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewBoltStore(BoltConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	third, err := reopened.Salt(ctx)
	if err != nil {
		t.Fatalf("salt after reopen: %v", err)
	}
	if third != first {
		t.Fatalf("salt not persisted: %s vs %s", first, third)
	}
}

func TestBoltStoreSources(t *testing.T) {
	ctx := context.Background()
	store, err := NewBoltStore(BoltConfig{Path: filepath.Join(t.TempDir(), "meta.db"), NoSync: true})
	if err != nil {
		t.Fatalf("new bolt store: %v", err)
	}
	defer store.Close()

	if _, err := store.Source(ctx, "legacy", "ab"); !xerrors.Is(err, xerrors.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	src := Source{Namespace: "legacy", Hash: "ab", Value: "https://example.com/a.png", MimeType: "image/png"}
	if err := store.PutSource(ctx, src); err != nil {
		t.Fatalf("put source: %v", err)
	}
	got, err := store.Source(ctx, "legacy", "ab")
	if err != nil {
		t.Fatalf("source: %v", err)
	}
	if got.Value != src.Value || got.MimeType != "image/png" || got.Updated.IsZero() {
		t.Fatalf("unexpected source %+v", got)
	}
	if _, err := store.Source(ctx, "user", "ab"); err == nil {
		t.Fatalf("namespaces must not collide")
	}
	if err := store.DeleteSource(ctx, "legacy", "ab"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Source(ctx, "legacy", "ab"); err == nil {
		t.Fatalf("expected source to be gone")
	}
}

func TestBoltStoreRequiresPath(t *testing.T) {
	if _, err := NewBoltStore(BoltConfig{}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	fixed := NewMemoryStore("pepper")
	if salt, _ := fixed.Salt(ctx); salt != "pepper" {
		t.Fatalf("expected fixed salt, got %q", salt)
	}
	store := NewMemoryStore("")
	salt, err := store.Salt(ctx)
	if err != nil || len(salt) != SaltBytes*2 {
		t.Fatalf("unexpected salt %q: %v", salt, err)
	}
	if again, _ := store.Salt(ctx); again != salt {
		t.Fatalf("salt changed")
	}
	if err := store.PutSource(ctx, Source{Hash: "x"}); err == nil {
		t.Fatalf("expected namespace to be required")
	}
	if err := store.PutSource(ctx, Source{Namespace: "user", Hash: "x", Value: "/tmp/x.png"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Source(ctx, "user", "x")
	if err != nil || got.Value != "/tmp/x.png" {
		t.Fatalf("unexpected %+v %v", got, err)
	}
}
