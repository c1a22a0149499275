package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
)

func TestPathStorePutCreatesParents(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewPathStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	key := "identicon/a/b/ab12-64.svg"
	if err := store.Put(ctx, key, strings.NewReader("<svg/>"), 6, PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "identicon", "a", "b", "ab12-64.svg"))
	if err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	if string(data) != "<svg/>" {
		t.Fatalf("unexpected contents %q", data)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "identicon", "a", "b"))
	if len(entries) != 1 {
		t.Fatalf("expected temp file to be renamed away, got %d entries", len(entries))
	}
}

func TestPathStorePutWithoutOverwriteKeepsExisting(t *testing.T) {
	ctx := context.Background()
	store, err := NewPathStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Put(ctx, "a/b/c.png", strings.NewReader("first"), -1, PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "a/b/c.png", strings.NewReader("second"), -1, PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, _, err := ReadAll(ctx, store, "a/b/c.png")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "first" {
		t.Fatalf("expected first write to win, got %q", data)
	}
	if err := store.Put(ctx, "a/b/c.png", strings.NewReader("third"), -1, PutOptions{Overwrite: true}); err != nil {
		t.Fatalf("put overwrite: %v", err)
	}
	data, _, _ = ReadAll(ctx, store, "a/b/c.png")
	if string(data) != "third" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}

func TestPathStoreShortWriteLeavesNothing(t *testing.T) {
	ctx := context.Background()
	store := NewPathStoreFS(memfs.New())
	if err := store.Put(ctx, "x/y/z.png", strings.NewReader("abc"), 10, PutOptions{}); err == nil {
		t.Fatalf("expected short write error")
	}
	if ok, _ := Exists(ctx, store, "x/y/z.png"); ok {
		t.Fatalf("partial object must not exist")
	}
	var seen []string
	store.Walk(ctx, "", func(info Info) error {
		seen = append(seen, info.Key)
		return nil
	})
	if len(seen) != 0 {
		t.Fatalf("expected no objects, got %v", seen)
	}
}

func TestPathStoreStatAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewPathStoreFS(memfs.New())
	if _, err := store.Stat(ctx, "missing/a/b.png"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.Put(ctx, "k/a/b.png", strings.NewReader("12345"), 5, PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	info, err := store.Stat(ctx, "k/a/b.png")
	if err != nil || info.Size != 5 {
		t.Fatalf("stat: %+v %v", info, err)
	}
	if err := store.Delete(ctx, "k/a/b.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "k/a/b.png"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestPathStoreWalkAndPrune(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewPathStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"custom/7/a/7a-64.png", "custom/7/a/7a-128.png", "user/1/2/12-64.png"} {
		if err := store.Put(ctx, key, strings.NewReader(key), -1, PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	var keys []string
	if err := store.Walk(ctx, "custom", func(info Info) error {
		keys = append(keys, info.Key)
		return nil
	}); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(keys) != 2 || keys[0] != "custom/7/a/7a-128.png" || keys[1] != "custom/7/a/7a-64.png" {
		t.Fatalf("unexpected walk order %v", keys)
	}
	if err := store.Walk(ctx, "nope", func(Info) error { return nil }); err != nil {
		t.Fatalf("walking a missing prefix should succeed: %v", err)
	}
	for _, key := range keys {
		store.Delete(ctx, key)
	}
	if err := store.Prune(ctx, "custom"); err != nil {
		t.Fatalf("prune: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "custom", "7")); !os.IsNotExist(err) {
		t.Fatalf("expected empty shard dirs removed, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "custom")); err != nil {
		t.Fatalf("prefix directory itself should remain: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "user", "1", "2", "12-64.png")); err != nil {
		t.Fatalf("unrelated namespace touched: %v", err)
	}
}

func TestNewPathStoreRejectsUnwritableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewPathStore(filepath.Join(file, "cache")); err == nil {
		t.Fatalf("expected error when root cannot be created")
	}
}
