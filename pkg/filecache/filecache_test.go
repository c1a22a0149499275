package filecache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacktea/xavatar/pkg/blob"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c, err := NewLocal(root, "https://example.com/avatars/")
	require.NoError(t, err)
	assert.Equal(t, root, c.BaseDir())

	rel := "identicon/a/b/ab12-64.svg"
	require.NoError(t, c.Set(ctx, rel, []byte("<svg/>"), false))

	ok, err := c.Exists(ctx, rel)
	require.NoError(t, err)
	assert.True(t, ok)

	data, info, err := c.Get(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
	assert.EqualValues(t, 6, info.Size)

	assert.Equal(t, "https://example.com/avatars/identicon/a/b/ab12-64.svg", c.URL(rel))

	require.NoError(t, c.Delete(ctx, rel))
	require.NoError(t, c.Delete(ctx, rel))
	ok, err = c.Exists(ctx, rel)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetKeepsExistingUnlessForced(t *testing.T) {
	ctx := context.Background()
	c, err := New(blob.NewMemoryStore(nil), "/cache")
	require.NoError(t, err)

	rel := "retro/0/0/00-32.svg"
	require.NoError(t, c.Set(ctx, rel, []byte("one"), false))
	require.NoError(t, c.Set(ctx, rel, []byte("two"), false))
	data, _, err := c.Get(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, c.Set(ctx, rel, []byte("three"), true))
	data, _, err = c.Get(ctx, rel)
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))
}

func TestSetRejectsEmptyPayload(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemoryStore(nil)
	c, err := New(store, "/cache")
	require.NoError(t, err)

	err = c.Set(ctx, "user/a/b/ab-64.png", nil, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrEmptyPayload))
	assert.True(t, xerrors.Is(err, xerrors.KindCacheWriteFailed))
	assert.Zero(t, store.Len())
}

func TestURLIsPure(t *testing.T) {
	c, err := New(blob.NewMemoryStore(nil), "https://cdn.example.com/c")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/c/monsterid/a/b/abc-80.png", c.URL("monsterid/a/b/abc-80.png"))
	assert.Equal(t, c.URL("x/y"), c.URL("/x/y"))
}

func TestInvalidatePrecision(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c, err := NewLocal(root, "/cache")
	require.NoError(t, err)

	for _, rel := range []string{
		"custom/7/abc-64.png",
		"custom/7/abc-128.png",
		"user/7/abc-64.png",
	} {
		require.NoError(t, c.Set(ctx, rel, []byte(rel), false))
	}

	res, err := c.Invalidate(ctx, "custom", regexp.MustCompile(`/abc-64\.png$`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)
	assert.EqualValues(t, len("custom/7/abc-64.png"), res.Bytes)

	ok, _ := c.Exists(ctx, "custom/7/abc-64.png")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "custom/7/abc-128.png")
	assert.True(t, ok)
	ok, _ = c.Exists(ctx, "user/7/abc-64.png")
	assert.True(t, ok)
}

func TestInvalidatePrunesEmptyDirectories(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c, err := NewLocal(root, "/cache")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "legacy/d/e/de-64.png", []byte("x"), false))
	res, err := c.Invalidate(ctx, "legacy", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)

	_, err = os.Stat(filepath.Join(root, "legacy", "d"))
	assert.True(t, os.IsNotExist(err), "shard directory should be pruned")
}

func TestInvalidateMissingSubdirIsNoop(t *testing.T) {
	c, err := NewLocal(t.TempDir(), "/cache")
	require.NoError(t, err)
	res, err := c.Invalidate(context.Background(), "does-not-exist", nil)
	require.NoError(t, err)
	assert.Zero(t, res.Files)
}

func TestInvalidateOlderThan(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := blob.NewMemoryStore(clock)
	c, err := New(store, "/cache", WithClock(clock))
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "gravatar/a/a/aa-64.png", []byte("old"), false))
	now = now.Add(2 * time.Hour)
	require.NoError(t, c.Set(ctx, "gravatar/b/b/bb-64.png", []byte("new"), false))

	res, err := c.InvalidateOlderThan(ctx, time.Hour, "gravatar", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Files)

	ok, _ := c.Exists(ctx, "gravatar/a/a/aa-64.png")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "gravatar/b/b/bb-64.png")
	assert.True(t, ok)
}

func TestNewLocalUnavailableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	_, err := NewLocal(filepath.Join(file, "cache"), "/cache")
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.KindStorageUnavailable))
}
