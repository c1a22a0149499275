// Package filecache stores generated and fetched avatars under sharded,
// reproducible relative paths on top of a blob.Store.
package filecache

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/jacktea/xavatar/pkg/blob"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// Cache is the filesystem cache. It is safe for concurrent use as long as
// the underlying store is.
type Cache struct {
	store   blob.Store
	baseDir string
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for invalidation reports.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the clock used by InvalidateOlderThan.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithBaseDir records the on-disk root reported by BaseDir when the store
// does not expose one itself.
func WithBaseDir(dir string) Option {
	return func(c *Cache) { c.baseDir = dir }
}

// New wraps store. baseURL is the public prefix cached files are served
// under; it is joined to relative paths verbatim apart from slash handling.
func New(store blob.Store, baseURL string, opts ...Option) (*Cache, error) {
	if store == nil {
		return nil, xerrors.E(xerrors.KindStorageUnavailable, "filecache.New", "store")
	}
	c := &Cache{
		store:   store,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  slog.Default(),
		now:     time.Now,
	}
	if r, ok := store.(interface{ Root() string }); ok {
		c.baseDir = r.Root()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewLocal creates the directory root and returns a Cache stored there.
func NewLocal(root, baseURL string, opts ...Option) (*Cache, error) {
	store, err := blob.NewPathStore(root)
	if err != nil {
		return nil, err
	}
	return New(store, baseURL, opts...)
}

// BaseDir returns the cache root on disk, or "" for object storage.
func (c *Cache) BaseDir() string { return c.baseDir }

// Store exposes the underlying byte store.
func (c *Cache) Store() blob.Store { return c.store }

// Set writes data under rel. An existing entry is kept unless force is set.
func (c *Cache) Set(ctx context.Context, rel string, data []byte, force bool) error {
	if len(data) == 0 {
		return xerrors.Wrap(xerrors.KindCacheWriteFailed, "filecache.Set", rel, xerrors.ErrEmptyPayload)
	}
	if !force {
		ok, err := c.Exists(ctx, rel)
		if err != nil {
			return xerrors.Wrap(xerrors.KindCacheWriteFailed, "filecache.Set", rel, err)
		}
		if ok {
			return nil
		}
	}
	opts := blob.PutOptions{ContentType: contentType(rel), Overwrite: force}
	if err := c.store.Put(ctx, rel, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		if xerrors.KindOf(err) == xerrors.KindCacheWriteFailed {
			return err
		}
		return xerrors.Wrap(xerrors.KindCacheWriteFailed, "filecache.Set", rel, err)
	}
	return nil
}

// Exists reports whether rel is cached.
func (c *Cache) Exists(ctx context.Context, rel string) (bool, error) {
	return blob.Exists(ctx, c.store, rel)
}

// Get returns the cached bytes for rel.
func (c *Cache) Get(ctx context.Context, rel string) ([]byte, blob.Info, error) {
	return blob.ReadAll(ctx, c.store, rel)
}

// Stat returns size and modification time for rel.
func (c *Cache) Stat(ctx context.Context, rel string) (blob.Info, error) {
	return c.store.Stat(ctx, rel)
}

// URL maps rel to its public address. It does not check existence.
func (c *Cache) URL(rel string) string {
	return c.baseURL + "/" + strings.TrimPrefix(rel, "/")
}

// Delete removes rel if present.
func (c *Cache) Delete(ctx context.Context, rel string) error {
	return c.store.Delete(ctx, rel)
}

// Result summarises an invalidation run.
type Result struct {
	Files int
	Bytes int64
}

// Invalidate removes every entry under subdir whose relative path matches
// re (all entries when re is nil), then prunes empty directories.
func (c *Cache) Invalidate(ctx context.Context, subdir string, re *regexp.Regexp) (Result, error) {
	return c.invalidate(ctx, subdir, re, func(blob.Info) bool { return true })
}

// InvalidateOlderThan is Invalidate restricted to entries last modified
// more than age ago.
func (c *Cache) InvalidateOlderThan(ctx context.Context, age time.Duration, subdir string, re *regexp.Regexp) (Result, error) {
	cutoff := c.now().Add(-age)
	return c.invalidate(ctx, subdir, re, func(info blob.Info) bool {
		return !info.ModTime.IsZero() && info.ModTime.Before(cutoff)
	})
}

func (c *Cache) invalidate(ctx context.Context, subdir string, re *regexp.Regexp, keep func(blob.Info) bool) (Result, error) {
	var (
		res     Result
		victims []blob.Info
	)
	err := c.store.Walk(ctx, subdir, func(info blob.Info) error {
		if re != nil && !re.MatchString(info.Key) {
			return nil
		}
		if keep(info) {
			victims = append(victims, info)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	for _, info := range victims {
		if err := c.store.Delete(ctx, info.Key); err != nil {
			return res, err
		}
		res.Files++
		res.Bytes += info.Size
	}
	if p, ok := c.store.(blob.Pruner); ok {
		if err := p.Prune(ctx, subdir); err != nil {
			return res, err
		}
	}
	if res.Files > 0 {
		c.logger.Debug("cache invalidated", "subdir", subdir, "files", res.Files, "bytes", res.Bytes)
	}
	return res, nil
}

func contentType(rel string) string {
	switch strings.ToLower(path.Ext(rel)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	}
	return ""
}
