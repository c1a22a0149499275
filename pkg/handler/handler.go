// Package handler resolves avatar requests to public URLs, producing and
// caching the image on a miss. Four handlers share one miss path:
// DefaultIcon (generated, static and custom icons), Gravatar (a remote
// avatar service), Legacy (arbitrary validated remote URLs) and Upload
// (locally stored files). Every failure degrades to the caller's fallback
// URL; nothing partial is ever cached.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/sync/singleflight"

	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/generator"
	"github.com/jacktea/xavatar/pkg/icon"
	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/meta"
	"github.com/jacktea/xavatar/pkg/observe"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// Cache namespaces owned by the source handlers.
const (
	NamespaceGravatar = "gravatar"
	NamespaceLegacy   = "legacy"
	NamespaceUpload   = "user"
)

// Handler is the contract shared by every avatar source.
type Handler interface {
	// URL returns the public URL of the avatar for hash at size, or
	// fallback when it cannot be produced.
	URL(ctx context.Context, fallback, hash string, size int, args Args) string
	// CacheImage (re)creates the cache entry {subdir}/{shard}/{hash}-{size}.{ext}
	// for typ and reports whether it now exists.
	CacheImage(ctx context.Context, typ, hash string, size int, subdir, ext string) bool
}

// Args carries the per-request arguments of exactly one handler.
type Args interface {
	isArgs()
}

// DefaultIconArgs selects a default icon by type, or passes a local image
// URL through.
type DefaultIconArgs struct {
	Default  string
	MimeType string
	Force    bool
}

// GravatarArgs asks the remote avatar service for the avatar of Email.
type GravatarArgs struct {
	Email    string
	Rating   string
	MimeType string
	Force    bool
}

// LegacyArgs fetches and resizes the image at URL.
type LegacyArgs struct {
	URL      string
	MimeType string
	Force    bool
}

// UploadArgs resizes the uploaded file at File. With Timestamp the URL
// carries a ts query parameter holding the cached file's mtime.
type UploadArgs struct {
	File      string
	MimeType  string
	Force     bool
	Timestamp bool
}

func (DefaultIconArgs) isArgs() {}
func (GravatarArgs) isArgs()    {}
func (LegacyArgs) isArgs()      {}
func (UploadArgs) isArgs()      {}

// ImageEditor crops data to a square, scales it to size and encodes it as
// mime. imageedit.Editor is the standard implementation.
type ImageEditor interface {
	Resize(data []byte, size int, mime string) ([]byte, error)
}

// Options holds the collaborators and policy shared by all handlers. Only
// Cache is required.
type Options struct {
	Cache    *filecache.Cache
	Registry *icon.Registry
	Editor   ImageEditor
	// Meta records where legacy, upload and gravatar entries came from so
	// CacheImage can rebuild them. Defaults to an in-memory store.
	Meta meta.Store
	// Client performs remote fetches; its Timeout bounds every request.
	Client *http.Client
	// Sources is the filesystem upload and custom image paths are read
	// from. Defaults to the host filesystem.
	Sources billy.Filesystem
	Logger  *slog.Logger
	Metrics observe.Metrics

	// SiteURL is the origin local image URLs must share unless AllowRemote.
	SiteURL     string
	AllowRemote bool
	// AssetsURL prefixes static icon paths ({AssetsURL}/images/{name}).
	AssetsURL string
	// CustomImage is the site's custom default image on Sources.
	CustomImage string

	GravatarEndpoint string
	// GravatarMissTTL is how long a 404 from the service is remembered.
	// Zero disables negative caching.
	GravatarMissTTL time.Duration

	// Flight collapses concurrent misses; handlers built by NewDispatcher
	// share one.
	Flight *singleflight.Group
}

// DefaultHTTPTimeout applies when Options.Client is nil.
const DefaultHTTPTimeout = 10 * time.Second

// DefaultGravatarEndpoint is the public avatar service.
const DefaultGravatarEndpoint = "https://secure.gravatar.com/avatar"

func (o Options) withDefaults() (Options, error) {
	if o.Cache == nil {
		return o, xerrors.E(xerrors.KindStorageUnavailable, "handler.Options", "cache")
	}
	if o.Registry == nil {
		o.Registry = icon.Default()
	}
	if o.Editor == nil {
		o.Editor = imageedit.Editor{}
	}
	if o.Meta == nil {
		o.Meta = meta.NewMemoryStore("")
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if o.Sources == nil {
		o.Sources = osfs.New("/")
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = observe.Noop()
	}
	if o.GravatarEndpoint == "" {
		o.GravatarEndpoint = DefaultGravatarEndpoint
	}
	o.GravatarEndpoint = strings.TrimSuffix(o.GravatarEndpoint, "/")
	if o.Flight == nil {
		o.Flight = new(singleflight.Group)
	}
	return o, nil
}

// core is the miss path shared by the handlers.
type core struct {
	opts Options
}

// resolve returns the URL of rel, calling produce and caching its bytes
// when the entry is missing or force is set.
func (c *core) resolve(ctx context.Context, ns, rel string, force bool, produce func(context.Context) ([]byte, error)) (string, error) {
	if !force {
		if ok, err := c.opts.Cache.Exists(ctx, rel); err == nil && ok {
			c.opts.Metrics.RecordLookup(ctx, ns, true)
			return c.opts.Cache.URL(rel), nil
		}
	}
	c.opts.Metrics.RecordLookup(ctx, ns, false)
	if err := c.build(ctx, ns, rel, force, produce); err != nil {
		return "", err
	}
	return c.opts.Cache.URL(rel), nil
}

// build runs produce at most once per rel across concurrent callers. The
// shared build outlives the caller that started it; a caller whose ctx ends
// stops waiting without failing the others.
func (c *core) build(ctx context.Context, ns, rel string, force bool, produce func(context.Context) ([]byte, error)) error {
	fctx := context.WithoutCancel(ctx)
	ch := c.opts.Flight.DoChan(rel, func() (any, error) {
		ctx := fctx
		if !force {
			if ok, err := c.opts.Cache.Exists(ctx, rel); err == nil && ok {
				return nil, nil
			}
		}
		start := time.Now()
		data, err := produce(ctx)
		if err == nil {
			err = c.opts.Cache.Set(ctx, rel, data, force)
		}
		c.opts.Metrics.RecordBuild(ctx, ns, time.Since(start), err)
		return nil, err
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fallback logs err and returns the caller's fallback URL.
func (c *core) fallback(ctx context.Context, ns, fallback string, err error, attrs ...any) string {
	level := slog.LevelWarn
	switch xerrors.KindOf(err) {
	case xerrors.KindInvalid, xerrors.KindInvalidSourceURL, xerrors.KindInvalidMimeType, xerrors.KindNotFound:
		level = slog.LevelDebug
	}
	c.opts.Logger.Log(ctx, level, "avatar fallback", append([]any{"namespace", ns, "err", err}, attrs...)...)
	c.opts.Metrics.RecordFallback(ctx, ns)
	return fallback
}

// recordSource stores where an entry came from. Failures are logged only.
func (c *core) recordSource(ctx context.Context, src meta.Source) {
	if err := c.opts.Meta.PutSource(ctx, src); err != nil {
		c.opts.Logger.Warn("record avatar source", "namespace", src.Namespace, "hash", src.Hash, "err", err)
	}
}

// checkRequest validates the parts of a request that end up in a path.
func checkRequest(op, hash string, size int) error {
	if len(hash) < 2 || !isHex(hash) {
		return xerrors.E(xerrors.KindInvalid, op, "hash")
	}
	return generator.CheckSize(op, size)
}

// checkSubdir verifies that subdir, when given, names the namespace ns.
func checkSubdir(op, ns, subdir string) error {
	if subdir != "" && strings.Trim(subdir, "/") != ns {
		return xerrors.E(xerrors.KindInvalid, op, subdir)
	}
	return nil
}

// outputMime picks the encoding of a resized avatar: the requested type
// when it can be written, else the hint, else PNG.
func outputMime(requested, hint string) string {
	for _, m := range []string{requested, hint} {
		if m != "" && imageedit.IsEncodable(m) {
			return imageedit.NormalizeMime(m)
		}
	}
	return imageedit.MimePNG
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
