package handler

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5/util"

	"github.com/jacktea/xavatar/pkg/icon"
	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/sharder"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// DefaultIconHandler serves the configured default icon: a generated icon,
// a static asset, the site's custom image, or a validated local image URL.
type DefaultIconHandler struct {
	core
}

// NewDefaultIcon builds a DefaultIconHandler.
func NewDefaultIcon(opts Options) (*DefaultIconHandler, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &DefaultIconHandler{core{opts: opts}}, nil
}

// URL implements Handler.
func (h *DefaultIconHandler) URL(ctx context.Context, fallback, hash string, size int, args Args) string {
	a, ok := args.(DefaultIconArgs)
	if !ok {
		return fallback
	}
	p, ok := h.opts.Registry.Resolve(a.Default)
	if !ok {
		if a.Default == "" {
			return fallback
		}
		if _, err := ValidateURL(a.Default, h.opts.SiteURL, h.opts.AllowRemote); err != nil {
			return h.fallback(ctx, "default", fallback, err)
		}
		return a.Default
	}
	if p.Kind == icon.KindStatic {
		return p.AssetURL(h.opts.AssetsURL)
	}
	ns := p.Namespace()
	if err := checkRequest("default.URL", hash, size); err != nil {
		return h.fallback(ctx, ns, fallback, err, "type", a.Default)
	}
	ext, produce, err := h.producer(p, hash, size, a.MimeType)
	if err != nil {
		return h.fallback(ctx, ns, fallback, err, "type", a.Default)
	}
	u, err := h.resolve(ctx, ns, sharder.Path(ns, hash, size, ext), a.Force, produce)
	if err != nil {
		return h.fallback(ctx, ns, fallback, err, "type", a.Default, "hash", hash, "size", size)
	}
	return u
}

// CacheImage implements Handler. typ may be a type alias or a cache
// namespace; static providers have no cache entries.
func (h *DefaultIconHandler) CacheImage(ctx context.Context, typ, hash string, size int, subdir, ext string) bool {
	p, ok := h.opts.Registry.Resolve(typ)
	if !ok {
		p, ok = h.opts.Registry.ByNamespace(typ)
	}
	if !ok || p.Kind == icon.KindStatic {
		return false
	}
	ns := p.Namespace()
	err := checkRequest("default.CacheImage", hash, size)
	if err == nil {
		err = checkSubdir("default.CacheImage", ns, subdir)
	}
	var (
		want    string
		produce func(context.Context) ([]byte, error)
	)
	if err == nil {
		mime, known := imageedit.MimeForExt(ext)
		if !known {
			err = xerrors.E(xerrors.KindInvalidMimeType, "default.CacheImage", ext)
		} else {
			want, produce, err = h.producer(p, hash, size, mime)
		}
	}
	if err == nil && want != canonicalExt(ext) {
		err = xerrors.E(xerrors.KindInvalidMimeType, "default.CacheImage", ext)
	}
	if err == nil {
		err = h.build(ctx, ns, sharder.Path(ns, hash, size, ext), true, produce)
	}
	if err != nil {
		h.fallback(ctx, ns, "", err, "type", typ, "hash", hash, "size", size)
		return false
	}
	return true
}

// producer returns the cache extension and byte source for a generator or
// custom provider.
func (h *DefaultIconHandler) producer(p icon.Provider, hash string, size int, mime string) (string, func(context.Context) ([]byte, error), error) {
	switch p.Kind {
	case icon.KindGenerator:
		ext, ok := imageedit.Ext(p.Generator.MimeType())
		if !ok {
			return "", nil, xerrors.E(xerrors.KindInternal, "default.producer", p.Generator.MimeType())
		}
		return ext, func(context.Context) ([]byte, error) {
			return p.Generator.Build(hash, size)
		}, nil
	case icon.KindCustom:
		if h.opts.CustomImage == "" {
			return "", nil, xerrors.Wrap(xerrors.KindInvalidSourceURL, "default.producer", "custom", fmt.Errorf("no custom image configured"))
		}
		mime = outputMime(mime, "")
		ext, _ := imageedit.Ext(mime)
		return ext, func(context.Context) ([]byte, error) {
			return h.resizeFile(h.opts.CustomImage, size, mime)
		}, nil
	}
	return "", nil, xerrors.E(xerrors.KindInternal, "default.producer", p.Kind.String())
}

// resizeFile reads a raster image from the source filesystem and resizes it.
func (c *core) resizeFile(name string, size int, mime string) ([]byte, error) {
	data, err := util.ReadFile(c.opts.Sources, name)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindFetchFailed, "handler.readFile", name, err)
	}
	if got := imageedit.Sniff(data); !imageedit.IsRaster(got) {
		return nil, xerrors.Wrap(xerrors.KindInvalidMimeType, "handler.readFile", name, fmt.Errorf("content type %q", got))
	}
	return c.opts.Editor.Resize(data, size, mime)
}
