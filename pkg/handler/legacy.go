package handler

import (
	"context"

	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/meta"
	"github.com/jacktea/xavatar/pkg/sharder"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// LegacyHandler caches resized copies of images at caller-supplied URLs.
type LegacyHandler struct {
	core
}

// NewLegacy builds a LegacyHandler.
func NewLegacy(opts Options) (*LegacyHandler, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &LegacyHandler{core{opts: opts}}, nil
}

// URL implements Handler.
func (h *LegacyHandler) URL(ctx context.Context, fallback, hash string, size int, args Args) string {
	a, ok := args.(LegacyArgs)
	if !ok {
		return fallback
	}
	if err := checkRequest("legacy.URL", hash, size); err != nil {
		return h.fallback(ctx, NamespaceLegacy, fallback, err)
	}
	src, err := ValidateURL(a.URL, h.opts.SiteURL, h.opts.AllowRemote)
	if err == nil && !src.IsAbs() {
		err = xerrors.E(xerrors.KindInvalidSourceURL, "legacy.URL", a.URL)
	}
	if err != nil {
		return h.fallback(ctx, NamespaceLegacy, fallback, err)
	}
	mime := outputMime(a.MimeType, "")
	ext, _ := imageedit.Ext(mime)
	rel := sharder.Path(NamespaceLegacy, hash, size, ext)
	u, err := h.resolve(ctx, NamespaceLegacy, rel, a.Force, func(ctx context.Context) ([]byte, error) {
		data, err := h.download(ctx, src.String(), size, mime)
		if err == nil {
			h.recordSource(ctx, meta.Source{Namespace: NamespaceLegacy, Hash: hash, Value: src.String(), MimeType: mime})
		}
		return data, err
	})
	if err != nil {
		return h.fallback(ctx, NamespaceLegacy, fallback, err, "url", a.URL, "size", size)
	}
	return u
}

// CacheImage implements Handler using the URL recorded for hash.
func (h *LegacyHandler) CacheImage(ctx context.Context, typ, hash string, size int, subdir, ext string) bool {
	err := checkRequest("legacy.CacheImage", hash, size)
	if err == nil {
		err = checkSubdir("legacy.CacheImage", NamespaceLegacy, subdir)
	}
	var src meta.Source
	if err == nil {
		src, err = h.opts.Meta.Source(ctx, NamespaceLegacy, hash)
	}
	mime, known := imageedit.MimeForExt(ext)
	if err == nil && (!known || !imageedit.IsEncodable(mime) || extOf(mime) != canonicalExt(ext)) {
		err = xerrors.E(xerrors.KindInvalidMimeType, "legacy.CacheImage", ext)
	}
	if err == nil {
		_, err = ValidateURL(src.Value, h.opts.SiteURL, h.opts.AllowRemote)
	}
	if err == nil {
		rel := sharder.Path(NamespaceLegacy, hash, size, ext)
		err = h.build(ctx, NamespaceLegacy, rel, true, func(ctx context.Context) ([]byte, error) {
			return h.download(ctx, src.Value, size, mime)
		})
	}
	if err != nil {
		h.fallback(ctx, NamespaceLegacy, "", err, "hash", hash, "size", size)
		return false
	}
	return true
}

func (h *LegacyHandler) download(ctx context.Context, rawURL string, size int, mime string) ([]byte, error) {
	data, _, err := h.fetch(ctx, rawURL, imageedit.IsRaster)
	if err != nil {
		return nil, err
	}
	return h.opts.Editor.Resize(data, size, mime)
}

func extOf(mime string) string {
	ext, _ := imageedit.Ext(mime)
	return ext
}

// canonicalExt maps the jpeg alias onto the jpg extension new entries use.
func canonicalExt(ext string) string {
	if ext == "jpeg" {
		return "jpg"
	}
	return ext
}
