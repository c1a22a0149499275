package handler

import (
	"context"
	"path"
	"strconv"

	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/meta"
	"github.com/jacktea/xavatar/pkg/sharder"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// UploadHandler caches resized copies of locally uploaded avatars.
type UploadHandler struct {
	core
}

// NewUpload builds an UploadHandler.
func NewUpload(opts Options) (*UploadHandler, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &UploadHandler{core{opts: opts}}, nil
}

// URL implements Handler.
func (h *UploadHandler) URL(ctx context.Context, fallback, hash string, size int, args Args) string {
	a, ok := args.(UploadArgs)
	if !ok {
		return fallback
	}
	if err := checkRequest("upload.URL", hash, size); err != nil {
		return h.fallback(ctx, NamespaceUpload, fallback, err)
	}
	if a.File == "" {
		return h.fallback(ctx, NamespaceUpload, fallback, xerrors.E(xerrors.KindInvalidSourceURL, "upload.URL", "file"))
	}
	hint, _ := imageedit.MimeForExt(path.Ext(a.File))
	mime := outputMime(a.MimeType, hint)
	ext, _ := imageedit.Ext(mime)
	rel := sharder.Path(NamespaceUpload, hash, size, ext)
	u, err := h.resolve(ctx, NamespaceUpload, rel, a.Force, func(ctx context.Context) ([]byte, error) {
		data, err := h.resizeFile(a.File, size, mime)
		if err == nil {
			h.recordSource(ctx, meta.Source{Namespace: NamespaceUpload, Hash: hash, Value: a.File, MimeType: mime})
		}
		return data, err
	})
	if err != nil {
		return h.fallback(ctx, NamespaceUpload, fallback, err, "file", a.File, "size", size)
	}
	if a.Timestamp {
		if info, err := h.opts.Cache.Stat(ctx, rel); err == nil && !info.ModTime.IsZero() {
			u += "?ts=" + strconv.FormatInt(info.ModTime.Unix(), 10)
		}
	}
	return u
}

// CacheImage implements Handler using the file recorded for hash.
func (h *UploadHandler) CacheImage(ctx context.Context, typ, hash string, size int, subdir, ext string) bool {
	err := checkRequest("upload.CacheImage", hash, size)
	if err == nil {
		err = checkSubdir("upload.CacheImage", NamespaceUpload, subdir)
	}
	var src meta.Source
	if err == nil {
		src, err = h.opts.Meta.Source(ctx, NamespaceUpload, hash)
	}
	mime, known := imageedit.MimeForExt(ext)
	if err == nil && (!known || !imageedit.IsEncodable(mime) || extOf(mime) != canonicalExt(ext)) {
		err = xerrors.E(xerrors.KindInvalidMimeType, "upload.CacheImage", ext)
	}
	if err == nil {
		rel := sharder.Path(NamespaceUpload, hash, size, ext)
		err = h.build(ctx, NamespaceUpload, rel, true, func(context.Context) ([]byte, error) {
			return h.resizeFile(src.Value, size, mime)
		})
	}
	if err != nil {
		h.fallback(ctx, NamespaceUpload, "", err, "hash", hash, "size", size)
		return false
	}
	return true
}
