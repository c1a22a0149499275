package handler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jacktea/xavatar/pkg/cache"
	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/meta"
	"github.com/jacktea/xavatar/pkg/sharder"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// missCacheSize bounds the number of remembered service misses.
const missCacheSize = 4096

// GravatarHandler mirrors avatars from the remote avatar service.
type GravatarHandler struct {
	core
	misses *cache.Cache[struct{}]
}

// NewGravatar builds a GravatarHandler.
func NewGravatar(opts Options) (*GravatarHandler, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	h := &GravatarHandler{core: core{opts: opts}}
	if opts.GravatarMissTTL > 0 {
		h.misses = cache.New[struct{}](missCacheSize, opts.GravatarMissTTL, cache.WithoutCleanup())
	}
	return h, nil
}

// URL implements Handler.
func (h *GravatarHandler) URL(ctx context.Context, fallback, hash string, size int, args Args) string {
	a, ok := args.(GravatarArgs)
	if !ok {
		return fallback
	}
	if err := checkRequest("gravatar.URL", hash, size); err != nil {
		return h.fallback(ctx, NamespaceGravatar, fallback, err)
	}
	if strings.TrimSpace(a.Email) == "" {
		return h.fallback(ctx, NamespaceGravatar, fallback, xerrors.E(xerrors.KindInvalid, "gravatar.URL", "email"))
	}
	mime := h.mime(a.MimeType)
	ext, _ := imageedit.Ext(mime)
	rel := sharder.Path(NamespaceGravatar, hash, size, ext)
	u, err := h.resolve(ctx, NamespaceGravatar, rel, a.Force, func(ctx context.Context) ([]byte, error) {
		data, err := h.download(ctx, a.Email, a.Rating, size, mime)
		if err == nil {
			h.recordSource(ctx, meta.Source{Namespace: NamespaceGravatar, Hash: hash, Value: a.Email, MimeType: mime})
		}
		return data, err
	})
	if err != nil {
		return h.fallback(ctx, NamespaceGravatar, fallback, err, "hash", hash, "size", size)
	}
	return u
}

// CacheImage implements Handler using the email recorded for hash.
func (h *GravatarHandler) CacheImage(ctx context.Context, typ, hash string, size int, subdir, ext string) bool {
	err := checkRequest("gravatar.CacheImage", hash, size)
	if err == nil {
		err = checkSubdir("gravatar.CacheImage", NamespaceGravatar, subdir)
	}
	var src meta.Source
	if err == nil {
		src, err = h.opts.Meta.Source(ctx, NamespaceGravatar, hash)
	}
	mime, known := imageedit.MimeForExt(ext)
	if err == nil && (!known || h.mime(mime) != mime) {
		err = xerrors.E(xerrors.KindInvalidMimeType, "gravatar.CacheImage", ext)
	}
	if err == nil {
		rel := sharder.Path(NamespaceGravatar, hash, size, ext)
		err = h.build(ctx, NamespaceGravatar, rel, true, func(ctx context.Context) ([]byte, error) {
			return h.download(ctx, src.Value, "", size, mime)
		})
	}
	if err != nil {
		h.fallback(ctx, NamespaceGravatar, "", err, "hash", hash, "size", size)
		return false
	}
	return true
}

// mime maps a requested type onto one the service can deliver.
func (h *GravatarHandler) mime(requested string) string {
	switch m := imageedit.NormalizeMime(requested); m {
	case imageedit.MimePNG, imageedit.MimeJPEG, imageedit.MimeGIF:
		return m
	}
	return imageedit.MimePNG
}

// ServiceURL returns the service address of the avatar for email.
func (h *GravatarHandler) ServiceURL(email, rating string, size int, mime string) string {
	ext, ok := imageedit.Ext(mime)
	if !ok {
		ext = "png"
	}
	if rating == "" {
		rating = "g"
	}
	q := url.Values{}
	q.Set("s", strconv.Itoa(size))
	q.Set("d", "404")
	q.Set("r", strings.ToLower(rating))
	return h.opts.GravatarEndpoint + "/" + EmailHash(email) + "." + ext + "?" + q.Encode()
}

func (h *GravatarHandler) download(ctx context.Context, email, rating string, size int, mime string) ([]byte, error) {
	if rating == "" {
		rating = "g"
	}
	key := EmailHash(email) + "|" + strconv.Itoa(size) + "|" + strings.ToLower(rating) + "|" + mime
	if h.misses != nil {
		if _, ok := h.misses.Get(key); ok {
			return nil, xerrors.Wrap(xerrors.KindNotFound, "gravatar.download", key, errRemoteNotFound)
		}
	}
	data, got, err := h.fetch(ctx, h.ServiceURL(email, rating, size, mime), isServiceMime)
	if err != nil {
		if h.misses != nil && errors.Is(err, errRemoteNotFound) {
			h.misses.Set(key, struct{}{})
		}
		return nil, err
	}
	if got != mime {
		data, err = h.opts.Editor.Resize(data, size, mime)
		if err != nil {
			return nil, fmt.Errorf("gravatar: re-encode %s as %s: %w", got, mime, err)
		}
	}
	return data, nil
}

func isServiceMime(m string) bool {
	switch m {
	case imageedit.MimePNG, imageedit.MimeJPEG, imageedit.MimeGIF:
		return true
	}
	return false
}

// EmailHash is the service's key for email: MD5 of the trimmed,
// lower-cased address.
func EmailHash(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
