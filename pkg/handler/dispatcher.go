package handler

import (
	"context"
	"strings"
)

// Dispatcher routes requests to the handler matching the argument variant
// or cache namespace.
type Dispatcher struct {
	Default  *DefaultIconHandler
	Gravatar *GravatarHandler
	Legacy   *LegacyHandler
	Upload   *UploadHandler
}

// NewDispatcher builds all four handlers over shared options, so they
// share one single-flight group.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{}
	if d.Default, err = NewDefaultIcon(opts); err != nil {
		return nil, err
	}
	if d.Gravatar, err = NewGravatar(opts); err != nil {
		return nil, err
	}
	if d.Legacy, err = NewLegacy(opts); err != nil {
		return nil, err
	}
	if d.Upload, err = NewUpload(opts); err != nil {
		return nil, err
	}
	return d, nil
}

// URL implements Handler, choosing the handler by the type of args.
func (d *Dispatcher) URL(ctx context.Context, fallback, hash string, size int, args Args) string {
	if h := d.forArgs(args); h != nil {
		return h.URL(ctx, fallback, hash, size, args)
	}
	return fallback
}

// CacheImage implements Handler, choosing the handler by namespace: subdir
// when given, else typ.
func (d *Dispatcher) CacheImage(ctx context.Context, typ, hash string, size int, subdir, ext string) bool {
	ns := strings.Trim(subdir, "/")
	if ns == "" {
		ns = typ
	}
	return d.ForNamespace(ns).CacheImage(ctx, typ, hash, size, subdir, ext)
}

// ForNamespace returns the handler owning cache namespace ns.
func (d *Dispatcher) ForNamespace(ns string) Handler {
	switch ns {
	case NamespaceGravatar:
		return d.Gravatar
	case NamespaceLegacy:
		return d.Legacy
	case NamespaceUpload:
		return d.Upload
	}
	return d.Default
}

func (d *Dispatcher) forArgs(args Args) Handler {
	switch args.(type) {
	case DefaultIconArgs:
		return d.Default
	case GravatarArgs:
		return d.Gravatar
	case LegacyArgs:
		return d.Legacy
	case UploadArgs:
		return d.Upload
	}
	return nil
}
