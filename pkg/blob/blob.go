package blob

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"time"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

// Info describes a stored object.
type Info struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// WalkFunc is called once per stored object during Walk.
type WalkFunc func(info Info) error

// Store is a path-addressed byte store. Keys are slash separated relative
// paths such as "identicon/a/b/ab12-64.svg".
type Store interface {
	// Put stores the contents of r under key. Unless opts.Overwrite is set an
	// existing object is left untouched and Put reports success.
	Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error
	Get(ctx context.Context, key string) (io.ReadCloser, Info, error)
	Stat(ctx context.Context, key string) (Info, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Walk visits every object whose key lies under prefix in lexical order.
	// A missing prefix is not an error.
	Walk(ctx context.Context, prefix string, fn WalkFunc) error
}

// Pruner is implemented by stores with real directories that can be left
// empty after deletions.
type Pruner interface {
	Prune(ctx context.Context, prefix string) error
}

// PutOptions controls blob persistence.
type PutOptions struct {
	ContentType string
	Overwrite   bool
}

// SkipAll stops a Walk early without reporting an error.
var SkipAll = errors.New("blob: skip all")

func notFound(op, key string) error {
	return xerrors.Wrap(xerrors.KindNotFound, op, key, iofs.ErrNotExist)
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return err != nil && (errors.Is(err, iofs.ErrNotExist) || xerrors.KindOf(err) == xerrors.KindNotFound)
}

// Exists reports whether key is present in s.
func Exists(ctx context.Context, s Store, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// ReadAll returns the full contents of key.
func ReadAll(ctx context.Context, s Store, key string) ([]byte, Info, error) {
	rc, info, err := s.Get(ctx, key)
	if err != nil {
		return nil, Info{}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, Info{}, err
	}
	return data, info, nil
}
