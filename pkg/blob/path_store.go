package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

const tempPrefix = ".tmp-"

// PathStore persists objects on a billy filesystem, one file per key.
type PathStore struct {
	fs   billy.Filesystem
	root string
}

// NewPathStore returns a Store rooted at the local directory root, creating
// it if needed.
func NewPathStore(root string) (*PathStore, error) {
	if root == "" {
		return nil, xerrors.E(xerrors.KindInvalid, "PathStore", "root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.KindStorageUnavailable, "PathStore.mkdir", root, err)
	}
	return &PathStore{fs: osfs.New(root), root: root}, nil
}

// NewPathStoreFS wraps an existing billy filesystem, e.g. memfs in tests.
func NewPathStoreFS(fs billy.Filesystem) *PathStore {
	return &PathStore{fs: fs, root: fs.Root()}
}

// Root returns the directory backing the store.
func (p *PathStore) Root() string { return p.root }

// Put writes to a temporary file in the target directory while holding an
// exclusive lock on it, then renames it into place.
func (p *PathStore) Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if !opts.Overwrite {
		if _, err := p.fs.Stat(name); err == nil {
			return nil
		}
	}
	dir := path.Dir(name)
	if err := p.fs.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Wrap(xerrors.KindCacheWriteFailed, "PathStore.mkdir", dir, err)
	}
	tmp, err := p.fs.TempFile(dir, tempPrefix+path.Base(name)+"-")
	if err != nil {
		return xerrors.Wrap(xerrors.KindCacheWriteFailed, "PathStore.tempfile", name, err)
	}
	tmpName := tmp.Name()
	fail := func(op string, err error) error {
		tmp.Close()
		p.fs.Remove(tmpName)
		return xerrors.Wrap(xerrors.KindCacheWriteFailed, op, name, err)
	}
	if err := tmp.Lock(); err != nil {
		return fail("PathStore.lock", err)
	}
	n, err := io.Copy(tmp, r)
	if err != nil {
		return fail("PathStore.write", err)
	}
	if size >= 0 && n != size {
		return fail("PathStore.write", fmt.Errorf("short write: %d of %d bytes", n, size))
	}
	if s, ok := tmp.(interface{ Sync() error }); ok {
		if err := s.Sync(); err != nil {
			return fail("PathStore.sync", err)
		}
	}
	if err := tmp.Unlock(); err != nil {
		return fail("PathStore.unlock", err)
	}
	if err := tmp.Close(); err != nil {
		p.fs.Remove(tmpName)
		return xerrors.Wrap(xerrors.KindCacheWriteFailed, "PathStore.close", name, err)
	}
	if err := p.fs.Rename(tmpName, name); err != nil {
		p.fs.Remove(tmpName)
		return xerrors.Wrap(xerrors.KindCacheWriteFailed, "PathStore.rename", name, err)
	}
	return nil
}

func (p *PathStore) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, Info{}, err
	}
	f, err := p.fs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Info{}, notFound("PathStore.Get", name)
		}
		return nil, Info{}, err
	}
	fi, err := p.fs.Stat(name)
	if err != nil {
		f.Close()
		return nil, Info{}, err
	}
	return f, Info{Key: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (p *PathStore) Stat(ctx context.Context, key string) (Info, error) {
	name, err := cleanKey(key)
	if err != nil {
		return Info{}, err
	}
	fi, err := p.fs.Stat(name)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, notFound("PathStore.Stat", name)
		}
		return Info{}, err
	}
	if fi.IsDir() {
		return Info{}, notFound("PathStore.Stat", name)
	}
	return Info{Key: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

func (p *PathStore) Delete(ctx context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := p.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (p *PathStore) Walk(ctx context.Context, prefix string, fn WalkFunc) error {
	start := strings.Trim(path.Clean("/"+prefix), "/")
	if start == "" {
		start = "."
	}
	err := util.Walk(p.fs, start, func(name string, fi os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && name == start {
				return nil
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if fi.IsDir() || strings.HasPrefix(fi.Name(), tempPrefix) {
			return nil
		}
		return fn(Info{Key: filepath.ToSlash(name), Size: fi.Size(), ModTime: fi.ModTime()})
	})
	if errors.Is(err, SkipAll) {
		return nil
	}
	return err
}

// Prune removes empty directories strictly below prefix.
func (p *PathStore) Prune(ctx context.Context, prefix string) error {
	start := strings.Trim(path.Clean("/"+prefix), "/")
	if start == "" {
		start = "."
	}
	if _, err := p.fs.Stat(start); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	_, err := p.pruneDir(ctx, start, true)
	return err
}

func (p *PathStore) pruneDir(ctx context.Context, dir string, keep bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	entries, err := p.fs.ReadDir(dir)
	if err != nil {
		return false, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	remaining := len(entries)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		removed, err := p.pruneDir(ctx, p.fs.Join(dir, entry.Name()), false)
		if err != nil {
			return false, err
		}
		if removed {
			remaining--
		}
	}
	if keep || remaining > 0 {
		return false, nil
	}
	if err := p.fs.Remove(dir); err != nil && !os.IsNotExist(err) {
		return false, err
	}
	return true, nil
}

func cleanKey(key string) (string, error) {
	name := strings.TrimPrefix(path.Clean("/"+key), "/")
	if name == "" || name == "." {
		return "", xerrors.E(xerrors.KindInvalid, "blob.key", key)
	}
	return name, nil
}
