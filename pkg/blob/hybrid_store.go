package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// HybridOptions control hybrid store behaviour.
type HybridOptions struct {
	MirrorSecondary bool // if true, writes are mirrored to secondary
	CacheOnRead     bool // if true, cache secondary reads into primary
}

// HybridStore layers a primary (usually local) store with a secondary backend.
type HybridStore struct {
	primary   Store
	secondary Store
	opts      HybridOptions
}

// NewHybridStore composes primary and secondary stores.
func NewHybridStore(primary Store, secondary Store, opts HybridOptions) (*HybridStore, error) {
	if primary == nil {
		return nil, fmt.Errorf("hybrid: primary store required")
	}
	if secondary == nil {
		return nil, fmt.Errorf("hybrid: secondary store required")
	}
	return &HybridStore{primary: primary, secondary: secondary, opts: opts}, nil
}

func (h *HybridStore) Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := h.primary.Put(ctx, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
		return err
	}
	if h.opts.MirrorSecondary {
		if err := h.secondary.Put(ctx, key, bytes.NewReader(data), int64(len(data)), opts); err != nil {
			return fmt.Errorf("hybrid mirror %s: %w", key, err)
		}
	}
	return nil
}

func (h *HybridStore) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	rc, info, err := h.primary.Get(ctx, key)
	if err == nil {
		return rc, info, nil
	}
	if !IsNotFound(err) {
		return nil, Info{}, err
	}
	data, info, err := ReadAll(ctx, h.secondary, key)
	if err != nil {
		return nil, Info{}, err
	}
	if h.opts.CacheOnRead {
		_ = h.primary.Put(ctx, key, bytes.NewReader(data), int64(len(data)), PutOptions{Overwrite: true})
	}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (h *HybridStore) Stat(ctx context.Context, key string) (Info, error) {
	info, err := h.primary.Stat(ctx, key)
	if err == nil || !IsNotFound(err) {
		return info, err
	}
	return h.secondary.Stat(ctx, key)
}

func (h *HybridStore) Delete(ctx context.Context, key string) error {
	primaryErr := h.primary.Delete(ctx, key)
	if err := h.secondary.Delete(ctx, key); err != nil && primaryErr == nil {
		primaryErr = err
	}
	return primaryErr
}

// Walk visits primary objects first, then secondary objects the primary
// does not hold.
func (h *HybridStore) Walk(ctx context.Context, prefix string, fn WalkFunc) error {
	seen := make(map[string]struct{})
	stopped := false
	err := h.primary.Walk(ctx, prefix, func(info Info) error {
		seen[info.Key] = struct{}{}
		if err := fn(info); err != nil {
			if err == SkipAll {
				stopped = true
			}
			return err
		}
		return nil
	})
	if err != nil || stopped {
		return err
	}
	return h.secondary.Walk(ctx, prefix, func(info Info) error {
		if _, ok := seen[info.Key]; ok {
			return nil
		}
		return fn(info)
	})
}

// Prune forwards to whichever tier keeps directories.
func (h *HybridStore) Prune(ctx context.Context, prefix string) error {
	for _, s := range []Store{h.primary, h.secondary} {
		if p, ok := s.(Pruner); ok {
			if err := p.Prune(ctx, prefix); err != nil {
				return err
			}
		}
	}
	return nil
}
