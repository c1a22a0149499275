package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store, mostly useful in tests.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memObject
	now  func() time.Time
	puts int
}

type memObject struct {
	data    []byte
	modTime time.Time
}

// NewMemoryStore returns an empty MemoryStore. A nil clock uses time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{data: make(map[string]memObject), now: now}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, opts PutOptions) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	buf, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[name]; ok && !opts.Overwrite {
		return nil
	}
	m.data[name] = memObject{data: buf, modTime: m.now()}
	m.puts++
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, Info, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, Info{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.data[name]
	if !ok {
		return nil, Info{}, notFound("MemoryStore.Get", name)
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), obj.data...))), obj.info(name), nil
}

func (m *MemoryStore) Stat(ctx context.Context, key string) (Info, error) {
	name, err := cleanKey(key)
	if err != nil {
		return Info{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.data[name]
	if !ok {
		return Info{}, notFound("MemoryStore.Stat", name)
	}
	return obj.info(name), nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, name)
	return nil
}

func (m *MemoryStore) Walk(ctx context.Context, prefix string, fn WalkFunc) error {
	p := strings.Trim(path.Clean("/"+prefix), "/")
	if p != "" {
		p += "/"
	}
	m.mu.RLock()
	var infos []Info
	for k, obj := range m.data {
		if strings.HasPrefix(k, p) {
			infos = append(infos, obj.info(k))
		}
	}
	m.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(info); err != nil {
			if errors.Is(err, SkipAll) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Puts reports how many writes actually stored bytes.
func (m *MemoryStore) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (o memObject) info(key string) Info {
	return Info{Key: key, Size: int64(len(o.data)), ModTime: o.modTime}
}
