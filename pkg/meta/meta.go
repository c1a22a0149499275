// Package meta persists the small amount of state the avatar engine needs
// beyond the cache itself: the hashing salt and the index of where cached
// entries came from.
package meta

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

// SaltBytes is the amount of randomness in a generated salt.
const SaltBytes = 32

// Source records the origin of a cached entry so it can be regenerated:
// a remote URL for legacy avatars, a local path for uploads, an email
// address for the remote avatar service.
type Source struct {
	Namespace string    `json:"namespace"`
	Hash      string    `json:"hash"`
	Value     string    `json:"value"`
	MimeType  string    `json:"mime_type,omitempty"`
	Updated   time.Time `json:"updated"`
}

// Store persists the salt and source index.
type Store interface {
	// Salt returns the installation salt, generating and persisting it on
	// first use.
	Salt(ctx context.Context) (string, error)
	PutSource(ctx context.Context, src Source) error
	// Source returns the record for (namespace, hash) or a KindNotFound error.
	Source(ctx context.Context, namespace, hash string) (Source, error)
	DeleteSource(ctx context.Context, namespace, hash string) error
	Close() error
}

func newSalt(r io.Reader) (string, error) {
	buf := make([]byte, SaltBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("meta: generate salt: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func sourceKey(namespace, hash string) string {
	return namespace + "/" + hash
}

// MemoryStore is an in-memory Store for tests and one-shot CLI runs.
type MemoryStore struct {
	mu      sync.RWMutex
	salt    string
	sources map[string]Source
	rand    io.Reader
}

// NewMemoryStore creates an empty store. A non-empty salt is used as is.
func NewMemoryStore(salt string) *MemoryStore {
	return &MemoryStore{salt: salt, sources: make(map[string]Source), rand: rand.Reader}
}

func (m *MemoryStore) Salt(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.salt == "" {
		salt, err := newSalt(m.rand)
		if err != nil {
			return "", err
		}
		m.salt = salt
	}
	return m.salt, nil
}

func (m *MemoryStore) PutSource(ctx context.Context, src Source) error {
	if src.Namespace == "" || src.Hash == "" {
		return xerrors.E(xerrors.KindInvalid, "meta.PutSource", sourceKey(src.Namespace, src.Hash))
	}
	if src.Updated.IsZero() {
		src.Updated = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[sourceKey(src.Namespace, src.Hash)] = src
	return nil
}

func (m *MemoryStore) Source(ctx context.Context, namespace, hash string) (Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[sourceKey(namespace, hash)]
	if !ok {
		return Source{}, xerrors.E(xerrors.KindNotFound, "meta.Source", sourceKey(namespace, hash))
	}
	return src, nil
}

func (m *MemoryStore) DeleteSource(ctx context.Context, namespace, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, sourceKey(namespace, hash))
	return nil
}

func (m *MemoryStore) Close() error { return nil }
