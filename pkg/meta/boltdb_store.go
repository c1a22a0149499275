package meta

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jacktea/xavatar/pkg/xerrors"
)

var (
	bucketMeta    = []byte("meta")
	bucketSources = []byte("sources")

	metaSaltKey = []byte("salt")
)

// BoltConfig configures the BoltDB-backed store.
type BoltConfig struct {
	Path    string
	NoSync  bool
	Timeout time.Duration
}

// BoltStore persists metadata in BoltDB.
type BoltStore struct {
	cfg  BoltConfig
	db   *bolt.DB
	rand io.Reader
}

// NewBoltStore opens (or creates) the database at cfg.Path.
func NewBoltStore(cfg BoltConfig) (*BoltStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("boltdb: path is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 1 * time.Second
	}
	opts := bolt.Options{
		Timeout: cfg.Timeout,
		NoSync:  cfg.NoSync,
	}
	db, err := bolt.Open(cfg.Path, 0o600, &opts)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.KindStorageUnavailable, "boltdb.open", cfg.Path, err)
	}
	store := &BoltStore{cfg: cfg, db: db, rand: rand.Reader}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (b *BoltStore) init() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketMeta, bucketSources} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("boltdb: create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

// Salt returns the stored salt. The first caller generates it inside a
// write transaction, so concurrent first calls agree on one value.
func (b *BoltStore) Salt(ctx context.Context) (string, error) {
	var salt string
	err := b.db.View(func(tx *bolt.Tx) error {
		salt = string(tx.Bucket(bucketMeta).Get(metaSaltKey))
		return nil
	})
	if err != nil || salt != "" {
		return salt, err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketMeta)
		if existing := bucket.Get(metaSaltKey); existing != nil {
			salt = string(existing)
			return nil
		}
		generated, err := newSalt(b.rand)
		if err != nil {
			return err
		}
		salt = generated
		return bucket.Put(metaSaltKey, []byte(generated))
	})
	return salt, err
}

func (b *BoltStore) PutSource(ctx context.Context, src Source) error {
	if src.Namespace == "" || src.Hash == "" {
		return xerrors.E(xerrors.KindInvalid, "boltdb.PutSource", sourceKey(src.Namespace, src.Hash))
	}
	if src.Updated.IsZero() {
		src.Updated = time.Now()
	}
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSources).Put([]byte(sourceKey(src.Namespace, src.Hash)), data)
	})
}

func (b *BoltStore) Source(ctx context.Context, namespace, hash string) (Source, error) {
	var src Source
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSources).Get([]byte(sourceKey(namespace, hash)))
		if data == nil {
			return xerrors.E(xerrors.KindNotFound, "boltdb.Source", sourceKey(namespace, hash))
		}
		return json.Unmarshal(data, &src)
	})
	return src, err
}

func (b *BoltStore) DeleteSource(ctx context.Context, namespace, hash string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSources).Delete([]byte(sourceKey(namespace, hash)))
	})
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
