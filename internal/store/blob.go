package store

import (
	"errors"
	"sync"

	bolt "go.etcd.io/bbolt"
)

// BlobStore abstracts the single named entry the serialized event index is
// persisted in. Implementations return (nil, nil) from Get when the entry
// has never been written.
type BlobStore interface {
	Get() ([]byte, error)
	Put(data []byte) error
	Close() error
}

var (
	bucketName = []byte("calendar")
	entryKey   = []byte("events")
)

// boltBlob stores the blob in a single-file bbolt database, one bucket with
// one key. This is the on-disk stand-in for browser local storage.
type boltBlob struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the bbolt database at path and ensures
// the calendar bucket exists.
func OpenBolt(path string) (BlobStore, error) {
	if path == "" {
		return nil, errors.New("store: blob path is empty")
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists(bucketName)
		return berr
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &boltBlob{db: db}, nil
}

func (b *boltBlob) Get() ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketName)
		if bk == nil {
			return nil
		}
		if v := bk.Get(entryKey); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func (b *boltBlob) Put(data []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(bucketName)
		if bk == nil {
			return errors.New("store: calendar bucket missing")
		}
		return bk.Put(entryKey, data)
	})
}

func (b *boltBlob) Close() error {
	return b.db.Close()
}

// memoryBlob keeps the blob in process memory. Used by tests and as a
// fallback when no data path is configured.
type memoryBlob struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryBlob returns an empty in-memory BlobStore.
func NewMemoryBlob() BlobStore {
	return &memoryBlob{}
}

func (m *memoryBlob) Get() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, nil
	}
	return append([]byte(nil), m.data...), nil
}

func (m *memoryBlob) Put(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

func (m *memoryBlob) Close() error { return nil }
