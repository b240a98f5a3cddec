// Package store implements the persistent key/value storage used by the guide
// coordinator and the content repositories. Values are JSON-shaped lists or
// integers; keys live in named buckets so unrelated data never collides.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Store is the storage contract the coordinator and repositories depend on.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetJSON unmarshals the value at bucket/key into dest, reporting whether
	// a usable value was found.
	GetJSON(bucket, key string, dest any) bool
	// SetJSON marshals value and stores it at bucket/key.
	SetJSON(bucket, key string, value any) error
	// GetInt64 reads an integer value, reporting whether it was found.
	GetInt64(bucket, key string) (int64, bool)
	// SetInt64 stores an integer value.
	SetInt64(bucket, key string, v int64) error
	// Remove deletes the value at bucket/key. Removing a missing key is not
	// an error.
	Remove(bucket, key string) error
	Close() error
}

// BoltStore implements Store on top of a single bbolt database file.
type BoltStore struct {
	db *bolt.DB
}

// Open opens (or creates) the database file under dir.
func Open(dir string) (*BoltStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	path := filepath.Join(dir, "prismcast.db")
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) GetJSON(bucket, key string, dest any) bool {
	data := s.read(bucket, key)
	if data == nil {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *BoltStore) SetJSON(bucket, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", bucket, key, err)
	}
	return s.write(bucket, key, data)
}

func (s *BoltStore) GetInt64(bucket, key string) (int64, bool) {
	data := s.read(bucket, key)
	if len(data) != 8 {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(data)), true
}

func (s *BoltStore) SetInt64(bucket, key string, v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return s.write(bucket, key, buf[:])
}

func (s *BoltStore) Remove(bucket, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) read(bucket, key string) []byte {
	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data
}

func (s *BoltStore) write(bucket, key string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}
