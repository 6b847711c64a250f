package store

import (
	"bytes"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const boltBucket = "ledgerpool"

// BoltStore is a CredentialStore backed by a single bbolt file with one
// bucket.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens, or creates, the bbolt file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, unavailable("create bolt dir", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, unavailable("open bolt", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, unavailable("create bolt bucket", err)
	}

	return &BoltStore{db: db}, nil
}

// Get implements the CredentialStore interface.
func (s *BoltStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(boltBucket)).Get(key)
		if v == nil {
			return notFound(key)
		}
		// bolt values are only valid for the life of the transaction
		val = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, unavailable("bolt get", err)
	}
	return val, nil
}

// Put implements the CredentialStore interface.
func (s *BoltStore) Put(key, value []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Put(key, value)
	})
	return unavailable("bolt put", err)
}

// Delete implements the CredentialStore interface.
func (s *BoltStore) Delete(key []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(boltBucket)).Delete(key)
	})
	return unavailable("bolt delete", err)
}

// Scan implements the CredentialStore interface.
func (s *BoltStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	var cbErr error
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(boltBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(append([]byte{}, k...), append([]byte{}, v...)); err != nil {
				cbErr = err
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("bolt scan", err)
	}
	return cbErr
}

// Close implements the CredentialStore interface.
func (s *BoltStore) Close() error {
	return unavailable("bolt close", s.db.Close())
}
