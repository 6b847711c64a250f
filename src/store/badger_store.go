package store

import (
	"os"

	"github.com/dgraph-io/badger"
)

// BadgerStore is a CredentialStore backed by a badger database directory.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens, or creates, a badger database in path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, unavailable("create badger dir", err)
	}

	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	opts.Logger = nil

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, unavailable("open badger", err)
	}

	return &BadgerStore{
		db:   handle,
		path: path,
	}, nil
}

// Path returns the database directory.
func (s *BadgerStore) Path() string {
	return s.path
}

// Get implements the CredentialStore interface.
func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if isDBKeyNotFound(err) {
			return nil, notFound(key)
		}
		return nil, unavailable("badger get", err)
	}
	return val, nil
}

// Put implements the CredentialStore interface.
func (s *BadgerStore) Put(key, value []byte) error {
	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Set(key, value); err != nil {
		return unavailable("badger set", err)
	}

	return unavailable("badger commit", tx.Commit())
}

// Delete implements the CredentialStore interface. Deleting a missing key is
// not an error.
func (s *BadgerStore) Delete(key []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	return unavailable("badger delete", err)
}

// Scan implements the CredentialStore interface.
func (s *BadgerStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	var cbErr error
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(key, val); err != nil {
				cbErr = err
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return unavailable("badger scan", err)
	}
	return cbErr
}

// Close implements the CredentialStore interface.
func (s *BadgerStore) Close() error {
	return unavailable("badger close", s.db.Close())
}

func isDBKeyNotFound(err error) bool {
	return err.Error() == badger.ErrKeyNotFound.Error()
}
