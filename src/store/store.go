package store

import (
	"fmt"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// CredentialStore is the byte-level key-value collaborator the pool client
// persists through. Get returns a NotFound PoolErr for a missing key; every
// other failure is a StoreUnavailable PoolErr.
type CredentialStore interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	// Scan calls fn for every key starting with prefix, in key order, until
	// fn returns an error.
	Scan(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

const (
	// BadgerType selects the badger backed store
	BadgerType = "badger"
	// BoltType selects the bbolt backed store
	BoltType = "bolt"
	// InmemType selects the volatile in-memory store
	InmemType = "inmem"
)

// Open returns the CredentialStore of the given type rooted at path. path is
// ignored for the in-memory store.
func Open(storeType, path string) (CredentialStore, error) {
	switch storeType {
	case BadgerType:
		return NewBadgerStore(path)
	case BoltType:
		return NewBoltStore(path)
	case InmemType, "":
		return NewInmemStore(), nil
	default:
		return nil, common.NewPoolErr(common.StoreUnavailable,
			fmt.Sprintf("unknown store type %q", storeType), nil)
	}
}

func notFound(key []byte) error {
	return common.NewPoolErr(common.NotFound, string(key), nil)
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if common.AsPool(err) != nil {
		return err
	}
	return common.NewPoolErr(common.StoreUnavailable, op, err)
}
