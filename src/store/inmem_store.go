package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// InmemStore is a volatile CredentialStore, used in tests and when no
// database is configured.
type InmemStore struct {
	sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewInmemStore returns an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		data: make(map[string][]byte),
	}
}

// Get implements the CredentialStore interface.
func (s *InmemStore) Get(key []byte) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()

	if s.closed {
		return nil, common.NewPoolErr(common.StoreUnavailable, "inmem get: store closed", nil)
	}

	v, ok := s.data[string(key)]
	if !ok {
		return nil, notFound(key)
	}
	return append([]byte{}, v...), nil
}

// Put implements the CredentialStore interface.
func (s *InmemStore) Put(key, value []byte) error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return common.NewPoolErr(common.StoreUnavailable, "inmem put: store closed", nil)
	}

	s.data[string(key)] = append([]byte{}, value...)
	return nil
}

// Delete implements the CredentialStore interface.
func (s *InmemStore) Delete(key []byte) error {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return common.NewPoolErr(common.StoreUnavailable, "inmem delete: store closed", nil)
	}

	delete(s.data, string(key))
	return nil
}

// Scan implements the CredentialStore interface.
func (s *InmemStore) Scan(prefix []byte, fn func(key, value []byte) error) error {
	s.RLock()
	if s.closed {
		s.RUnlock()
		return common.NewPoolErr(common.StoreUnavailable, "inmem scan: store closed", nil)
	}
	keys := []string{}
	values := map[string][]byte{}
	for k, v := range s.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
			values[k] = append([]byte{}, v...)
		}
	}
	s.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), values[k]); err != nil {
			return err
		}
	}
	return nil
}

// Close implements the CredentialStore interface.
func (s *InmemStore) Close() error {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	return nil
}
