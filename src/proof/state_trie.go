package proof

import (
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// StateTrie is an in-memory ledger state, as kept by a validator. Values are
// stored under TrieKey(key).
type StateTrie struct {
	tr *trie.Trie
}

// NewStateTrie returns an empty state.
func NewStateTrie() *StateTrie {
	db := triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil)
	return &StateTrie{
		tr: trie.NewEmpty(db),
	}
}

// Put stores value under key.
func (s *StateTrie) Put(key string, value []byte) error {
	return s.tr.Update(TrieKey(key), value)
}

// Get returns the value stored under key, or nil.
func (s *StateTrie) Get(key string) ([]byte, error) {
	return s.tr.Get(TrieKey(key))
}

// RootHash returns the hex encoded root of the state.
func (s *StateTrie) RootHash() string {
	h := s.tr.Hash()
	return common.EncodeToString(h.Bytes())
}

// Prove builds the proof for key.
func (s *StateTrie) Prove(key string) (*StateProof, error) {
	root := s.RootHash()

	db := memorydb.New()
	if err := s.tr.Prove(TrieKey(key), db); err != nil {
		return nil, err
	}

	var nodes [][]byte
	it := db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		nodes = append(nodes, append([]byte{}, it.Value()...))
	}

	return &StateProof{
		RootHash: root,
		Key:      key,
		Nodes:    nodes,
	}, it.Error()
}

// Copy returns an independent copy of the state. Updates to either side are
// not visible to the other.
func (s *StateTrie) Copy() *StateTrie {
	return &StateTrie{tr: s.tr.Copy()}
}
