package proof

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// StateProof proves the value stored under Key in the state whose root is
// RootHash.
type StateProof struct {
	RootHash string   `json:"root_hash"`
	Key      string   `json:"key"`
	Nodes    [][]byte `json:"nodes"`
}

// TrieKey maps an application key to its path in the state trie.
func TrieKey(key string) []byte {
	return ethcrypto.Keccak256([]byte(key))
}

// Root decodes RootHash.
func (p *StateProof) Root() (ethcommon.Hash, error) {
	raw, err := common.DecodeFromString(p.RootHash)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	if len(raw) != ethcommon.HashLength {
		return ethcommon.Hash{}, common.Errorf(common.InvalidStateProof, "root hash has %d bytes", len(raw))
	}
	return ethcommon.BytesToHash(raw), nil
}

// Verify walks the proof from RootHash along the path of Key and returns the
// value it leads to. A proof that does not hash up to RootHash, or that proves
// the key absent, fails with InvalidStateProof.
func (p *StateProof) Verify() ([]byte, error) {
	if p == nil {
		return nil, common.Errorf(common.InvalidStateProof, "missing state proof")
	}

	root, err := p.Root()
	if err != nil {
		return nil, common.NewPoolErr(common.InvalidStateProof, "root hash", err)
	}

	db := memorydb.New()
	for _, node := range p.Nodes {
		if err := db.Put(ethcrypto.Keccak256(node), node); err != nil {
			return nil, common.NewPoolErr(common.InvalidStateProof, "proof node", err)
		}
	}

	value, err := trie.VerifyProof(root, TrieKey(p.Key), db)
	if err != nil {
		return nil, common.NewPoolErr(common.InvalidStateProof, p.Key, err)
	}
	if value == nil {
		return nil, common.Errorf(common.InvalidStateProof, "proof shows %s absent", p.Key)
	}

	return value, nil
}
