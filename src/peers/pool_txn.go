package peers

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/crypto"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
)

// TxnType is the kind of change a pool ledger entry makes.
type TxnType string

const (
	// NodeAdd admits a node, or re-activates a retired one.
	NodeAdd TxnType = "NODE_ADD"
	// NodeRemove retires a node.
	NodeRemove TxnType = "NODE_REMOVE"
	// KeyRotate replaces a node's multi-signature key.
	KeyRotate TxnType = "KEY_ROTATE"
)

// PoolTxnBody is the signed part of a pool ledger entry. Depending on the
// type, some node fields are ignored: removals only use the alias, rotations
// the alias and the BLS key.
type PoolTxnBody struct {
	Seq        uint64  `json:"seq"`
	Type       TxnType `json:"type"`
	Alias      string  `json:"alias"`
	Addr       string  `json:"addr,omitempty"`
	SigningKey string  `json:"signing_key,omitempty"`
	BLSKey     string  `json:"bls_key,omitempty"`
}

// Hash returns the SHA256 hash of the canonical encoding of the body.
func (b *PoolTxnBody) Hash() ([]byte, error) {
	raw, err := common.CanonicalJSON(b)
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(raw), nil
}

// Attestation is a BLS multi-signature by a set of nodes, named by alias.
type Attestation struct {
	Participants []string `json:"participants"`
	Signature    string   `json:"signature"`
}

// PoolTxn is one entry of the pool ledger. Root is the registry digest after
// applying the entry. Signature is made by the node concerned, with its
// signing key, over the canonical body. Genesis entries carry no
// Attestation; entries fetched by catch-up carry the multi-signature of the
// active nodes over Root.
type PoolTxn struct {
	Body        PoolTxnBody  `json:"body"`
	Root        string       `json:"root"`
	Signature   string       `json:"signature"`
	Attestation *Attestation `json:"attestation,omitempty"`
}

// Marshal returns the JSON encoding of the entry.
func (t *PoolTxn) Marshal() ([]byte, error) {
	return json.Marshal(t)
}

// Unmarshal decodes a JSON encoded entry.
func (t *PoolTxn) Unmarshal(data []byte) error {
	return json.Unmarshal(data, t)
}

// Sign signs the canonical body with the node's signing key.
func (t *PoolTxn) Sign(key *ecdsa.PrivateKey) error {
	raw, err := common.CanonicalJSON(&t.Body)
	if err != nil {
		return err
	}
	sig, err := keys.Sign(key, raw)
	if err != nil {
		return err
	}
	t.Signature = sig
	return nil
}

// Verify checks the entry's signature against pub.
func (t *PoolTxn) Verify(pub *ecdsa.PublicKey) (bool, error) {
	raw, err := common.CanonicalJSON(&t.Body)
	if err != nil {
		return false, err
	}
	return keys.Verify(pub, raw, t.Signature), nil
}

// RootBytes decodes Root.
func (t *PoolTxn) RootBytes() ([]byte, error) {
	return common.DecodeFromString(t.Root)
}

// NextRoot chains the hash of body onto prev.
func NextRoot(prev []byte, body *PoolTxnBody) ([]byte, error) {
	h, err := body.Hash()
	if err != nil {
		return nil, err
	}
	return crypto.SimpleHashFromTwoHashes(prev, h), nil
}

func (t *PoolTxn) String() string {
	return fmt.Sprintf("%s#%d(%s)", t.Body.Type, t.Body.Seq, t.Body.Alias)
}
