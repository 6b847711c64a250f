package peers

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/mosaicnetworks/ledgerpool/src/crypto/bls"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
)

// NodeInfo describes a validator node. It is immutable once admitted, except
// for the Active flag and the BLS key, which change through removal and key
// rotation entries.
type NodeInfo struct {
	Alias      string `json:"alias"`
	Addr       string `json:"addr"`
	SigningKey string `json:"signing_key"`
	BLSKey     string `json:"bls_key"`
	Active     bool   `json:"active"`

	signingPub *ecdsa.PublicKey
	blsPub     *bls.PublicKey
}

// NewNodeInfo creates an active NodeInfo from its public keys.
func NewNodeInfo(alias, addr string, signing *ecdsa.PublicKey, blsKey *bls.PublicKey) NodeInfo {
	return NodeInfo{
		Alias:      alias,
		Addr:       addr,
		SigningKey: keys.PublicKeyHex(signing),
		BLSKey:     bls.PublicKeyHex(blsKey),
		Active:     true,
		signingPub: signing,
		blsPub:     blsKey,
	}
}

// SigningPubKey returns the parsed ECDSA key used to verify the node's
// replies.
func (n *NodeInfo) SigningPubKey() (*ecdsa.PublicKey, error) {
	if n.signingPub == nil {
		pub, err := keys.ParsePublicKeyHex(n.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("node %s signing key: %v", n.Alias, err)
		}
		n.signingPub = pub
	}
	return n.signingPub, nil
}

// BLSPubKey returns the parsed multi-signature key of the node.
func (n *NodeInfo) BLSPubKey() (*bls.PublicKey, error) {
	if n.blsPub == nil {
		pub, err := bls.ParsePublicKeyHex(n.BLSKey)
		if err != nil {
			return nil, fmt.Errorf("node %s bls key: %v", n.Alias, err)
		}
		n.blsPub = pub
	}
	return n.blsPub, nil
}

// validate parses both keys, caching them.
func (n *NodeInfo) validate() error {
	if n.Alias == "" {
		return fmt.Errorf("missing alias")
	}
	if n.Addr == "" {
		return fmt.Errorf("node %s: missing address", n.Alias)
	}
	if _, err := n.SigningPubKey(); err != nil {
		return err
	}
	if _, err := n.BLSPubKey(); err != nil {
		return err
	}
	return nil
}
