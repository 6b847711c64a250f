package peers

import (
	"crypto/ecdsa"
	"fmt"
	"testing"

	"github.com/mosaicnetworks/ledgerpool/src/crypto/bls"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
)

type testNode struct {
	alias  string
	key    *ecdsa.PrivateKey
	blsKey *bls.PrivateKey
}

func newTestNodes(t testing.TB, n int) []testNode {
	res := make([]testNode, n)
	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		blsKey, err := bls.GenerateKey(nil)
		if err != nil {
			t.Fatal(err)
		}
		res[i] = testNode{
			alias:  fmt.Sprintf("node%d", i+1),
			key:    key,
			blsKey: blsKey,
		}
	}
	return res
}

func (n testNode) addBody() PoolTxnBody {
	return PoolTxnBody{
		Type:       NodeAdd,
		Alias:      n.alias,
		Addr:       fmt.Sprintf("%s.pool:9701", n.alias),
		SigningKey: keys.PublicKeyHex(&n.key.PublicKey),
		BLSKey:     bls.PublicKeyHex(n.blsKey.PublicKey()),
	}
}

// buildRegistry admits all nodes and returns the registry with its history.
func buildRegistry(t testing.TB, nodes []testNode) (*Registry, []PoolTxn) {
	reg := NewRegistry()
	var txns []PoolTxn
	for _, n := range nodes {
		txn, err := reg.NewTxn(n.addBody(), n.key)
		if err != nil {
			t.Fatal(err)
		}
		reg, err = reg.Apply(txn)
		if err != nil {
			t.Fatalf("applying %s: %v", txn, err)
		}
		txns = append(txns, *txn)
	}
	return reg, txns
}
