package proof

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/bls"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

func testRegistry(t *testing.T, n int) (*peers.Registry, []string, []*bls.PrivateKey) {
	reg := peers.NewRegistry()
	var (
		aliases []string
		blsKeys []*bls.PrivateKey
	)

	for i := 1; i <= n; i++ {
		key, err := keys.GenerateECDSAKey()
		require.NoError(t, err)
		blsKey, err := bls.GenerateKey(nil)
		require.NoError(t, err)

		alias := fmt.Sprintf("node%d", i)
		txn, err := reg.NewTxn(peers.PoolTxnBody{
			Type:       peers.NodeAdd,
			Alias:      alias,
			Addr:       alias + ":9701",
			SigningKey: keys.PublicKeyHex(&key.PublicKey),
			BLSKey:     bls.PublicKeyHex(blsKey.PublicKey()),
		}, key)
		require.NoError(t, err)

		reg, err = reg.Apply(txn)
		require.NoError(t, err)

		aliases = append(aliases, alias)
		blsKeys = append(blsKeys, blsKey)
	}

	return reg, aliases, blsKeys
}

func signValue(t *testing.T, v MultiSignatureValue, aliases []string, blsKeys []*bls.PrivateKey) *MultiSignature {
	msg, err := v.SigningBytes()
	require.NoError(t, err)

	att, err := peers.Attest(msg, aliases, blsKeys)
	require.NoError(t, err)

	return &MultiSignature{Attestation: *att, Value: v}
}

func TestMultiSignature(t *testing.T) {
	reg, aliases, blsKeys := testRegistry(t, 4)

	value := MultiSignatureValue{
		LedgerID:          1,
		StateRootHash:     NewStateTrie().RootHash(),
		PoolStateRootHash: reg.RootHex(),
		TxnRootHash:       "00",
		Timestamp:         1600000000,
	}

	ms := signValue(t, value, aliases[:3], blsKeys[:3])
	require.NoError(t, ms.Verify(reg, 3))

	err := ms.Verify(reg, 4)
	require.True(t, common.IsPool(err, common.InsufficientAttestors), "got %v", err)

	// the signature binds every field of the value
	tampered := *ms
	tampered.Value.Timestamp++
	err = tampered.Verify(reg, 3)
	require.True(t, common.IsPool(err, common.InsufficientAttestors), "got %v", err)

	// signers must be the nodes they claim to be
	swapped := signValue(t, value, []string{aliases[0], aliases[1], aliases[2]},
		[]*bls.PrivateKey{blsKeys[1], blsKeys[0], blsKeys[3]})
	err = swapped.Verify(reg, 3)
	require.True(t, common.IsPool(err, common.InsufficientAttestors), "got %v", err)
}

func TestMultiSignatureUnknownSigner(t *testing.T) {
	reg, aliases, blsKeys := testRegistry(t, 4)

	stranger, err := bls.GenerateKey(nil)
	require.NoError(t, err)

	value := MultiSignatureValue{LedgerID: 1, StateRootHash: NewStateTrie().RootHash()}
	ms := signValue(t, value,
		append(append([]string{}, aliases...), "node5"),
		append(append([]*bls.PrivateKey{}, blsKeys...), stranger))

	err = ms.Verify(reg, 3)
	require.True(t, common.IsPool(err, common.InsufficientAttestors), "got %v", err)
}
