package bls

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func seed(b byte) []byte {
	return bytes.Repeat([]byte{b}, SeedSize)
}

func TestGenerateKeyDeterministic(t *testing.T) {
	k1, err := GenerateKey(seed(1))
	require.NoError(t, err)
	k2, err := GenerateKey(seed(1))
	require.NoError(t, err)

	require.Equal(t, PublicKeyHex(k1.PublicKey()), PublicKeyHex(k2.PublicKey()))

	_, err = GenerateKey([]byte("short"))
	require.Error(t, err)
}

func TestMultiSignature(t *testing.T) {
	msg := []byte("state root")

	var (
		pubs []*PublicKey
		sigs [][]byte
	)
	for i := byte(1); i <= 3; i++ {
		k, err := GenerateKey(seed(i))
		require.NoError(t, err)
		pubs = append(pubs, k.PublicKey())
		sigs = append(sigs, Sign(k, msg))
		require.True(t, Verify(k.PublicKey(), msg, sigs[len(sigs)-1]))
	}

	agg, err := Aggregate(sigs)
	require.NoError(t, err)

	require.True(t, VerifyMulti(pubs, msg, agg))
	require.False(t, VerifyMulti(pubs, []byte("other root"), agg))
	require.False(t, VerifyMulti(pubs[:2], msg, agg))
	require.False(t, VerifyMulti(nil, msg, agg))
}

func TestPublicKeyHex(t *testing.T) {
	k, err := GenerateKey(nil)
	require.NoError(t, err)

	pub, err := ParsePublicKeyHex(PublicKeyHex(k.PublicKey()))
	require.NoError(t, err)
	require.Equal(t, PublicKeyHex(k.PublicKey()), PublicKeyHex(pub))

	raw, err := DumpPrivateKey(k)
	require.NoError(t, err)
	k2, err := ParsePrivateKey(raw)
	require.NoError(t, err)
	require.Equal(t, PublicKeyHex(k.PublicKey()), PublicKeyHex(k2.PublicKey()))
}
