// Package bls wraps the BLS12-381 signatures used to attest pool ledger
// entries and state roots. Keys live in G2 and signatures in G1, so that
// aggregated signatures stay short.
package bls

import (
	"crypto/rand"
	"errors"
	"fmt"

	circl "github.com/cloudflare/circl/sign/bls"
	"github.com/mosaicnetworks/ledgerpool/src/common"
)

type (
	// PrivateKey is a BLS private key.
	PrivateKey = circl.PrivateKey[circl.KeyG2SigG1]
	// PublicKey is a BLS public key.
	PublicKey = circl.PublicKey[circl.KeyG2SigG1]
)

// SeedSize is the minimum length of the key generation seed.
const SeedSize = 32

// GenerateKey derives a private key from seed. A nil seed draws a random one.
func GenerateKey(seed []byte) (*PrivateKey, error) {
	if seed == nil {
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, err
		}
	}
	if len(seed) < SeedSize {
		return nil, fmt.Errorf("bls seed must be at least %d bytes", SeedSize)
	}
	return circl.KeyGen[circl.KeyG2SigG1](seed, nil, nil)
}

// Sign signs msg with key.
func Sign(key *PrivateKey, msg []byte) []byte {
	return circl.Sign(key, msg)
}

// Verify checks a single signature.
func Verify(pub *PublicKey, msg, sig []byte) bool {
	return circl.Verify(pub, msg, sig)
}

// Aggregate combines signatures into one.
func Aggregate(sigs [][]byte) ([]byte, error) {
	if len(sigs) == 0 {
		return nil, errors.New("no signatures to aggregate")
	}
	list := make([]circl.Signature, len(sigs))
	for i, s := range sigs {
		list[i] = s
	}
	return circl.Aggregate(circl.KeyG2SigG1{}, list)
}

// VerifyMulti checks that agg aggregates one signature of msg from each key
// in pubs.
func VerifyMulti(pubs []*PublicKey, msg, agg []byte) bool {
	if len(pubs) == 0 {
		return false
	}
	msgs := make([][]byte, len(pubs))
	for i := range pubs {
		msgs[i] = msg
	}
	return circl.VerifyAggregate(pubs, msgs, agg)
}

// PublicKeyHex returns the 0X-prefixed hex encoding of pub.
func PublicKeyHex(pub *PublicKey) string {
	raw, err := pub.MarshalBinary()
	if err != nil {
		return ""
	}
	return common.EncodeToString(raw)
}

// ParsePublicKeyHex is the inverse of PublicKeyHex.
func ParsePublicKeyHex(s string) (*PublicKey, error) {
	raw, err := common.DecodeFromString(s)
	if err != nil {
		return nil, err
	}
	pub := new(PublicKey)
	if err := pub.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return pub, nil
}

// DumpPrivateKey serializes key.
func DumpPrivateKey(key *PrivateKey) ([]byte, error) {
	return key.MarshalBinary()
}

// ParsePrivateKey is the inverse of DumpPrivateKey.
func ParsePrivateKey(raw []byte) (*PrivateKey, error) {
	key := new(PrivateKey)
	if err := key.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return key, nil
}
