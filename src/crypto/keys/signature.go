package keys

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/mosaicnetworks/ledgerpool/src/crypto"
)

// Sign signs the SHA256 digest of msg with the private key and returns the
// encoded signature.
func Sign(priv *ecdsa.PrivateKey, msg []byte) (string, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, crypto.SHA256(msg))
	if err != nil {
		return "", err
	}
	return EncodeSignature(r, s), nil
}

// Verify checks that sig, as produced by Sign, is a signature of msg by the
// owner of pub. Malformed signatures never verify.
func Verify(pub *ecdsa.PublicKey, msg []byte, sig string) bool {
	if pub == nil {
		return false
	}
	r, s, err := DecodeSignature(sig)
	if err != nil {
		return false
	}
	return ecdsa.Verify(pub, crypto.SHA256(msg), r, s)
}

// EncodeSignature returns a string representation of a signature.
func EncodeSignature(r, s *big.Int) string {
	return fmt.Sprintf("%s|%s", r.Text(36), s.Text(36))
}

// DecodeSignature parses a string representation of a signature as produced by
// EncodeSignature.
func DecodeSignature(sig string) (r, s *big.Int, err error) {
	values := strings.Split(sig, "|")
	if len(values) != 2 {
		return r, s, fmt.Errorf("wrong number of values in signature: got %d, want 2", len(values))
	}
	var ok bool
	if r, ok = new(big.Int).SetString(values[0], 36); !ok {
		return nil, nil, fmt.Errorf("malformed r value %q", values[0])
	}
	if s, ok = new(big.Int).SetString(values[1], 36); !ok {
		return nil, nil, fmt.Errorf("malformed s value %q", values[1])
	}
	return r, s, nil
}
