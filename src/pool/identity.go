package pool

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/mr-tron/base58"

	"github.com/mosaicnetworks/ledgerpool/src/crypto"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
	"github.com/mosaicnetworks/ledgerpool/src/net"
)

// didLength is the number of public key hash bytes kept in a DID.
const didLength = 16

// Identity is a client signing key with the identifier derived from it.
type Identity struct {
	Key *ecdsa.PrivateKey

	once   sync.Once
	did    string
	pubHex string
}

// NewIdentity wraps key.
func NewIdentity(key *ecdsa.PrivateKey) *Identity {
	return &Identity{
		Key: key,
	}
}

// DID returns the base58 encoding of the first 16 bytes of the SHA256 hash of
// the public key.
func (i *Identity) DID() string {
	i.once.Do(i.derive)
	return i.did
}

// PublicKeyHex returns the public key as a hex string.
func (i *Identity) PublicKeyHex() string {
	i.once.Do(i.derive)
	return i.pubHex
}

func (i *Identity) derive() {
	i.did = DIDFromPublicKey(&i.Key.PublicKey)
	i.pubHex = keys.PublicKeyHex(&i.Key.PublicKey)
}

// DIDFromPublicKey derives the identifier of pub.
func DIDFromPublicKey(pub *ecdsa.PublicKey) string {
	h := crypto.SHA256(keys.FromPublicKey(pub))
	return base58.Encode(h[:didLength])
}

// SignRequest sets the request's identifier to this identity, if it has none,
// and signs it.
func (i *Identity) SignRequest(req *net.Request) error {
	if req.Identifier == "" {
		req.Identifier = i.DID()
	}

	msg, err := req.SigningBytes()
	if err != nil {
		return err
	}

	sig, err := keys.Sign(i.Key, msg)
	if err != nil {
		return err
	}

	req.Signature = sig
	return nil
}

// MultiSignRequest adds this identity's signature to the request's
// signatures, keyed by DID. A single Signature already set is moved into the
// map under the request identifier, so both forms never coexist.
func (i *Identity) MultiSignRequest(req *net.Request) error {
	if req.Identifier == "" {
		req.Identifier = i.DID()
	}

	msg, err := req.SigningBytes()
	if err != nil {
		return err
	}

	sig, err := keys.Sign(i.Key, msg)
	if err != nil {
		return err
	}

	if req.Signatures == nil {
		req.Signatures = make(map[string]string)
	}
	if req.Signature != "" {
		req.Signatures[req.Identifier] = req.Signature
		req.Signature = ""
	}
	req.Signatures[i.DID()] = sig
	return nil
}

// VerifyRequest checks the signature made by the holder of pub on req, single
// or multi.
func VerifyRequest(req *net.Request, pub *ecdsa.PublicKey) error {
	msg, err := req.SigningBytes()
	if err != nil {
		return err
	}

	did := DIDFromPublicKey(pub)

	sig := req.Signatures[did]
	if sig == "" && req.Identifier == did {
		sig = req.Signature
	}
	if sig == "" {
		return fmt.Errorf("request is not signed by %s", did)
	}

	if !keys.Verify(pub, msg, sig) {
		return fmt.Errorf("invalid signature by %s", did)
	}
	return nil
}
