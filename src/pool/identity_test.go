package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
	"github.com/mosaicnetworks/ledgerpool/src/net"
)

func newTestIdentity(t *testing.T) *Identity {
	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)
	return NewIdentity(key)
}

func TestIdentityDID(t *testing.T) {
	id := newTestIdentity(t)

	require.Equal(t, DIDFromPublicKey(&id.Key.PublicKey), id.DID())
	require.NotEqual(t, newTestIdentity(t).DID(), id.DID())

	pub, err := keys.ParsePublicKeyHex(id.PublicKeyHex())
	require.NoError(t, err)
	require.Equal(t, id.DID(), DIDFromPublicKey(pub))
}

func TestSignRequest(t *testing.T) {
	id := newTestIdentity(t)

	req := &net.Request{
		ReqID:     1,
		Operation: getOp("answer"),
	}
	require.NoError(t, id.SignRequest(req))
	require.Equal(t, id.DID(), req.Identifier)
	require.NotEmpty(t, req.Signature)
	require.NoError(t, VerifyRequest(req, &id.Key.PublicKey))

	// another key did not sign it
	require.Error(t, VerifyRequest(req, &newTestIdentity(t).Key.PublicKey))

	// the signature covers the operation
	req.Operation.Key = "other"
	require.Error(t, VerifyRequest(req, &id.Key.PublicKey))
}

func TestSignRequestConcurrent(t *testing.T) {
	id := newTestIdentity(t)

	reqs := make([]*net.Request, 8)
	var wg sync.WaitGroup
	for i := range reqs {
		reqs[i] = &net.Request{ReqID: uint64(i + 1), Operation: getOp("answer")}
		wg.Add(1)
		go func(req *net.Request) {
			defer wg.Done()
			assert.NoError(t, id.SignRequest(req))
			assert.NotEmpty(t, id.PublicKeyHex())
		}(reqs[i])
	}
	wg.Wait()

	for _, req := range reqs {
		require.Equal(t, id.DID(), req.Identifier)
		require.NoError(t, VerifyRequest(req, &id.Key.PublicKey))
	}
}

func TestMultiSignRequest(t *testing.T) {
	alice := newTestIdentity(t)
	bob := newTestIdentity(t)

	req := &net.Request{
		ReqID:     2,
		Operation: getOp("answer"),
	}
	require.NoError(t, alice.SignRequest(req))
	require.NoError(t, bob.MultiSignRequest(req))

	require.Empty(t, req.Signature)
	require.Len(t, req.Signatures, 2)
	require.Equal(t, alice.DID(), req.Identifier)

	require.NoError(t, VerifyRequest(req, &alice.Key.PublicKey))
	require.NoError(t, VerifyRequest(req, &bob.Key.PublicKey))
	require.Error(t, VerifyRequest(req, &newTestIdentity(t).Key.PublicKey))
}

func TestNewRequestIsSigned(t *testing.T) {
	nw, client := newTestNetwork(t, 4)
	conf := newTestConfig(t, nw, client)

	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)
	conf.Key = key

	p := openTestPool(t, conf)

	r1, err := p.NewRequest(getOp("answer"), net.ReadRequest)
	require.NoError(t, err)
	r2, err := p.NewRequest(getOp("answer"), net.ReadRequest)
	require.NoError(t, err)

	require.NotEqual(t, r1.ReqID, r2.ReqID)
	require.Equal(t, p.Identity().DID(), r1.Identifier)
	require.Equal(t, conf.ProtocolVersion, r1.ProtocolVersion)
	require.NoError(t, VerifyRequest(r1, &key.PublicKey))
	require.Equal(t, p.Identity().DID(), p.GetStats()["identifier"])
}
