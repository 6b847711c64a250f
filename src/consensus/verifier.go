package consensus

import (
	"bytes"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

// Verifier checks replies against one version of the registry.
type Verifier struct {
	reg          *peers.Registry
	policy       Policy
	maxStaleness time.Duration
	now          func() time.Time
	logger       *logrus.Entry
}

// NewVerifier creates a Verifier. A zero maxStaleness accepts replies of any
// age.
func NewVerifier(reg *peers.Registry, policy Policy, maxStaleness time.Duration, logger *logrus.Entry) *Verifier {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Verifier{
		reg:          reg,
		policy:       policy,
		maxStaleness: maxStaleness,
		now:          time.Now,
		logger:       logger,
	}
}

// AttestationThreshold is the number of active nodes that must sign a state
// root for it to be trusted.
func (v *Verifier) AttestationThreshold() int {
	return v.policy.Required(v.reg.ActiveLen())
}

// Verify checks a reply, expected to come from node. The checks run in this
// order: node signature, state proof, multi-signature, freshness. The first
// failure rejects the reply.
func (v *Verifier) Verify(reply *NodeReply, node peers.NodeInfo) (*VerifiedReply, error) {
	raw := reply.Raw
	req := reply.Request
	body := &raw.Body

	if err := v.checkSignature(raw, node); err != nil {
		return nil, err
	}

	if body.From != node.Alias {
		return nil, common.Errorf(common.BadSignature, "reply from %s claims to be from %s", node.Alias, body.From)
	}
	if body.ReqID != req.ReqID {
		return nil, common.Errorf(common.BadSignature, "%s answered request %d instead of %d", node.Alias, body.ReqID, req.ReqID)
	}

	_, index, _ := v.reg.ByAlias(node.Alias)

	verified := &VerifiedReply{
		Node:           index,
		Alias:          node.Alias,
		LedgerSeq:      body.LedgerSeq,
		PoolSize:       body.PoolSize,
		MultiSignature: body.MultiSignature,
	}

	if body.Op == net.RejectOp {
		val, _ := DecodeValue(KindReject, []byte(body.Reason))
		verified.Value = val
		return verified, nil
	}

	val, err := DecodeValue(Kind(body.Kind), body.Result)
	if err != nil {
		return nil, common.NewPoolErr(common.InvalidStateProof, node.Alias, err)
	}
	verified.Value = val

	proofRequired := req.Class == net.ReadRequest
	if body.StateProof == nil && !proofRequired {
		return verified, nil
	}

	if err := v.checkStateProof(body, node); err != nil {
		return nil, err
	}

	if err := v.checkMultiSignature(body, node); err != nil {
		return nil, err
	}

	if err := v.checkFreshness(req, body, node); err != nil {
		return nil, err
	}

	return verified, nil
}

func (v *Verifier) checkSignature(raw *net.Reply, node peers.NodeInfo) error {
	pub, err := node.SigningPubKey()
	if err != nil {
		return common.NewPoolErr(common.BadSignature, node.Alias, err)
	}

	msg, err := raw.SigningBytes()
	if err != nil {
		return common.NewPoolErr(common.BadSignature, node.Alias, err)
	}

	if !keys.Verify(pub, msg, raw.Signature) {
		return common.Errorf(common.BadSignature, "reply from %s", node.Alias)
	}

	return nil
}

// checkStateProof hashes the proof up to its root and compares the proven
// value with the returned result.
func (v *Verifier) checkStateProof(body *net.ReplyBody, node peers.NodeInfo) error {
	if body.StateProof == nil {
		return common.Errorf(common.InvalidStateProof, "reply from %s has no state proof", node.Alias)
	}

	proven, err := body.StateProof.Verify()
	if err != nil {
		return common.NewPoolErr(common.InvalidStateProof, node.Alias, err)
	}

	provenCanonical, err := common.CanonicalizeJSON(proven)
	if err != nil {
		return common.NewPoolErr(common.InvalidStateProof, node.Alias+": proven value", err)
	}
	resultCanonical, err := common.CanonicalizeJSON(body.Result)
	if err != nil {
		return common.NewPoolErr(common.InvalidStateProof, node.Alias+": result", err)
	}

	if !bytes.Equal(provenCanonical, resultCanonical) {
		return common.Errorf(common.InvalidStateProof, "%s: result is not the proven value", node.Alias)
	}

	return nil
}

// checkMultiSignature makes sure the root the proof reduces to was signed by
// enough active nodes.
func (v *Verifier) checkMultiSignature(body *net.ReplyBody, node peers.NodeInfo) error {
	ms := body.MultiSignature
	if ms == nil {
		return common.Errorf(common.InsufficientAttestors, "reply from %s has no multi-signature", node.Alias)
	}

	if ms.Value.StateRootHash != body.StateProof.RootHash {
		return common.Errorf(common.InsufficientAttestors, "%s: multi-signature covers root %s, proof has %s",
			node.Alias, ms.Value.StateRootHash, body.StateProof.RootHash)
	}

	if err := ms.Verify(v.reg, v.AttestationThreshold()); err != nil {
		if common.IsPool(err, common.InsufficientAttestors) {
			return err
		}
		return common.NewPoolErr(common.InsufficientAttestors, node.Alias, err)
	}

	return nil
}

func (v *Verifier) checkFreshness(req *net.Request, body *net.ReplyBody, node peers.NodeInfo) error {
	if body.LedgerSeq < req.MinSeq {
		return common.Errorf(common.StaleReply, "%s is at ledger seq %d, %d required",
			node.Alias, body.LedgerSeq, req.MinSeq)
	}

	if v.maxStaleness > 0 {
		attested := time.Unix(int64(body.MultiSignature.Value.Timestamp), 0)
		if age := v.now().Sub(attested); age > v.maxStaleness {
			return common.Errorf(common.StaleReply, "%s state attested %v ago", node.Alias, age.Round(time.Second))
		}
	}

	return nil
}
