package peers

import (
	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/crypto/bls"
)

// VerifyAttestation checks that att is a valid multi-signature of msg by at
// least threshold distinct nodes that are active in this registry.
func (r *Registry) VerifyAttestation(att *Attestation, msg []byte, threshold int) error {
	if att == nil {
		return common.Errorf(common.InsufficientAttestors, "missing attestation")
	}

	seen := make(map[string]bool, len(att.Participants))
	pubs := make([]*bls.PublicKey, 0, len(att.Participants))

	for _, alias := range att.Participants {
		if seen[alias] {
			return common.Errorf(common.InsufficientAttestors, "participant %s listed twice", alias)
		}
		seen[alias] = true

		node, _, ok := r.ByAlias(alias)
		if !ok || !node.Active {
			return common.Errorf(common.InsufficientAttestors, "participant %s is not an active node", alias)
		}

		pub, err := node.BLSPubKey()
		if err != nil {
			return common.NewPoolErr(common.InsufficientAttestors, alias, err)
		}
		pubs = append(pubs, pub)
	}

	if len(pubs) < threshold {
		return common.Errorf(common.InsufficientAttestors, "%d participants, %d required", len(pubs), threshold)
	}

	sig, err := common.DecodeFromString(att.Signature)
	if err != nil {
		return common.NewPoolErr(common.InsufficientAttestors, "signature", err)
	}

	if !bls.VerifyMulti(pubs, msg, sig) {
		return common.Errorf(common.InsufficientAttestors, "multi-signature does not verify")
	}

	return nil
}

// Attest aggregates the signatures of msg by the given nodes. It is the
// counterpart of VerifyAttestation, used by validators.
func Attest(msg []byte, aliases []string, keys []*bls.PrivateKey) (*Attestation, error) {
	sigs := make([][]byte, len(keys))
	for i, k := range keys {
		sigs[i] = bls.Sign(k, msg)
	}

	agg, err := bls.Aggregate(sigs)
	if err != nil {
		return nil, err
	}

	return &Attestation{
		Participants: append([]string{}, aliases...),
		Signature:    common.EncodeToString(agg),
	}, nil
}
