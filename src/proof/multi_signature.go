package proof

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

// MultiSignatureValue is what validators sign together once a batch is
// ordered: the roots of the ledger state, of the pool ledger, and of the
// transaction log, at a given time.
type MultiSignatureValue struct {
	LedgerID          uint64 `json:"ledger_id"`
	StateRootHash     string `json:"state_root_hash"`
	PoolStateRootHash string `json:"pool_state_root_hash"`
	TxnRootHash       string `json:"txn_root_hash"`
	Timestamp         uint64 `json:"timestamp"`
}

// SigningBytes returns the RLP encoding of the value, which is the message
// the validators sign.
func (v *MultiSignatureValue) SigningBytes() ([]byte, error) {
	return rlp.EncodeToBytes(v)
}

// MultiSignature is a MultiSignatureValue with the aggregated BLS signature of
// the nodes that attested it.
type MultiSignature struct {
	peers.Attestation
	Value MultiSignatureValue `json:"value"`
}

// Verify checks the attestation against the active nodes of reg.
func (m *MultiSignature) Verify(reg *peers.Registry, threshold int) error {
	msg, err := m.Value.SigningBytes()
	if err != nil {
		return common.NewPoolErr(common.InsufficientAttestors, "multi-signature value", err)
	}
	return reg.VerifyAttestation(&m.Attestation, msg, threshold)
}
