package consensus

import (
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/proof"
)

// NodeReply is a reply received from a node for a given request. It only
// lives until the request is decided.
type NodeReply struct {
	Request *net.Request
	Raw     *net.Reply
}

// VerifiedReply is a reply that passed every check of the Verifier.
type VerifiedReply struct {
	Node           int
	Alias          string
	Value          Value
	LedgerSeq      uint64
	PoolSize       uint64
	MultiSignature *proof.MultiSignature
}

// Metadata describes the ledger position a reply was read from.
type Metadata struct {
	// SeqNo is the sequence number of the transaction concerned, when the
	// result is a transaction receipt.
	SeqNo uint64 `json:"seq_no,omitempty"`
	// TxnTime is the time that transaction was ordered.
	TxnTime uint64 `json:"txn_time,omitempty"`
	// LastSeqNo is the size of the ledger the reply was read from.
	LastSeqNo uint64 `json:"last_seq_no"`
	// LastTxnTime is the time attested by the multi-signature.
	LastTxnTime uint64 `json:"last_txn_time,omitempty"`
}

// Metadata extracts the ledger position of the reply.
func (r *VerifiedReply) Metadata() Metadata {
	m := Metadata{
		LastSeqNo: r.LedgerSeq,
	}
	if r.Value.Txn != nil {
		m.SeqNo = r.Value.Txn.SeqNo
		m.TxnTime = r.Value.Txn.TxnTime
	}
	if r.MultiSignature != nil {
		m.LastTxnTime = r.MultiSignature.Value.Timestamp
	}
	return m
}
