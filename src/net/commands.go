package net

import (
	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
	"github.com/mosaicnetworks/ledgerpool/src/proof"
)

// RequestClass selects the checks a reply must pass.
type RequestClass uint8

const (
	// ReadRequest replies must carry a state proof and a multi-signature.
	ReadRequest RequestClass = iota
	// WriteRequest replies only need a valid node signature.
	WriteRequest
)

func (c RequestClass) String() string {
	switch c {
	case ReadRequest:
		return "read"
	case WriteRequest:
		return "write"
	default:
		return "unknown"
	}
}

// Operation is the opaque payload of a request. Data holds JSON.
type Operation struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// Request is sent by the client to validator nodes.
type Request struct {
	ReqID           uint64            `json:"req_id"`
	Identifier      string            `json:"identifier,omitempty"`
	Operation       Operation         `json:"operation"`
	ProtocolVersion int               `json:"protocol_version"`
	Class           RequestClass      `json:"class"`
	MinSeq          uint64            `json:"min_seq,omitempty"`
	Signature       string            `json:"signature,omitempty"`
	Signatures      map[string]string `json:"signatures,omitempty"`
}

// SigningBytes returns the canonical encoding of the request without its
// signatures.
func (r *Request) SigningBytes() ([]byte, error) {
	unsigned := *r
	unsigned.Signature = ""
	unsigned.Signatures = nil
	return common.CanonicalJSON(&unsigned)
}

// Reply operations.
const (
	ReplyOp  = "REPLY"
	RejectOp = "REJECT"
)

// ReplyBody is the signed part of a Reply.
type ReplyBody struct {
	ReqID          uint64                `json:"req_id"`
	From           string                `json:"from"`
	Op             string                `json:"op"`
	Reason         string                `json:"reason,omitempty"`
	Kind           string                `json:"kind,omitempty"`
	Result         []byte                `json:"result,omitempty"`
	StateProof     *proof.StateProof     `json:"state_proof,omitempty"`
	MultiSignature *proof.MultiSignature `json:"multi_signature,omitempty"`
	LedgerSeq      uint64                `json:"ledger_seq"`
	PoolSize       uint64                `json:"pool_size"`
}

// Reply is a node's answer to a Request, signed with the node's signing key.
type Reply struct {
	Body      ReplyBody `json:"body"`
	Signature string    `json:"signature"`
}

// SigningBytes returns the canonical encoding of the body.
func (r *Reply) SigningBytes() ([]byte, error) {
	return common.CanonicalJSON(&r.Body)
}

// LedgerStatusRequest asks a node for the state of its pool ledger.
type LedgerStatusRequest struct {
	From string `json:"from"`
}

// LedgerStatusResponse reports the size and root of a node's pool ledger.
type LedgerStatusResponse struct {
	From     string `json:"from"`
	PoolSize uint64 `json:"pool_size"`
	PoolRoot string `json:"pool_root"`
}

// CatchupRequest asks for the pool ledger entries with From <= seq <= To.
type CatchupRequest struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// CatchupResponse carries the requested entries, in sequence order, each
// with its attestation.
type CatchupResponse struct {
	From string          `json:"from"`
	Txns []peers.PoolTxn `json:"txns"`
}
