package consensus

import (
	"fmt"
	"strings"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// Kind tags the shape of a result.
type Kind string

const (
	// KindScalar is a single JSON number, string, bool, or null.
	KindScalar Kind = "scalar"
	// KindRecord is a JSON object read from the ledger state.
	KindRecord Kind = "record"
	// KindTxn is the receipt of a written transaction.
	KindTxn Kind = "txn"
	// KindStatus describes the ledger itself.
	KindStatus Kind = "status"
	// KindReject is a node's refusal of the request.
	KindReject Kind = "reject"
)

// TxnResult is the receipt returned for a write.
type TxnResult struct {
	SeqNo   uint64                 `json:"seq_no"`
	TxnTime uint64                 `json:"txn_time"`
	Type    string                 `json:"type"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// StatusResult describes a ledger.
type StatusResult struct {
	LedgerSeq uint64 `json:"ledger_seq"`
	PoolSize  uint64 `json:"pool_size"`
	StateRoot string `json:"state_root"`
}

// Value is a decoded result. Exactly one payload field is set, matching
// Kind.
type Value struct {
	Kind   Kind
	Scalar interface{}
	Record map[string]interface{}
	Txn    *TxnResult
	Status *StatusResult
	Reason string

	key string
}

// DecodeValue decodes the raw JSON result of a reply. An empty kind is
// inferred: objects are records and anything else a scalar.
func DecodeValue(kind Kind, raw []byte) (Value, error) {
	v := Value{Kind: kind}

	if kind == KindReject {
		v.Reason = string(raw)
		v.key = string(KindReject) + ":" + v.Reason
		return v, nil
	}

	if len(raw) == 0 {
		return v, fmt.Errorf("empty result")
	}

	var generic interface{}
	if err := common.DecodeJSON(raw, &generic); err != nil {
		return v, fmt.Errorf("decoding result: %v", err)
	}

	if kind == "" {
		if _, ok := generic.(map[string]interface{}); ok {
			v.Kind = KindRecord
		} else {
			v.Kind = KindScalar
		}
	}

	switch v.Kind {
	case KindScalar:
		v.Scalar = generic
	case KindRecord:
		m, ok := generic.(map[string]interface{})
		if !ok {
			return v, fmt.Errorf("record result is %T", generic)
		}
		v.Record = m
	case KindTxn:
		v.Txn = new(TxnResult)
		if err := common.DecodeJSON(raw, v.Txn); err != nil {
			return v, fmt.Errorf("decoding txn result: %v", err)
		}
	case KindStatus:
		v.Status = new(StatusResult)
		if err := common.DecodeJSON(raw, v.Status); err != nil {
			return v, fmt.Errorf("decoding status result: %v", err)
		}
	default:
		return v, fmt.Errorf("unknown result kind %q", v.Kind)
	}

	canonical, err := common.CanonicalJSON(generic)
	if err != nil {
		return v, err
	}
	v.key = string(v.Kind) + ":" + string(canonical)

	return v, nil
}

// Key identifies the meaning of the value: two values with the same key are
// the same answer, however they were encoded.
func (v Value) Key() string {
	return v.key
}

// Equal reports whether v and o carry the same answer.
func (v Value) Equal(o Value) bool {
	return v.key == o.key
}

// Canonical returns the canonical JSON encoding of the value, or the reason
// of a reject. DecodeValue(v.Kind, v.Canonical()) gives back an equal value.
func (v Value) Canonical() []byte {
	return []byte(strings.TrimPrefix(v.key, string(v.Kind)+":"))
}

func (v Value) String() string {
	return v.key
}
