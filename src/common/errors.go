package common

import (
	"errors"
	"fmt"
)

// PoolErrType classifies the failures a pool client can report.
type PoolErrType uint32

const (
	// NetworkUnavailable means no node could be reached.
	NetworkUnavailable PoolErrType = iota
	// Timeout means a single dispatch did not complete in time.
	Timeout
	// BadSignature means a reply was not signed by the node it came from.
	BadSignature
	// InvalidStateProof means a reply's state proof does not reduce to its
	// claimed root, or does not prove the returned result.
	InvalidStateProof
	// InsufficientAttestors means the multi-signature over a state root was
	// invalid or signed by too few active nodes.
	InsufficientAttestors
	// StaleReply means a reply was attested, but older than the caller
	// accepts.
	StaleReply
	// NoConsensus means no value reached the required agreement.
	NoConsensus
	// SequenceGap means a pool ledger entry did not follow the local head.
	SequenceGap
	// RootMismatch means a recomputed registry digest differs from the
	// expected one.
	RootMismatch
	// PoolLedgerCorrupted means the local registry contradicts the network.
	PoolLedgerCorrupted
	// InvalidTransaction means a pool ledger entry is malformed or carries a
	// bad signature.
	InvalidTransaction
	// StoreUnavailable means the credential store collaborator failed.
	StoreUnavailable
	// NotFound means the requested item does not exist or is unreadable.
	NotFound
	// Closed means the pool client has been closed.
	Closed
)

var poolErrNames = map[PoolErrType]string{
	NetworkUnavailable:    "Network Unavailable",
	Timeout:               "Timeout",
	BadSignature:          "Bad Signature",
	InvalidStateProof:     "Invalid State Proof",
	InsufficientAttestors: "Insufficient Attestors",
	StaleReply:            "Stale Reply",
	NoConsensus:           "No Consensus",
	SequenceGap:           "Sequence Gap",
	RootMismatch:          "Root Mismatch",
	PoolLedgerCorrupted:   "Pool Ledger Corrupted",
	InvalidTransaction:    "Invalid Transaction",
	StoreUnavailable:      "Store Unavailable",
	NotFound:              "Not Found",
	Closed:                "Closed",
}

// String returns the human readable name of the error type.
func (t PoolErrType) String() string {
	if s, ok := poolErrNames[t]; ok {
		return s
	}
	return fmt.Sprintf("PoolErrType(%d)", uint32(t))
}

// PoolErr is the error type returned by every pool client component. The
// context names the component or item concerned and cause, when present, is
// the underlying error.
type PoolErr struct {
	errType PoolErrType
	context string
	cause   error

	// Diagnostic counts, only meaningful for NoConsensus.
	Agreeing int
	Queried  int
	Total    int
}

// NewPoolErr creates a PoolErr of the given type.
func NewPoolErr(t PoolErrType, context string, cause error) *PoolErr {
	return &PoolErr{
		errType: t,
		context: context,
		cause:   cause,
	}
}

// Errorf creates a PoolErr with a formatted context and no cause.
func Errorf(t PoolErrType, format string, args ...interface{}) *PoolErr {
	return NewPoolErr(t, fmt.Sprintf(format, args...), nil)
}

// NewNoConsensusErr returns a NoConsensus error carrying diagnostic counts.
func NewNoConsensusErr(agreeing, queried, total int) *PoolErr {
	err := Errorf(NoConsensus,
		"best agreement %d of %d queried, %d nodes in pool",
		agreeing, queried, total)
	err.Agreeing = agreeing
	err.Queried = queried
	err.Total = total
	return err
}

// Type returns the error type.
func (e *PoolErr) Type() PoolErrType {
	return e.errType
}

// Error implements the error interface.
func (e *PoolErr) Error() string {
	msg := e.errType.String()
	if e.context != "" {
		msg = fmt.Sprintf("%s, %s", msg, e.context)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *PoolErr) Unwrap() error {
	return e.cause
}

// Is matches any PoolErr of the same type, so that errors.Is(err,
// &PoolErr{errType: X}) works as a kind check.
func (e *PoolErr) Is(target error) bool {
	t, ok := target.(*PoolErr)
	return ok && t.errType == e.errType && t.context == "" && t.cause == nil
}

// IsPool checks that err, or any error it wraps, is a PoolErr of type t.
func IsPool(err error, t PoolErrType) bool {
	var poolErr *PoolErr
	if !errors.As(err, &poolErr) {
		return false
	}
	return poolErr.errType == t
}

// AsPool returns the first PoolErr in err's chain, or nil.
func AsPool(err error) *PoolErr {
	var poolErr *PoolErr
	if errors.As(err, &poolErr) {
		return poolErr
	}
	return nil
}
