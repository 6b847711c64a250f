// Package consensus decides, from the outside, whether validator nodes agree.
//
// Each reply goes through the Verifier, which checks, in order, the node's
// signature, the state proof of the result, and the multi-signature that
// attests the proven state root. Only replies that pass every check reach the
// Tally, which counts one vote per node for each distinct result value and
// declares quorum once a value gathers n-f votes.
//
// Values are compared by meaning, not by bytes: results are decoded into a
// closed set of kinds and re-encoded canonically before being grouped.
package consensus
