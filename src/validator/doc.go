// Package validator simulates a pool of validator nodes.
//
// A Network keeps what real validators agree on: the pool ledger, with every
// entry multi-signed by the nodes that were active before it, and a history
// of ledger states, each attested by the active nodes. Nodes answer client
// requests from that shared view, over any net.Transport, and can be told to
// misbehave: stay silent, lag behind, sign with the wrong key, or tamper with
// their proofs.
//
// It backs the tests of the pool client and the "sim" command.
package validator
