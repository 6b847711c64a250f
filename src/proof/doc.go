// Package proof implements the two pieces of evidence a node attaches to a
// read reply: a Merkle Patricia trie proof that the result is part of a
// ledger state, and the multi-signed value that binds that state root to a
// ledger position.
//
// Tries and proofs are those of go-ethereum: proof nodes are RLP encoded and
// looked up by their Keccak256 hash.
package proof
