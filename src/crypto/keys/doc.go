// Package keys implements the ECDSA keys used to sign requests, replies and
// pool ledger entries.
//
// Every validator node owns a secp256k1 key-pair. Replies carry a signature
// over the reply body which the client checks against the node's signing key,
// as recorded in the pool ledger. Clients use the same kind of key to sign the
// requests they submit.
package keys
