// Package peers maintains the registry of validator nodes that operate the
// ledger, as seen from a client.
//
// The registry is a projection of the pool ledger: an append-only sequence of
// signed transactions that admit nodes, retire them, or rotate their
// multi-signature keys. The first entries come from a trusted genesis file;
// later ones are fetched from the network by catch-up and applied strictly in
// sequence order.
//
// Every applied entry folds the hash of its body into a chained root digest.
// Each entry embeds the digest expected after applying it, so a registry that
// diverges from the history it was built from is detected immediately.
//
// Retired nodes are never deleted. They stay in the registry, inactive, so
// that the order of nodes, and old attestations, remain meaningful.
package peers
