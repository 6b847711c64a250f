// Package store persists the verified pool registry and cached read results.
//
// Bytes go through a CredentialStore, with badger, bbolt and in-memory
// implementations. The Cache on top of it snapshots the applied pool ledger
// history in CBOR and replays it on load, so a tampered snapshot is caught by
// the registry's digest checks rather than trusted.
package store
