// Package net implements the transports used by the pool client to exchange
// messages with validator nodes.
//
// A Transport carries three RPCs: Submit sends a client request and returns
// the node's signed reply, LedgerStatus asks a node how far its pool ledger
// goes, and Catchup fetches a range of pool ledger entries. Every call takes a
// context; cancelling it stops the exchange and releases the connection.
//
// There are two implementations:
//
// - Inmem: in-memory transport used for tests and simulations
//
// - TCP: requests framed by a type byte followed by the msgpack encoded
// arguments, over pooled TCP connections
//
// Transports are symmetric. The side that serves requests reads them from
// Consumer() and answers through RPC.Respond, which is how simulated
// validators are wired.
package net
