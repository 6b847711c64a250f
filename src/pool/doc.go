// Package pool implements the client side of a permissioned validator pool.
//
// A Pool keeps a verified view of the validator nodes (the registry), routes
// requests to a subset of them, and only accepts an answer once enough nodes
// agree on it. Every reply is checked before it counts: the node's signature,
// the state proof tying the result to a state root, and the BLS
// multi-signature of the active nodes over that root.
//
// The registry itself is advanced by catch-up, which replays the pool ledger
// entries the client has not seen yet. Each entry must carry the attestation
// of the nodes active before it, and is committed and persisted one at a
// time, so an interrupted catch-up resumes where it stopped.
//
//  conf := config.NewDefaultConfig()
//  p, err := pool.Open(ctx, conf)
//  ...
//  res, err := p.Submit(ctx, p.NewRequest(op, net.ReadRequest))
package pool
