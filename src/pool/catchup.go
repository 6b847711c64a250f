package pool

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

// catchUp runs one catch-up to completion or failure. It is only called
// through catchupGroup, so runs never overlap. hint is the pool size reported
// by a node, if any; it is only logged, the target comes from the status
// probe.
func (p *Pool) catchUp(hint uint64) error {
	if p.isClosed() {
		return common.Errorf(common.Closed, "pool %s", p.conf.PoolName)
	}

	// the run is bound to the pool, not to the caller that triggered it
	ctx, cancel := context.WithTimeout(p.ctx, p.conf.CatchupTimeout)
	defer cancel()

	p.setState(CatchingUp)

	err := p.runCatchup(ctx, hint)
	if needsResync(err) && p.Registry().Seq() > p.genesis.Seq() && !p.isClosed() {
		p.logger.WithFields(logrus.Fields{
			"seq":  p.Registry().Seq(),
			"root": p.Registry().RootHex(),
		}).WithError(err).Warn("Registry contradicts the network, resyncing from genesis")

		p.resetToGenesis()
		err = p.runCatchup(ctx, hint)
	}
	p.metrics.catchupRun(err)

	if p.isClosed() {
		return err
	}

	reg := p.Registry()
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"seq":  reg.Seq(),
			"root": reg.RootHex(),
		}).WithError(err).Error("Catch-up failed")
		p.setFailed(err)
		return err
	}

	p.setState(Synced)
	return nil
}

// needsResync reports whether err means the local registry cannot be extended
// and has to be rebuilt.
func needsResync(err error) bool {
	return common.IsPool(err, common.SequenceGap) ||
		common.IsPool(err, common.RootMismatch) ||
		common.IsPool(err, common.PoolLedgerCorrupted)
}

// resetToGenesis drops every entry past the genesis, in memory and in the
// store.
func (p *Pool) resetToGenesis() {
	p.regLock.Lock()
	p.registry = p.genesis
	p.regLock.Unlock()

	p.metrics.resyncs.Inc()
	p.metrics.registrySeq.Set(float64(p.genesis.Seq()))
	p.metrics.activeNodes.Set(float64(p.genesis.ActiveLen()))

	if err := p.cache.Clear(); err != nil {
		p.metrics.storeErrors.Inc()
		p.storeErr.Store(err.Error())
		p.logger.WithError(err).Error("Clearing persisted registry")
	}
}

func (p *Pool) runCatchup(ctx context.Context, hint uint64) error {
	reg := p.Registry()

	target, err := p.probe(ctx, reg)
	if err != nil {
		return err
	}

	logger := p.logger.WithFields(logrus.Fields{
		"seq":    reg.Seq(),
		"target": target,
		"hint":   hint,
	})

	if target <= reg.Seq() {
		logger.Debug("Registry up to date")
		return nil
	}

	logger.Info("Catching up")

	for reg.Seq() < target {
		if err := p.fetchBatch(ctx, target); err != nil {
			return err
		}
		reg = p.Registry()
	}

	logger.WithField("root", reg.RootHex()).Info("Caught up")

	return nil
}

type statusResult struct {
	node peers.NodeInfo
	resp net.LedgerStatusResponse
	err  error
}

// probe asks every active node for its pool ledger size and returns the
// largest size that at least f+1 of them report, so that at least one honest
// node has it. Enough nodes reporting the local size with another root means
// the local registry is not the network's.
func (p *Pool) probe(ctx context.Context, reg *peers.Registry) (uint64, error) {
	active := reg.Active()
	n := len(active)
	if n == 0 {
		return 0, common.Errorf(common.NetworkUnavailable, "no active node in the pool")
	}
	weak := p.policy.Weak(n)

	from := "client"
	if p.identity != nil {
		from = p.identity.DID()
	}

	ch := make(chan statusResult, n)
	for _, node := range active {
		go func(node peers.NodeInfo) {
			sctx, cancel := context.WithTimeout(ctx, p.conf.DispatchTimeout)
			defer cancel()

			res := statusResult{node: node}
			res.err = p.trans.LedgerStatus(sctx, node.Addr, &net.LedgerStatusRequest{From: from}, &res.resp)
			ch <- res
		}(node)
	}

	var (
		sizes    []uint64
		conflict int
	)
	for i := 0; i < n; i++ {
		res := <-ch
		if res.err != nil {
			p.logger.WithField("node", res.node.Alias).WithError(res.err).Debug("LedgerStatus")
			continue
		}
		sizes = append(sizes, res.resp.PoolSize)
		if res.resp.PoolSize == reg.Seq() && !sameRoot(res.resp.PoolRoot, reg.Root()) {
			conflict++
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, common.NewPoolErr(common.Timeout, "ledger status", err)
	}

	if len(sizes) < weak {
		return 0, common.Errorf(common.NetworkUnavailable,
			"%d of %d nodes answered the ledger status, %d required", len(sizes), n, weak)
	}

	if conflict >= weak {
		return 0, common.Errorf(common.PoolLedgerCorrupted,
			"%d nodes report a different root at seq %d", conflict, reg.Seq())
	}

	return common.KthLargest(sizes, weak), nil
}

// fetchBatch applies the next batch of entries, up to target, trying the
// active nodes in turn until one of them supplies at least one verifiable
// entry.
func (p *Pool) fetchBatch(ctx context.Context, target uint64) error {
	reg := p.Registry()
	nodes := RoundRobinSelector{}.Order(reg.Seq(), reg.Active())

	var lastErr error
	for _, node := range nodes {
		applied, err := p.fetchFrom(ctx, node, target)
		if applied > 0 {
			return nil
		}
		if err != nil {
			lastErr = err
			p.logger.WithField("node", node.Alias).WithError(err).Warn("Catch-up from node")
		}
		if ctx.Err() != nil {
			return common.NewPoolErr(common.Timeout, "catch-up", ctx.Err())
		}
	}

	if lastErr == nil {
		lastErr = common.Errorf(common.NetworkUnavailable, "no node supplied entry %d", reg.Seq()+1)
	}
	return lastErr
}

// fetchFrom requests a range of entries from node and applies them one at a
// time. It returns the number of entries committed.
func (p *Pool) fetchFrom(ctx context.Context, node peers.NodeInfo, target uint64) (int, error) {
	reg := p.Registry()

	from := reg.Seq() + 1
	to := target
	if batch := uint64(p.conf.CatchupBatch); batch > 0 && to-from+1 > batch {
		to = from + batch - 1
	}

	cctx, cancel := context.WithTimeout(ctx, p.conf.DispatchTimeout)
	defer cancel()

	var resp net.CatchupResponse
	if err := p.trans.Catchup(cctx, node.Addr, &net.CatchupRequest{From: from, To: to}, &resp); err != nil {
		return 0, err
	}

	if len(resp.Txns) == 0 {
		return 0, common.Errorf(common.SequenceGap, "%s sent no entry in %d..%d", node.Alias, from, to)
	}

	applied := 0
	for i := range resp.Txns {
		next, err := p.verifyEntry(reg, &resp.Txns[i])
		if err != nil {
			return applied, err
		}

		p.commit(next)
		reg = next
		applied++

		p.logger.WithFields(logrus.Fields{
			"seq":  reg.Seq(),
			"txn":  resp.Txns[i].String(),
			"from": node.Alias,
		}).Debug("Applied pool entry")

		if reg.Seq() >= to {
			break
		}
	}

	return applied, nil
}

// verifyEntry checks that txn is attested by enough nodes active in reg, then
// applies it. The attestation covers the registry root after the entry, which
// Apply recomputes.
func (p *Pool) verifyEntry(reg *peers.Registry, txn *peers.PoolTxn) (*peers.Registry, error) {
	if txn.Body.Seq != reg.Seq()+1 {
		return nil, common.Errorf(common.SequenceGap, "got entry %d, expected %d", txn.Body.Seq, reg.Seq()+1)
	}

	root, err := txn.RootBytes()
	if err != nil {
		return nil, common.NewPoolErr(common.InvalidTransaction, txn.String(), err)
	}

	threshold := p.policy.Required(reg.ActiveLen())
	if err := reg.VerifyAttestation(txn.Attestation, root, threshold); err != nil {
		return nil, err
	}

	return reg.Apply(txn)
}
