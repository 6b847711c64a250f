package pool

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/config"
	"github.com/mosaicnetworks/ledgerpool/src/consensus"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
	"github.com/mosaicnetworks/ledgerpool/src/store"
)

// Pool is a client of a validator pool. It is safe for concurrent use.
type Pool struct {
	// catch-up state
	state

	conf   *config.Config
	policy consensus.Policy

	// registry is replaced, never modified, so readers can keep the value
	// they hold
	regLock  sync.RWMutex
	registry *peers.Registry
	genesis  *peers.Registry

	trans    net.Transport
	ownTrans bool

	store    store.CredentialStore
	cache    *store.Cache
	results  *ResultCache
	storeErr atomic.Value

	router   *Router
	identity *Identity

	catchupGroup singleflight.Group

	// ctx bounds background work; it is cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc
	closed uint32

	reqSeq  uint64
	start   time.Time
	metrics *Metrics
	logger  *logrus.Entry
}

// Open loads the genesis, restores the last persisted registry when it
// extends the genesis, and brings it up to date with the network. A store
// that cannot be opened or read degrades to an in-memory store and a full
// catch-up from genesis.
func Open(ctx context.Context, conf *config.Config) (*Pool, error) {
	logger := conf.Logger().WithField("pool", conf.PoolName)

	genesis, err := peers.LoadGenesis(conf.Genesis())
	if err != nil {
		return nil, err
	}

	selector, err := NewSelector(conf.Selector)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(conf.Store, conf.DatabasePath())
	if err != nil {
		logger.WithError(err).Error("Opening store, using an in-memory store")
		st = store.NewInmemStore()
	}

	cache := store.NewCache(st, conf.PoolName)
	reg := genesis

	cached, err := cache.Load()
	switch {
	case err == nil && extends(cached, genesis):
		reg = cached
	case err == nil:
		logger.Warn("Persisted registry does not extend the genesis, starting from genesis")
	case common.IsPool(err, common.NotFound):
		logger.WithError(err).Debug("No usable persisted registry, starting from genesis")
	default:
		logger.WithError(err).Error("Reading persisted registry, starting from genesis")
	}

	trans := conf.Transport
	ownTrans := false
	if trans == nil {
		trans = net.NewTCPClientTransport(conf.MaxPool, conf.DispatchTimeout, logger)
		ownTrans = true
	}

	p := newPool(conf, genesis, reg, trans, st, cache, logger)
	p.ownTrans = ownTrans
	p.router.SetSelector(selector)

	logger.WithFields(logrus.Fields{
		"seq":          reg.Seq(),
		"root":         reg.RootHex(),
		"active_nodes": reg.ActiveLen(),
		"store":        conf.Store,
	}).Debug("Opening pool")

	if err := p.Refresh(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return p, nil
}

func newPool(conf *config.Config,
	genesis *peers.Registry,
	reg *peers.Registry,
	trans net.Transport,
	st store.CredentialStore,
	cache *store.Cache,
	logger *logrus.Entry) *Pool {

	divisor := conf.FaultDivisor
	if divisor <= 0 {
		divisor = consensus.DefaultFaultDivisor
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		conf:     conf,
		policy:   consensus.NewPolicy(divisor),
		registry: reg,
		genesis:  genesis,
		trans:    trans,
		store:    st,
		cache:    cache,
		results:  NewResultCache(st, conf.PoolName),
		ctx:      ctx,
		cancel:   cancel,
		reqSeq:   uint64(time.Now().UnixNano()),
		start:    time.Now(),
		metrics:  NewMetrics(),
		logger:   logger,
	}

	if conf.Key != nil {
		p.identity = NewIdentity(conf.Key)
	}

	p.router = NewRouter(trans,
		p.Registry,
		p.policy,
		RouterConfig{
			Fanout:          conf.Fanout,
			FanoutGrowth:    conf.FanoutGrowth,
			MaxAttempts:     conf.MaxAttempts,
			DispatchTimeout: conf.DispatchTimeout,
			RoundTimeout:    conf.RoundTimeout,
			MaxStaleness:    conf.MaxStaleness,
		},
		p.metrics,
		logger.WithField("component", "router"))
	p.router.OnBehind(p.behind)

	p.metrics.registrySeq.Set(float64(reg.Seq()))
	p.metrics.activeNodes.Set(float64(reg.ActiveLen()))

	return p
}

// extends reports whether reg was built on top of genesis.
func extends(reg, genesis *peers.Registry) bool {
	g := genesis.Seq()
	if reg.Seq() < g {
		return false
	}
	if g == 0 {
		return true
	}
	return reg.History()[g-1].Root == genesis.History()[g-1].Root
}

// Registry returns the current registry.
func (p *Pool) Registry() *peers.Registry {
	p.regLock.RLock()
	defer p.regLock.RUnlock()
	return p.registry
}

// Nodes returns every node ever admitted, active or not.
func (p *Pool) Nodes() []peers.NodeInfo {
	return p.Registry().Nodes()
}

// Identity returns the client identity, nil when no key is configured.
func (p *Pool) Identity() *Identity {
	return p.identity
}

// Router exposes the request router, to change its node selection.
func (p *Pool) Router() *Router {
	return p.router
}

// Metrics returns the pool's prometheus collectors.
func (p *Pool) Metrics() *Metrics {
	return p.metrics
}

// State returns the catch-up state.
func (p *Pool) State() State {
	return p.getState()
}

// FailReason returns the error that stopped the last failed catch-up.
func (p *Pool) FailReason() error {
	return p.failReason()
}

func (p *Pool) isClosed() bool {
	return atomic.LoadUint32(&p.closed) == 1
}

// NewRequest builds a request for op, signed by the client identity if there
// is one.
func (p *Pool) NewRequest(op net.Operation, class net.RequestClass) (*net.Request, error) {
	req := &net.Request{
		ReqID:           atomic.AddUint64(&p.reqSeq, 1),
		Operation:       op,
		ProtocolVersion: p.conf.ProtocolVersion,
		Class:           class,
	}

	if p.identity != nil {
		if err := p.identity.SignRequest(req); err != nil {
			return nil, err
		}
	}

	return req, nil
}

// Submit sends req to the pool and returns the value a quorum of nodes agreed
// on. A quorum of rejections is an accepted result too; see
// Result.Rejected.
func (p *Pool) Submit(ctx context.Context, req *net.Request) (*consensus.Result, error) {
	if p.isClosed() {
		return nil, common.Errorf(common.Closed, "pool %s", p.conf.PoolName)
	}

	start := time.Now()
	res, err := p.router.Send(ctx, req)
	p.metrics.observeRequest(req.Class.String(), start, err)

	// conflicting quorums: the registry may be wrong, check it against the
	// network
	if common.IsPool(err, common.PoolLedgerCorrupted) {
		p.catchupInBackground(0)
	}

	return res, err
}

// SubmitAction sends req to the named nodes, or to all active nodes, and
// returns their individual replies.
func (p *Pool) SubmitAction(ctx context.Context, req *net.Request, aliases []string, timeout time.Duration) (map[string]*ActionReply, error) {
	if p.isClosed() {
		return nil, common.Errorf(common.Closed, "pool %s", p.conf.PoolName)
	}
	return p.router.SendTo(ctx, req, aliases, timeout)
}

// Refresh brings the registry up to date with the network. Only one catch-up
// runs at a time; concurrent callers share its outcome. Cancelling ctx stops
// waiting, not the catch-up.
func (p *Pool) Refresh(ctx context.Context) error {
	if p.isClosed() {
		return common.Errorf(common.Closed, "pool %s", p.conf.PoolName)
	}

	ch := p.catchupGroup.DoChan("catchup", func() (interface{}, error) {
		return nil, p.catchUp(0)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// behind is called by the router when a node reports a longer pool ledger.
func (p *Pool) behind(poolSize uint64) {
	if p.isClosed() || p.getState() == CatchingUp {
		return
	}
	p.logger.WithFields(logrus.Fields{
		"seq":       p.Registry().Seq(),
		"pool_size": poolSize,
	}).Debug("Registry behind")

	p.catchupInBackground(poolSize)
}

func (p *Pool) catchupInBackground(hint uint64) {
	p.goFunc(func() {
		p.catchupGroup.Do("catchup", func() (interface{}, error) {
			return nil, p.catchUp(hint)
		})
	})
}

// commit publishes a registry that catch-up fully verified, and persists it.
// A failed save is reported but does not undo the commit.
func (p *Pool) commit(reg *peers.Registry) {
	p.regLock.Lock()
	p.registry = reg
	p.regLock.Unlock()

	p.metrics.catchupEntries.Inc()
	p.metrics.registrySeq.Set(float64(reg.Seq()))
	p.metrics.activeNodes.Set(float64(reg.ActiveLen()))

	if err := p.cache.Save(reg); err != nil {
		p.metrics.storeErrors.Inc()
		p.storeErr.Store(err.Error())
		p.logger.WithError(err).WithField("seq", reg.Seq()).Error("Saving registry")
	}
}

// GetStats returns stats
func (p *Pool) GetStats() map[string]string {
	reg := p.Registry()

	failReason := ""
	if err := p.failReason(); err != nil && p.getState() == Failed {
		failReason = err.Error()
	}

	storeErr, _ := p.storeErr.Load().(string)

	identifier := ""
	if p.identity != nil {
		identifier = p.identity.DID()
	}

	return map[string]string{
		"pool":         p.conf.PoolName,
		"state":        p.getState().String(),
		"fail_reason":  failReason,
		"seq":          strconv.FormatUint(reg.Seq(), 10),
		"root":         reg.RootHex(),
		"genesis_seq":  strconv.FormatUint(p.genesis.Seq(), 10),
		"nodes":        strconv.Itoa(reg.Len()),
		"active_nodes": strconv.Itoa(reg.ActiveLen()),
		"max_faults":   strconv.Itoa(p.policy.F(reg.ActiveLen())),
		"quorum":       strconv.Itoa(p.policy.Required(reg.ActiveLen())),
		"store":        p.conf.Store,
		"store_error":  storeErr,
		"identifier":   identifier,
		"uptime":       time.Since(p.start).Round(time.Second).String(),
	}
}

// Close stops background catch-up and releases the store, and the transport
// if the pool created it. Close is idempotent.
func (p *Pool) Close() error {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return nil
	}

	p.logger.Debug("Closing pool")

	p.cancel()

	// waits for a catch-up in flight, if any
	p.catchupGroup.Do("catchup", func() (interface{}, error) {
		return nil, nil
	})
	p.stopRoutines()

	p.setState(Closed)

	var errs []error
	if p.ownTrans {
		if err := p.trans.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing pool: %v", errs)
	}
	return nil
}

// sameRoot compares a hex encoded root with raw bytes.
func sameRoot(hexRoot string, root []byte) bool {
	b, err := common.DecodeFromString(hexRoot)
	return err == nil && bytes.Equal(b, root)
}
