package pool

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/consensus"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

// DefaultMaxInflight bounds the dispatches in flight across all requests of
// a router.
const DefaultMaxInflight = 256

// RouterConfig holds the fan-out and timeout settings of a Router.
type RouterConfig struct {
	// Fanout is the size of the first batch. Zero means the quorum size.
	Fanout int
	// FanoutGrowth is added to the number of missing votes to size later
	// batches.
	FanoutGrowth int
	// MaxAttempts is the max number of rounds.
	MaxAttempts int

	DispatchTimeout time.Duration
	RoundTimeout    time.Duration
	MaxStaleness    time.Duration

	MaxInflight int64
}

// Router sends requests to the active nodes of the current registry and
// decides their outcome.
type Router struct {
	trans    net.Transport
	registry func() *peers.Registry
	selector Selector
	policy   consensus.Policy
	conf     RouterConfig
	sem      *semaphore.Weighted
	onBehind func(poolSize uint64)
	metrics  *Metrics
	logger   *logrus.Entry
}

// NewRouter creates a Router. registry is called once per request, and the
// returned registry is used for the whole request.
func NewRouter(trans net.Transport,
	registry func() *peers.Registry,
	policy consensus.Policy,
	conf RouterConfig,
	metrics *Metrics,
	logger *logrus.Entry) *Router {

	if conf.MaxAttempts <= 0 {
		conf.MaxAttempts = 1
	}
	if conf.MaxInflight <= 0 {
		conf.MaxInflight = DefaultMaxInflight
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	return &Router{
		trans:    trans,
		registry: registry,
		selector: RoundRobinSelector{},
		policy:   policy,
		conf:     conf,
		sem:      semaphore.NewWeighted(conf.MaxInflight),
		metrics:  metrics,
		logger:   logger,
	}
}

// SetSelector replaces the round-robin node selection.
func (r *Router) SetSelector(s Selector) {
	r.selector = s
}

// OnBehind registers f to be called, at most once per request, when a
// verified reply reports a pool ledger longer than the local one.
func (r *Router) OnBehind(f func(poolSize uint64)) {
	r.onBehind = f
}

type dispatchResult struct {
	node  peers.NodeInfo
	reply *net.Reply
	err   error
}

func (r *Router) dispatch(ctx context.Context,
	node peers.NodeInfo,
	req *net.Request,
	timeout time.Duration,
	out chan<- dispatchResult) {

	if err := r.sem.Acquire(ctx, 1); err != nil {
		out <- dispatchResult{node: node, err: err}
		return
	}
	defer r.sem.Release(1)

	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reply net.Reply
	if err := r.trans.Submit(dctx, node.Addr, req, &reply); err != nil {
		out <- dispatchResult{node: node, err: err}
		return
	}

	out <- dispatchResult{node: node, reply: &reply}
}

// Send fans req out to the active nodes, in batches, until a value gathers a
// quorum of verified replies. Reaching quorum cancels the dispatches still in
// flight; their replies are discarded. When every round is spent, Send fails
// with NoConsensus, or NetworkUnavailable if not a single queried node could
// be reached.
func (r *Router) Send(ctx context.Context, req *net.Request) (*consensus.Result, error) {
	reg := r.registry()
	active := reg.Active()
	n := len(active)
	if n == 0 {
		return nil, common.Errorf(common.NetworkUnavailable, "no active node in the pool")
	}

	verifier := consensus.NewVerifier(reg, r.policy, r.conf.MaxStaleness, r.logger)
	tally := consensus.NewTally(n, r.policy)
	order := r.selector.Order(req.ReqID, active)

	logger := r.logger.WithFields(logrus.Fields{
		"req_id": req.ReqID,
		"class":  req.Class.String(),
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// every node is dispatched at most once, so sends never block
	replies := make(chan dispatchResult, n)

	var (
		st          consensus.State
		next        int
		pending     int
		unreachable int
		behind      bool
	)

	for round := 0; round < r.conf.MaxAttempts && (next < n || pending > 0); round++ {
		size := r.batchSize(round, tally.Required(), st.Agreeing)
		if size > n-next {
			size = n - next
		}

		for _, node := range order[next : next+size] {
			pending++
			go r.dispatch(ctx, node, req, r.conf.DispatchTimeout, replies)
		}
		next += size

		logger.WithFields(logrus.Fields{
			"round":   round,
			"batch":   size,
			"queried": next,
			"pending": pending,
		}).Debug("Dispatching")

		timer := time.NewTimer(r.conf.RoundTimeout)

	wait:
		for pending > 0 {
			select {
			case res := <-replies:
				pending--

				if res.err != nil {
					if errors.Is(res.err, context.Canceled) {
						continue
					}
					r.metrics.dispatchError(res.err)
					if common.IsPool(res.err, common.NetworkUnavailable) {
						unreachable++
					}
					logger.WithField("node", res.node.Alias).WithError(res.err).Debug("No reply")
					continue
				}

				verified, err := verifier.Verify(&consensus.NodeReply{Request: req, Raw: res.reply}, res.node)

				// A node the registry does not know yet makes attestations
				// unverifiable, so any reply that passed the signature check
				// may report that the registry is behind.
				if !behind && r.onBehind != nil &&
					res.reply.Body.PoolSize > reg.Seq() &&
					!common.IsPool(err, common.BadSignature) {
					behind = true
					r.onBehind(res.reply.Body.PoolSize)
				}

				if err != nil {
					r.metrics.rejectedReply(err)
					logger.WithField("node", res.node.Alias).WithError(err).Warn("Discarding reply")
					continue
				}

				st, err = tally.Add(verified)
				if err != nil {
					timer.Stop()
					return nil, err
				}

				if st.Quorum {
					timer.Stop()
					logger.WithFields(logrus.Fields{
						"agreeing": st.Agreeing,
						"queried":  next,
						"value":    st.Value.String(),
					}).Debug("Quorum")
					return tally.Result(next), nil
				}
			case <-timer.C:
				break wait
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}

		timer.Stop()
	}

	if unreachable == next {
		return nil, common.Errorf(common.NetworkUnavailable,
			"none of the %d queried nodes could be reached", next)
	}

	logger.WithFields(logrus.Fields{
		"agreeing": st.Agreeing,
		"required": tally.Required(),
		"queried":  next,
	}).Debug("No consensus")

	return nil, common.NewNoConsensusErr(st.Agreeing, next, n)
}

// batchSize returns the number of nodes to add in a round. The first round
// uses the configured fan-out, later ones aim at the votes still missing.
func (r *Router) batchSize(round, required, agreeing int) int {
	if round == 0 {
		if r.conf.Fanout <= 0 {
			return required
		}
		return r.conf.Fanout
	}
	missing := required - agreeing
	if missing < 1 {
		missing = 1
	}
	return missing + r.conf.FanoutGrowth
}

// ActionReply is the answer of one node to a targeted request.
type ActionReply struct {
	Alias string
	// Raw is the reply as received, nil if the node did not answer.
	Raw *net.Reply
	// Verified is set when Raw passed the verifier.
	Verified *consensus.VerifiedReply
	// Err explains why there is no verified reply.
	Err error
}

// SendTo sends req to the named nodes, or to every active node when aliases
// is empty, and returns each node's reply without deciding on a value. Every
// dispatch is bounded by timeout, or by the configured dispatch timeout when
// timeout is zero.
func (r *Router) SendTo(ctx context.Context, req *net.Request, aliases []string, timeout time.Duration) (map[string]*ActionReply, error) {
	reg := r.registry()

	var targets []peers.NodeInfo
	if len(aliases) == 0 {
		targets = reg.Active()
	} else {
		for _, alias := range aliases {
			node, _, ok := reg.ByAlias(alias)
			if !ok {
				return nil, common.Errorf(common.NotFound, "unknown node %s", alias)
			}
			targets = append(targets, node)
		}
	}
	if len(targets) == 0 {
		return nil, common.Errorf(common.NetworkUnavailable, "no active node in the pool")
	}

	if timeout <= 0 {
		timeout = r.conf.DispatchTimeout
	}

	verifier := consensus.NewVerifier(reg, r.policy, r.conf.MaxStaleness, r.logger)

	replies := make(chan dispatchResult, len(targets))
	for _, node := range targets {
		go r.dispatch(ctx, node, req, timeout, replies)
	}

	res := make(map[string]*ActionReply, len(targets))
	for range targets {
		var d dispatchResult
		select {
		case d = <-replies:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		ar := &ActionReply{
			Alias: d.node.Alias,
			Raw:   d.reply,
			Err:   d.err,
		}
		if d.err == nil {
			ar.Verified, ar.Err = verifier.Verify(&consensus.NodeReply{Request: req, Raw: d.reply}, d.node)
			if ar.Err != nil {
				r.metrics.rejectedReply(ar.Err)
			}
		} else {
			r.metrics.dispatchError(d.err)
		}
		res[d.node.Alias] = ar
	}

	return res, nil
}
