package pool

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/consensus"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

func TestBatchSize(t *testing.T) {
	r := &Router{conf: RouterConfig{Fanout: 2, FanoutGrowth: 1}}

	require.Equal(t, 2, r.batchSize(0, 3, 0))
	require.Equal(t, 3, r.batchSize(1, 3, 1))
	require.Equal(t, 2, r.batchSize(2, 3, 2))
	// enough agreement, but no quorum: still ask at least one more
	require.Equal(t, 2, r.batchSize(1, 3, 5))

	r.conf.Fanout = 0
	require.Equal(t, 5, r.batchSize(0, 5, 0))
}

func TestRouterEmptyRegistry(t *testing.T) {
	_, client := net.NewInmemTransport("client")
	r := NewRouter(client,
		peers.NewRegistry,
		consensus.NewPolicy(consensus.DefaultFaultDivisor),
		RouterConfig{},
		nil,
		common.NewTestEntry(t, common.TestLogLevel))

	_, err := r.Send(context.Background(), &net.Request{ReqID: 1})
	require.True(t, common.IsPool(err, common.NetworkUnavailable))

	_, err = r.SendTo(context.Background(), &net.Request{ReqID: 1}, nil, 0)
	require.True(t, common.IsPool(err, common.NetworkUnavailable))
}

func TestRouterSelector(t *testing.T) {
	nw, client := newTestNetwork(t, 4)
	require.NoError(t, nw.Put("answer", 42))

	conf := newTestConfig(t, nw, client)
	conf.Fanout = 3
	conf.Selector = "random"
	p := openTestPool(t, conf)
	require.IsType(t, &RandomSelector{}, p.Router().selector)

	for i := 0; i < 4; i++ {
		res, err := submitGet(t, p, "answer")
		require.NoError(t, err)
		require.Equal(t, 3, res.Agreeing)
		require.Equal(t, 3, res.Queried)
	}

	served := uint64(0)
	for _, n := range nw.Nodes() {
		served += n.Served()
	}
	require.Equal(t, uint64(12), served)

	require.Equal(t, float64(4),
		testutil.ToFloat64(p.Metrics().requests.WithLabelValues(net.ReadRequest.String(), "accepted")))
}
