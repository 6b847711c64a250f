package pool

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/config"
	"github.com/mosaicnetworks/ledgerpool/src/consensus"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
	"github.com/mosaicnetworks/ledgerpool/src/validator"
)

func newTestNetwork(t *testing.T, size int) (*validator.Network, *net.InmemTransport) {
	nw, err := validator.NewNetwork(validator.Config{
		Size:   size,
		Logger: common.NewTestEntry(t, common.TestLogLevel),
	})
	require.NoError(t, err)

	_, client := net.NewInmemTransport("client")
	nw.ConnectInmem(client)
	t.Cleanup(nw.Close)

	return nw, client
}

func writeGenesis(t *testing.T, nw *validator.Network, size int) string {
	path := filepath.Join(t.TempDir(), config.DefaultGenesisFile)

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, peers.WriteGenesis(f, nw.Genesis(size)))
	return path
}

// newTestConfig returns a config whose genesis is the current pool ledger of
// nw.
func newTestConfig(t *testing.T, nw *validator.Network, trans net.Transport) *config.Config {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.GenesisFile = writeGenesis(t, nw, len(nw.PoolLedger()))
	conf.Transport = trans
	conf.DispatchTimeout = 200 * time.Millisecond
	conf.RoundTimeout = 400 * time.Millisecond
	conf.CatchupTimeout = 3 * time.Second
	return conf
}

func openTestPool(t *testing.T, conf *config.Config) *Pool {
	p, err := Open(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func getOp(key string) net.Operation {
	return net.Operation{Type: validator.OpGet, Key: key}
}

func submitGet(t *testing.T, p *Pool, key string) (*consensus.Result, error) {
	req, err := p.NewRequest(getOp(key), net.ReadRequest)
	require.NoError(t, err)
	return p.Submit(context.Background(), req)
}

func valueOf(t *testing.T, raw string) consensus.Value {
	v, err := consensus.DecodeValue("", []byte(raw))
	require.NoError(t, err)
	return v
}

// catchupTransport wraps a transport to interfere with catch-up.
type catchupTransport struct {
	net.Transport

	sync.Mutex
	// limit is the number of Catchup calls served before the network is
	// unplugged; negative means no limit
	limit int
	calls int
	froms []uint64
	strip bool
}

func (c *catchupTransport) Catchup(ctx context.Context, target string, args *net.CatchupRequest, resp *net.CatchupResponse) error {
	c.Lock()
	c.calls++
	calls := c.calls
	c.froms = append(c.froms, args.From)
	c.Unlock()

	if c.limit >= 0 && calls > c.limit {
		return common.Errorf(common.NetworkUnavailable, "%s unplugged", target)
	}

	err := c.Transport.Catchup(ctx, target, args, resp)
	if err == nil && c.strip {
		for i := range resp.Txns {
			resp.Txns[i].Attestation = nil
		}
	}
	return err
}

func (c *catchupTransport) requested() []uint64 {
	c.Lock()
	defer c.Unlock()
	return append([]uint64{}, c.froms...)
}
