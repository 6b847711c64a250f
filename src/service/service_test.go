package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/config"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/peers"
	"github.com/mosaicnetworks/ledgerpool/src/pool"
	"github.com/mosaicnetworks/ledgerpool/src/validator"
)

func newTestService(t *testing.T) (*validator.Network, *httptest.Server) {
	nw, err := validator.NewNetwork(validator.Config{
		Size:   4,
		Logger: common.NewTestEntry(t, common.TestLogLevel),
	})
	require.NoError(t, err)

	_, client := net.NewInmemTransport("client")
	nw.ConnectInmem(client)
	t.Cleanup(nw.Close)

	genesis := filepath.Join(t.TempDir(), config.DefaultGenesisFile)
	f, err := os.Create(genesis)
	require.NoError(t, err)
	require.NoError(t, peers.WriteGenesis(f, nw.Genesis(4)))
	require.NoError(t, f.Close())

	conf := config.NewTestConfig(t, common.TestLogLevel)
	conf.GenesisFile = genesis
	conf.Transport = client
	conf.DispatchTimeout = 200 * time.Millisecond
	conf.RoundTimeout = 400 * time.Millisecond

	p, err := pool.Open(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	s := NewService("", p, 3*time.Second, common.NewTestEntry(t, common.TestLogLevel))
	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	return nw, server
}

func getJSON(t *testing.T, url string, v interface{}) int {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestStatsAndNodes(t *testing.T) {
	nw, server := newTestService(t)

	var stats map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/stats", &stats))
	require.Equal(t, "4", stats["seq"])
	require.Equal(t, "Synced", stats["state"])
	require.Equal(t, nw.Registry().RootHex(), stats["root"])

	var nodes []peers.NodeInfo
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/nodes", &nodes))
	require.Len(t, nodes, 4)
	require.Equal(t, "Node1", nodes[0].Alias)
}

func TestRefresh(t *testing.T) {
	nw, server := newTestService(t)

	resp, err := http.Get(server.URL + "/refresh")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	_, err = nw.AddNode("Node5")
	require.NoError(t, err)

	resp, err = http.Post(server.URL+"/refresh", "application/json", &bytes.Buffer{})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, "5", stats["seq"])
}

func TestGetKey(t *testing.T) {
	nw, server := newTestService(t)
	require.NoError(t, nw.Put("answer", map[string]int{"v": 42}))

	var res getResponse
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/get/answer", &res))
	require.Equal(t, "record", res.Kind)
	require.Equal(t, map[string]interface{}{"v": float64(42)}, res.Value)
	require.False(t, res.Cached)

	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/get/answer", &res))
	require.True(t, res.Cached)

	require.Equal(t, http.StatusNotFound, getJSON(t, server.URL+"/get/missing", nil))
	require.Equal(t, http.StatusBadRequest, getJSON(t, server.URL+"/get/", nil))
}

func TestMetrics(t *testing.T) {
	nw, server := newTestService(t)
	require.NoError(t, nw.Put("answer", 42))

	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/get/answer", nil))

	resp, err := http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	body := buf.String()
	require.True(t, strings.Contains(body, "ledgerpool_registry_seq 4"), body)
	require.True(t, strings.Contains(body, `ledgerpool_request_total{class="read",outcome="accepted"} 1`), body)
}
