package pool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

func testNodes(n int) []peers.NodeInfo {
	nodes := make([]peers.NodeInfo, n)
	for i := range nodes {
		nodes[i] = peers.NodeInfo{Alias: fmt.Sprintf("Node%d", i+1)}
	}
	return nodes
}

func aliases(nodes []peers.NodeInfo) []string {
	res := make([]string, len(nodes))
	for i, n := range nodes {
		res[i] = n.Alias
	}
	return res
}

func TestRoundRobinSelector(t *testing.T) {
	nodes := testNodes(4)
	s := RoundRobinSelector{}

	require.Equal(t, []string{"Node1", "Node2", "Node3", "Node4"}, aliases(s.Order(0, nodes)))
	require.Equal(t, []string{"Node3", "Node4", "Node1", "Node2"}, aliases(s.Order(6, nodes)))
	require.Empty(t, s.Order(3, nil))

	// the input is left alone
	require.Equal(t, "Node1", nodes[0].Alias)
}

func TestRandomSelector(t *testing.T) {
	nodes := testNodes(5)
	s := NewRandomSelector()

	last := ""
	for i := 0; i < 50; i++ {
		order := s.Order(uint64(i), nodes)
		require.ElementsMatch(t, aliases(nodes), aliases(order))
		require.NotEqual(t, last, order[0].Alias)
		last = order[0].Alias
	}

	single := testNodes(1)
	require.Equal(t, "Node1", s.Order(0, single)[0].Alias)
	require.Equal(t, "Node1", s.Order(1, single)[0].Alias)
}

func TestNewSelector(t *testing.T) {
	s, err := NewSelector("")
	require.NoError(t, err)
	require.Equal(t, RoundRobinSelector{}, s)

	s, err = NewSelector("random")
	require.NoError(t, err)
	require.IsType(t, &RandomSelector{}, s)

	_, err = NewSelector("nearest")
	require.Error(t, err)
}
