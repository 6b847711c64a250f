package consensus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mosaicnetworks/ledgerpool/src/common"
)

func vote(t *testing.T, alias string, result string) *VerifiedReply {
	v, err := DecodeValue("", []byte(result))
	require.NoError(t, err)
	return &VerifiedReply{Alias: alias, Value: v}
}

func TestPolicy(t *testing.T) {
	p := NewPolicy(DefaultFaultDivisor)

	cases := []struct{ n, f, required int }{
		{1, 0, 1},
		{3, 0, 3},
		{4, 1, 3},
		{7, 2, 5},
		{10, 3, 7},
	}
	for _, c := range cases {
		require.Equal(t, c.f, p.F(c.n), "F(%d)", c.n)
		require.Equal(t, c.required, p.Required(c.n), "Required(%d)", c.n)
	}

	var zero Policy
	require.Equal(t, 1, zero.F(4))
}

func TestTallyQuorum(t *testing.T) {
	tally := NewTally(4, NewPolicy(DefaultFaultDivisor))

	s, err := tally.Add(vote(t, "Node1", `42`))
	require.NoError(t, err)
	require.False(t, s.Quorum)

	s, _ = tally.Add(vote(t, "Node2", `42`))
	require.False(t, s.Quorum)
	require.Equal(t, 2, s.Agreeing)

	s, _ = tally.Add(vote(t, "Node3", `42`))
	require.True(t, s.Quorum)
	require.Equal(t, 3, s.Agreeing)

	res := tally.Result(4)
	require.True(t, res.Accepted)
	require.Equal(t, `scalar:42`, res.Value.Key())
	require.Equal(t, 3, res.Agreeing)
	require.Equal(t, 4, res.Queried)
	require.Equal(t, 4, res.Total)
	require.Len(t, res.Replies, 3)
}

func TestTallyDuplicatesCountOnce(t *testing.T) {
	tally := NewTally(4, NewPolicy(DefaultFaultDivisor))

	for i := 0; i < 5; i++ {
		s, err := tally.Add(vote(t, "Node1", `42`))
		require.NoError(t, err)
		require.Equal(t, 1, s.Agreeing)
	}

	// a node changing its mind keeps its first vote
	s, _ := tally.Add(vote(t, "Node1", `7`))
	require.Equal(t, 1, s.Agreeing)
	require.Equal(t, 1, tally.Voters())
}

func TestTallySplitVote(t *testing.T) {
	tally := NewTally(4, NewPolicy(DefaultFaultDivisor))

	tally.Add(vote(t, "Node1", `42`))
	tally.Add(vote(t, "Node2", `7`))
	tally.Add(vote(t, "Node3", `42`))
	s, _ := tally.Add(vote(t, "Node4", `7`))

	require.False(t, s.Quorum)
	require.Equal(t, 2, s.Agreeing)

	res := tally.Result(4)
	require.False(t, res.Accepted)
	require.Equal(t, 2, res.Agreeing)
}

func TestTallySemanticEquality(t *testing.T) {
	tally := NewTally(4, NewPolicy(DefaultFaultDivisor))

	tally.Add(vote(t, "Node1", `{"a":1,"b":[1,2]}`))
	tally.Add(vote(t, "Node2", `{ "b": [1, 2], "a": 1 }`))
	s, _ := tally.Add(vote(t, "Node3", "{\"b\":[1,2],\n\"a\":1}"))

	require.True(t, s.Quorum)
	require.Equal(t, KindRecord, s.Value.Kind)
}

func TestTallyOrderIndependence(t *testing.T) {
	replies := []struct{ alias, result string }{
		{"Node1", `42`}, {"Node2", `7`}, {"Node3", `42`}, {"Node4", `42`},
	}

	perms := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}

	for _, perm := range perms {
		tally := NewTally(4, NewPolicy(DefaultFaultDivisor))
		for _, i := range perm {
			tally.Add(vote(t, replies[i].alias, replies[i].result))
		}
		res := tally.Result(4)
		require.True(t, res.Accepted, fmt.Sprint(perm))
		require.Equal(t, "scalar:42", res.Value.Key())
	}
}

func TestTallyTwoQuorumsIsCorruption(t *testing.T) {
	// a registry that believes every node is faulty but one
	lax := Policy{FaultTolerance: func(n int) int { return n - 1 }}
	tally := NewTally(4, lax)

	s, err := tally.Add(vote(t, "Node1", `42`))
	require.NoError(t, err)
	require.True(t, s.Quorum)

	_, err = tally.Add(vote(t, "Node2", `7`))
	require.True(t, common.IsPool(err, common.PoolLedgerCorrupted), "got %v", err)
}
