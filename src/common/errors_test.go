package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestPoolErrKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPoolErr(NetworkUnavailable, "node1", cause)

	if !IsPool(err, NetworkUnavailable) {
		t.Fatalf("err should be NetworkUnavailable")
	}
	if IsPool(err, Timeout) {
		t.Fatalf("err should not be Timeout")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("err should unwrap to its cause")
	}

	wrapped := fmt.Errorf("sending request: %w", err)
	if !IsPool(wrapped, NetworkUnavailable) {
		t.Fatalf("wrapped err should still be NetworkUnavailable")
	}
	if !errors.Is(wrapped, &PoolErr{errType: NetworkUnavailable}) {
		t.Fatalf("errors.Is should match on kind")
	}

	expected := "Network Unavailable, node1: connection refused"
	if err.Error() != expected {
		t.Fatalf("err.Error() should be %q, not %q", expected, err.Error())
	}
}

func TestNoConsensusErr(t *testing.T) {
	err := fmt.Errorf("submit: %w", NewNoConsensusErr(2, 4, 4))

	pErr := AsPool(err)
	if pErr == nil {
		t.Fatalf("AsPool should find the PoolErr")
	}
	if pErr.Type() != NoConsensus {
		t.Fatalf("type should be NoConsensus, not %v", pErr.Type())
	}
	if pErr.Agreeing != 2 || pErr.Queried != 4 || pErr.Total != 4 {
		t.Fatalf("wrong diagnostic counts: %d %d %d", pErr.Agreeing, pErr.Queried, pErr.Total)
	}
}

func TestKthLargest(t *testing.T) {
	sizes := []uint64{7, 12, 9, 12, 3}

	cases := []struct {
		k        int
		expected uint64
	}{
		{1, 12},
		{2, 12},
		{3, 9},
		{5, 3},
		{6, 0},
		{0, 0},
	}

	for _, c := range cases {
		if got := KthLargest(sizes, c.k); got != c.expected {
			t.Fatalf("KthLargest(%d) should be %d, not %d", c.k, c.expected, got)
		}
	}

	if sizes[0] != 7 {
		t.Fatalf("KthLargest should not reorder its input")
	}
}
