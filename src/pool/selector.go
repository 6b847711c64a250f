package pool

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

// Selector decides the order in which the active nodes are queried for a
// request. The router takes nodes from the front of the returned slice, one
// batch per round.
type Selector interface {
	Order(reqID uint64, active []peers.NodeInfo) []peers.NodeInfo
}

// NewSelector returns the Selector with the given name, round-robin when
// empty.
func NewSelector(name string) (Selector, error) {
	switch name {
	case "", "round-robin":
		return RoundRobinSelector{}, nil
	case "random":
		return NewRandomSelector(), nil
	default:
		return nil, fmt.Errorf("unknown node selector %q", name)
	}
}

//+++++++++++++++++++++++++++++++++++++++
//ROUND ROBIN

// RoundRobinSelector starts at the node at reqID modulo the number of active
// nodes and wraps around, so that consecutive requests spread over the pool.
type RoundRobinSelector struct{}

// Order implements the Selector interface.
func (RoundRobinSelector) Order(reqID uint64, active []peers.NodeInfo) []peers.NodeInfo {
	n := len(active)
	res := make([]peers.NodeInfo, 0, n)
	if n == 0 {
		return res
	}
	offset := int(reqID % uint64(n))
	for i := 0; i < n; i++ {
		res = append(res, active[(offset+i)%n])
	}
	return res
}

//+++++++++++++++++++++++++++++++++++++++
//RANDOM

// RandomSelector queries the active nodes in a random order, avoiding the node
// that was first in the previous order when there is a choice.
type RandomSelector struct {
	sync.Mutex
	rnd  *rand.Rand
	last string
}

// NewRandomSelector returns a RandomSelector seeded from the clock.
func NewRandomSelector() *RandomSelector {
	return &RandomSelector{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Order implements the Selector interface.
func (s *RandomSelector) Order(reqID uint64, active []peers.NodeInfo) []peers.NodeInfo {
	s.Lock()
	defer s.Unlock()

	res := make([]peers.NodeInfo, len(active))
	copy(res, active)
	s.rnd.Shuffle(len(res), func(i, j int) {
		res[i], res[j] = res[j], res[i]
	})

	if len(res) > 1 && res[0].Alias == s.last {
		res[0], res[len(res)-1] = res[len(res)-1], res[0]
	}
	if len(res) > 0 {
		s.last = res[0].Alias
	}

	return res
}
