package consensus

import (
	"github.com/mosaicnetworks/ledgerpool/src/common"
)

// State is the agreement reached so far for one request.
type State struct {
	Quorum   bool
	Value    Value
	Agreeing int
	Required int
}

// Tally counts verified replies for one request. Each node votes once; later
// replies from the same node are ignored. Tally is not safe for concurrent
// use: the router feeds it from a single goroutine.
type Tally struct {
	total    int
	required int

	votes   map[string]string
	counts  map[string]int
	values  map[string]Value
	replies map[string][]*VerifiedReply

	quorumKey string
	best      int
}

// NewTally creates a Tally for a pool of total active nodes.
func NewTally(total int, policy Policy) *Tally {
	return &Tally{
		total:    total,
		required: policy.Required(total),
		votes:    make(map[string]string),
		counts:   make(map[string]int),
		values:   make(map[string]Value),
		replies:  make(map[string][]*VerifiedReply),
	}
}

// Required returns the number of matching replies needed for quorum.
func (t *Tally) Required() int {
	return t.required
}

// Add counts a verified reply and returns the agreement state. A second
// value reaching quorum means the registry does not describe the network the
// replies come from, which is reported as PoolLedgerCorrupted.
func (t *Tally) Add(r *VerifiedReply) (State, error) {
	if _, voted := t.votes[r.Alias]; voted {
		return t.state(), nil
	}

	key := r.Value.Key()
	t.votes[r.Alias] = key
	t.counts[key]++
	t.values[key] = r.Value
	t.replies[key] = append(t.replies[key], r)

	if t.counts[key] > t.best {
		t.best = t.counts[key]
	}

	if t.counts[key] >= t.required {
		if t.quorumKey != "" && t.quorumKey != key {
			return t.state(), common.Errorf(common.PoolLedgerCorrupted,
				"two values reached quorum: %s and %s", t.quorumKey, key)
		}
		t.quorumKey = key
	}

	return t.state(), nil
}

func (t *Tally) state() State {
	s := State{
		Agreeing: t.best,
		Required: t.required,
	}
	if t.quorumKey != "" {
		s.Quorum = true
		s.Value = t.values[t.quorumKey]
		s.Agreeing = t.counts[t.quorumKey]
	}
	return s
}

// Voters returns the number of nodes that have voted.
func (t *Tally) Voters() int {
	return len(t.votes)
}

// Result builds the outcome of the request once no more replies will be
// counted. queried is the number of nodes the request was sent to.
func (t *Tally) Result(queried int) *Result {
	s := t.state()
	res := &Result{
		Accepted: s.Quorum,
		Agreeing: s.Agreeing,
		Queried:  queried,
		Total:    t.total,
	}
	if s.Quorum {
		res.Value = s.Value
		res.Replies = t.replies[t.quorumKey]
	}
	return res
}
