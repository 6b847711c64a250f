package consensus

// DefaultFaultDivisor gives the classic BFT bound, f = (n-1)/3.
const DefaultFaultDivisor = 3

// Policy holds the fault-tolerance assumption used to size quorums.
type Policy struct {
	// FaultTolerance returns how many of n nodes may be faulty. Nil means
	// (n-1)/3.
	FaultTolerance func(n int) int
}

// NewPolicy returns a Policy tolerating (n-1)/divisor faulty nodes. A
// divisor below 2 falls back to DefaultFaultDivisor.
func NewPolicy(divisor int) Policy {
	if divisor < 2 {
		divisor = DefaultFaultDivisor
	}
	return Policy{
		FaultTolerance: func(n int) int {
			if n <= 0 {
				return 0
			}
			return (n - 1) / divisor
		},
	}
}

// F returns the number of faulty nodes tolerated among n.
func (p Policy) F(n int) int {
	if p.FaultTolerance == nil {
		return NewPolicy(DefaultFaultDivisor).F(n)
	}
	f := p.FaultTolerance(n)
	if f < 0 {
		return 0
	}
	if f >= n && n > 0 {
		return n - 1
	}
	return f
}

// Required returns the number of matching replies needed to accept a value
// from a pool of n nodes.
func (p Policy) Required(n int) int {
	return n - p.F(n)
}

// Weak returns f+1, the smallest number of nodes that includes at least one
// honest node.
func (p Policy) Weak(n int) int {
	return p.F(n) + 1
}
