package common

import "sort"

// KthLargest returns the k-th largest value (1-based) of input, or 0 when
// input holds fewer than k values. The input slice is not modified.
func KthLargest(input []uint64, k int) uint64 {
	if k <= 0 || k > len(input) {
		return 0
	}

	s := make([]uint64, len(input))
	copy(s, input)
	sort.Slice(s, func(i, j int) bool { return s[i] > s[j] })

	return s[k-1]
}
