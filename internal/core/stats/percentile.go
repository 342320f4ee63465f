package stats

import "sort"

// Percentile computes the continuous p-th percentile (0 <= p <= 1) of samples
// using linear interpolation between order statistics: the same definition as
// PostgreSQL's PERCENTILE_CONT. The result always lies within
// [min(samples), max(samples)] and is invariant under input reordering.
//
// Returns (0, false) for an empty sample set so callers can distinguish
// "no data" from a zero value.
func Percentile(samples []float64, p float64) (float64, bool) {
	n := len(samples)
	if n == 0 {
		return 0, false
	}
	if n == 1 {
		return samples[0], true
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	// Continuous rank in [0, n-1]; interpolate between the two neighbors.
	rank := p * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sorted[n-1], true
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo]), true
}

// Median is the 50th continuous percentile.
func Median(samples []float64) (float64, bool) {
	return Percentile(samples, 0.5)
}
