package risk

import "sort"

// Concentration reports the largest single holding weight and the sum of
// the five largest holding weights, for use in PerformanceMetrics'
// optional top5_concentration figure.
//
// Grounded on the donor's internal/risk/engine.go calculateMetrics, which
// sorts holdings descending by weight before reading off the top-1 and
// top-5 exposure; the donor's liquidity score and VaR-limit gating around
// it are dropped (no SPEC_FULL.md component performs live risk gating).
func Concentration(weights map[string]float64) (maxSingle, top5 float64) {
	if len(weights) == 0 {
		return 0, 0
	}

	sorted := make([]float64, 0, len(weights))
	for _, w := range weights {
		sorted = append(sorted, w)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	maxSingle = sorted[0]
	for i := 0; i < 5 && i < len(sorted); i++ {
		top5 += sorted[i]
	}
	return maxSingle, top5
}
