package risk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateVaR_LossPositiveConvention(t *testing.T) {
	returns := []float64{-0.05, -0.03, -0.01, 0.0, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06}
	result := CalculateVaR(returns, 0.90)
	require.GreaterOrEqual(t, result.VaR, 0.0)
	require.GreaterOrEqual(t, result.CVaR, result.VaR-1e-9)
}

func TestCalculateVaR_EmptyReturnsIsZero(t *testing.T) {
	result := CalculateVaR(nil, 0.95)
	require.Zero(t, result.VaR)
	require.Zero(t, result.CVaR)
}

func TestStdDev_BesselCorrected(t *testing.T) {
	require.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-9)
}

func TestPercentile_InterpolatesLinearly(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	require.InDelta(t, 3.0, Percentile(sorted, 50), 1e-9)
}

func TestNormInv_FastPaths(t *testing.T) {
	require.InDelta(t, 1.645, NormInv(0.95), 1e-9)
}

func TestConcentration_TopFiveAndMaxSingle(t *testing.T) {
	weights := map[string]float64{"A": 0.3, "B": 0.2, "C": 0.15, "D": 0.1, "E": 0.1, "F": 0.05, "G": 0.1}
	maxSingle, top5 := Concentration(weights)
	require.InDelta(t, 0.3, maxSingle, 1e-9)
	require.InDelta(t, 0.3+0.2+0.15+0.1+0.1, top5, 1e-9)
}
