package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/backtester/internal/contracts"
	"github.com/wonny/backtester/internal/statcache"
)

func newReturnMatrix(t *testing.T) *contracts.ReturnMatrix {
	t.Helper()
	dates := make([]time.Time, 40)
	for i := range dates {
		dates[i] = time.Date(2020, 1, 1+i, 0, 0, 0, 0, time.UTC)
	}
	symbols := []contracts.Symbol{"A", "B", "C"}
	values := make([][]float64, len(dates))
	for i := range values {
		values[i] = []float64{
			0.001 * float64(i%5-2),
			0.002 * float64(i%7-3),
			0.0015 * float64(i%4-1),
		}
	}
	return contracts.NewReturnMatrix(dates, symbols, values)
}

func TestEqualWeight_AssignsOneOverN(t *testing.T) {
	s := EqualWeight{}
	symbols := []contracts.Symbol{"A", "B", "C", "D"}
	p, err := s.Build(symbols, 0, 0, nil, contracts.Constraints{MaxPerAsset: 1})
	require.NoError(t, err)
	require.InDelta(t, 0.25, p.Holdings["A"], 1e-12)
}

func TestEqualWeight_ClipsToMaxPerAssetAndLeavesCash(t *testing.T) {
	s := EqualWeight{}
	symbols := []contracts.Symbol{"A", "B", "C", "D"}
	p, err := s.Build(symbols, 0, 0, nil, contracts.Constraints{MaxPerAsset: 0.2})
	require.NoError(t, err)
	require.InDelta(t, 0.2, p.Holdings["A"], 1e-12)
	require.Less(t, p.TotalWeight(), 1.0)
}

func TestRiskParity_ProducesEqualRiskContributions(t *testing.T) {
	rm := newReturnMatrix(t)
	cache, err := statcache.New(rm, 100)
	require.NoError(t, err)

	symbols := []contracts.Symbol{"A", "B", "C"}
	s := RiskParity{}
	p, err := s.Build(symbols, 0, 40, cache, contracts.Constraints{MaxPerAsset: 1, LeverageCap: 1})
	require.NoError(t, err)
	require.InDelta(t, 1.0, p.TotalWeight(), 1e-6)
	for _, w := range p.Holdings {
		require.Greater(t, w, 0.0)
	}

	// Each asset's risk contribution w_i * (Sigma w)_i equals the average.
	cov, err := cache.Cov(0, 40, symbols)
	require.NoError(t, err)
	rc := make([]float64, len(symbols))
	var totalRC float64
	for i, si := range symbols {
		var sw float64
		for j, sj := range symbols {
			sw += cov.At(i, j) * p.Holdings[sj]
		}
		rc[i] = p.Holdings[si] * sw
		totalRC += rc[i]
	}
	for _, r := range rc {
		require.InDelta(t, totalRC/3, r, 1e-5*totalRC/3)
	}
}

func TestMeanVariance_ReturnsFiniteBoundedWeights(t *testing.T) {
	rm := newReturnMatrix(t)
	cache, err := statcache.New(rm, 100)
	require.NoError(t, err)

	symbols := []contracts.Symbol{"A", "B", "C"}
	s := MeanVariance{RiskAversion: 2.0}
	p, err := s.Build(symbols, 0, 40, cache, contracts.Constraints{MaxPerAsset: 0.6, LeverageCap: 1})
	require.NoError(t, err)
	for _, w := range p.Holdings {
		require.GreaterOrEqual(t, w, 0.0)
		require.LessOrEqual(t, w, 0.6+1e-9)
	}
}
