package factors

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wonny/backtester/internal/contracts"
)

func buildReturns() *contracts.ReturnMatrix {
	dates := make([]time.Time, 6)
	for i := range dates {
		dates[i] = time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC)
	}
	symbols := []contracts.Symbol{"A", "B"}
	values := [][]float64{
		{math.NaN(), 0.01},
		{0.01, 0.01},
		{0.01, -0.01},
		{0.01, 0.02},
		{0.01, -0.02},
		{0.01, 0.01},
	}
	return contracts.NewReturnMatrix(dates, symbols, values)
}

func TestMomentum_CompoundsReturns(t *testing.T) {
	rm := buildReturns()
	scores := Momentum(6, []contracts.Symbol{"A", "B"}, rm, 6, 0, 3)

	require.InDelta(t, math.Pow(1.01, 5)-1, scores["A"], 1e-9)
}

func TestMomentum_NaNWhenInsufficientData(t *testing.T) {
	rm := buildReturns()
	scores := Momentum(6, []contracts.Symbol{"A"}, rm, 6, 0, 10)
	require.True(t, math.IsNaN(scores["A"]))
}

func TestLowVol_NegativeOfStdDev(t *testing.T) {
	rm := buildReturns()
	scores := LowVol(6, []contracts.Symbol{"B"}, rm, 6, 3)
	require.Less(t, scores["B"], 0.0)
}
