// Package factors implements the Factor Engine (FE): pure, NaN-safe
// momentum and low-volatility scoring from a trailing return window.
//
// Grounded on the donor's internal/s2_signals.MomentumCalculator.Calculate
// (compound return over a trailing window, tanh-normalised composite
// score) but reshaped to operate on a contracts.ReturnMatrix window
// instead of a per-symbol []PricePoint slice, and to drop the donor's
// volume-growth term, which has no analogue in this specification.
package factors

import (
	"math"
	"time"

	"github.com/wonny/backtester/internal/contracts"
)

// Momentum computes the compound return over [asof-lookback, asof-skip) for
// each symbol, requiring at least minPeriods observations; NaN otherwise.
// Never raises on data sparsity (per SPEC_FULL.md §4.7).
func Momentum(
	asofRow int,
	symbols []contracts.Symbol,
	returns *contracts.ReturnMatrix,
	lookback, skip, minPeriods int,
) map[contracts.Symbol]float64 {
	start := asofRow - lookback
	end := asofRow - skip
	return compoundReturn(symbols, returns, start, end, minPeriods)
}

// compoundReturn compounds daily simple returns over [start, end) for each
// symbol: Π(1+r) - 1. Rows outside [0, NumRows) are treated as absent.
func compoundReturn(
	symbols []contracts.Symbol,
	returns *contracts.ReturnMatrix,
	start, end, minPeriods int,
) map[contracts.Symbol]float64 {
	out := make(map[contracts.Symbol]float64, len(symbols))
	if start < 0 {
		start = 0
	}
	if end > returns.NumRows() {
		end = returns.NumRows()
	}

	for _, s := range symbols {
		col := returns.ColIndex(s)
		if col < 0 || end <= start {
			out[s] = math.NaN()
			continue
		}
		product := 1.0
		observed := 0
		for r := start; r < end; r++ {
			v := returns.At(r, col)
			if math.IsNaN(v) {
				continue
			}
			product *= 1 + v
			observed++
		}
		if observed < minPeriods {
			out[s] = math.NaN()
			continue
		}
		out[s] = product - 1
	}
	return out
}

// LowVol computes the negative of the standard deviation of daily returns
// over [asof-lookback, asof) for each symbol; NaN if fewer than minPeriods
// observations are present.
func LowVol(
	asofRow int,
	symbols []contracts.Symbol,
	returns *contracts.ReturnMatrix,
	lookback, minPeriods int,
) map[contracts.Symbol]float64 {
	start := asofRow - lookback
	if start < 0 {
		start = 0
	}
	end := asofRow
	if end > returns.NumRows() {
		end = returns.NumRows()
	}

	out := make(map[contracts.Symbol]float64, len(symbols))
	for _, s := range symbols {
		col := returns.ColIndex(s)
		if col < 0 || end <= start {
			out[s] = math.NaN()
			continue
		}
		vals := make([]float64, 0, end-start)
		for r := start; r < end; r++ {
			v := returns.At(r, col)
			if !math.IsNaN(v) {
				vals = append(vals, v)
			}
		}
		if len(vals) < minPeriods {
			out[s] = math.NaN()
			continue
		}
		out[s] = -stdDev(vals)
	}
	return out
}

func stdDev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))

	var sumSq float64
	for _, v := range vals {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(vals)-1))
}

// RowForDate returns the row index of t in returns, or -1 if absent.
func RowForDate(returns *contracts.ReturnMatrix, t time.Time) int {
	return returns.RowIndex(t)
}
