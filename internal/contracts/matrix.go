// Package contracts defines the data model shared by every stage of the
// backtester pipeline: price/return panels, portfolios, constraints,
// backtest configuration, rebalance events and performance metrics.
package contracts

import (
	"math"
	"sort"
	"time"
)

// Symbol is a short textual asset identifier, unique within a run.
type Symbol string

// Weight is a finite real in [0,1] (portfolio-level invariants are checked
// by internal/constraints, not by this type itself).
type Weight = float64

// PriceMatrix is a time-indexed table of non-negative prices, one column
// per symbol. A missing observation is represented distinctly from a zero
// price via the second return value of Price.
//
// Rows (Dates) are strictly increasing and duplicate-free; this is a
// precondition enforced by the loader, not by this type.
type PriceMatrix struct {
	Dates   []time.Time
	Symbols []Symbol
	// values[row][col], NaN marks a missing observation.
	values [][]float64
	index  map[Symbol]int
	dateAt map[int64]int // yyyymmdd day key -> row
}

// NewPriceMatrix builds a PriceMatrix from dense row-major data. values must
// have len(dates) rows, each of len(symbols) columns.
func NewPriceMatrix(dates []time.Time, symbols []Symbol, values [][]float64) *PriceMatrix {
	pm := &PriceMatrix{
		Dates:   dates,
		Symbols: symbols,
		values:  values,
		index:   make(map[Symbol]int, len(symbols)),
		dateAt:  make(map[int64]int, len(dates)),
	}
	for i, s := range symbols {
		pm.index[s] = i
	}
	for i, d := range dates {
		pm.dateAt[dayKey(d)] = i
	}
	return pm
}

func dayKey(t time.Time) int64 {
	y, m, d := t.Date()
	return int64(y)*10000 + int64(m)*100 + int64(d)
}

// Price returns the price of symbol s on date t, and whether it is present
// (not missing, not NaN).
func (pm *PriceMatrix) Price(t time.Time, s Symbol) (float64, bool) {
	row, ok := pm.dateAt[dayKey(t)]
	if !ok {
		return 0, false
	}
	col, ok := pm.index[s]
	if !ok {
		return 0, false
	}
	v := pm.values[row][col]
	if isNaN(v) {
		return 0, false
	}
	return v, true
}

// RowIndex returns the row index of date t, or -1 if absent.
func (pm *PriceMatrix) RowIndex(t time.Time) int {
	row, ok := pm.dateAt[dayKey(t)]
	if !ok {
		return -1
	}
	return row
}

// ColIndex returns the column index of symbol s, or -1 if absent.
func (pm *PriceMatrix) ColIndex(s Symbol) int {
	col, ok := pm.index[s]
	if !ok {
		return -1
	}
	return col
}

// At returns the raw value at (row, col), which may be NaN.
func (pm *PriceMatrix) At(row, col int) float64 {
	return pm.values[row][col]
}

// NumRows returns the number of trading days.
func (pm *PriceMatrix) NumRows() int { return len(pm.Dates) }

// ReturnMatrix has the same shape as a PriceMatrix: value at day t for
// symbol s is the simple return over the previous available observation of
// s. The first row per symbol may be missing (NaN).
type ReturnMatrix struct {
	*PriceMatrix
}

// NewReturnMatrix wraps dense return data in the same shape as PriceMatrix.
func NewReturnMatrix(dates []time.Time, symbols []Symbol, values [][]float64) *ReturnMatrix {
	return &ReturnMatrix{PriceMatrix: NewPriceMatrix(dates, symbols, values)}
}

// Window returns the sub-matrix of returns for the given symbols over rows
// [startRow, endRow) (end-exclusive), preserving column order as given.
// It never reads beyond the supplied bound, which callers use to enforce
// no-look-ahead.
func (rm *ReturnMatrix) Window(startRow, endRow int, symbols []Symbol) [][]float64 {
	if startRow < 0 {
		startRow = 0
	}
	if endRow > rm.NumRows() {
		endRow = rm.NumRows()
	}
	out := make([][]float64, 0, endRow-startRow)
	cols := make([]int, len(symbols))
	for i, s := range symbols {
		cols[i] = rm.ColIndex(s)
	}
	for r := startRow; r < endRow; r++ {
		row := make([]float64, len(symbols))
		for i, c := range cols {
			if c < 0 {
				row[i] = nan()
				continue
			}
			row[i] = rm.At(r, c)
		}
		out = append(out, row)
	}
	return out
}

// SortedSymbols returns a new, lexicographically sorted copy of symbols.
// Used everywhere a deterministic cache key or tie-break is needed.
func SortedSymbols(symbols []Symbol) []Symbol {
	out := make([]Symbol, len(symbols))
	copy(out, symbols)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func isNaN(f float64) bool { return math.IsNaN(f) }
func nan() float64         { return math.NaN() }
