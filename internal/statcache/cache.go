// Package statcache implements the Rolling-Statistics Cache (RSC): sample
// covariance matrices and mean vectors over a trailing return window,
// keyed by (window start, window end, sorted symbol tuple) and bounded by
// an LRU so a long backtest cannot grow the cache unboundedly.
//
// Grounded on other_examples/manifests/aristath-sentinel's
// BuildCovarianceMatrix (gonum/mat + gonum/stat, sha256 cache keys over
// sorted symbols) and other_examples/manifests/penny-vault-pvbt's use of
// github.com/hashicorp/golang-lru for bounded result caching.
package statcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/backtester/internal/bterrors"
	"github.com/wonny/backtester/internal/contracts"
)

const defaultCapacity = 1000

// Cache is the Rolling-Statistics Cache. Per SPEC_FULL.md §5, a
// single-threaded engine needs no locking; a multi-threaded comparison run
// (internal/backtest.CompareRunner) gives each backtest its own private
// Cache instance rather than sharing one across goroutines.
type Cache struct {
	returns *contracts.ReturnMatrix
	covLRU  *lru.Cache[string, *mat.SymDense]
	meanLRU *lru.Cache[string, []float64]
}

// New builds a Cache bound to a return matrix, with the given capacity (0
// uses the spec default of 1000 entries).
func New(returns *contracts.ReturnMatrix, capacity int) (*Cache, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	covLRU, err := lru.New[string, *mat.SymDense](capacity)
	if err != nil {
		return nil, fmt.Errorf("statcache: init covariance lru: %w", err)
	}
	meanLRU, err := lru.New[string, []float64](capacity)
	if err != nil {
		return nil, fmt.Errorf("statcache: init mean lru: %w", err)
	}
	return &Cache{returns: returns, covLRU: covLRU, meanLRU: meanLRU}, nil
}

func cacheKey(startRow, endRow int, symbols []contracts.Symbol) string {
	sorted := contracts.SortedSymbols(symbols)
	names := make([]string, len(sorted))
	for i, s := range sorted {
		names[i] = string(s)
	}
	raw := fmt.Sprintf("%d|%d|%s", startRow, endRow, strings.Join(names, ","))
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:16])
}

// windowColumns extracts the return columns for symbols over [startRow,
// endRow), dropping rows containing NaN for any requested symbol (the
// caller is responsible for ensuring min_periods is met beforehand).
func (c *Cache) windowColumns(startRow, endRow int, symbols []contracts.Symbol) [][]float64 {
	rows := c.returns.Window(startRow, endRow, symbols)
	clean := make([][]float64, 0, len(rows))
	for _, row := range rows {
		ok := true
		for _, v := range row {
			if v != v { // NaN
				ok = false
				break
			}
		}
		if ok {
			clean = append(clean, row)
		}
	}
	return clean
}

// Mean returns the sample mean vector of symbols' returns over
// [windowStartRow, windowEndRow), in the order symbols was given.
func (c *Cache) Mean(windowStartRow, windowEndRow int, symbols []contracts.Symbol) ([]float64, error) {
	key := "mean|" + cacheKey(windowStartRow, windowEndRow, symbols)
	if v, ok := c.meanLRU.Get(key); ok {
		return orderLike(v, symbols, contracts.SortedSymbols(symbols)), nil
	}

	rows := c.windowColumns(windowStartRow, windowEndRow, contracts.SortedSymbols(symbols))
	if len(rows) == 0 {
		return nil, &bterrors.InsufficientHistoryError{
			Symbols:  symbolStrings(symbols),
			Required: 1,
			Have:     0,
		}
	}

	n := len(contracts.SortedSymbols(symbols))
	means := make([]float64, n)
	for j := 0; j < n; j++ {
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = row[j]
		}
		means[j] = stat.Mean(col, nil)
	}

	c.meanLRU.Add(key, means)
	return orderLike(means, symbols, contracts.SortedSymbols(symbols)), nil
}

// Cov returns the sample covariance matrix of symbols' returns over
// [windowStartRow, windowEndRow), in the order symbols was given.
func (c *Cache) Cov(windowStartRow, windowEndRow int, symbols []contracts.Symbol) (*mat.SymDense, error) {
	sorted := contracts.SortedSymbols(symbols)
	key := "cov|" + cacheKey(windowStartRow, windowEndRow, symbols)
	if v, ok := c.covLRU.Get(key); ok {
		return reorderSym(v, symbols, sorted), nil
	}

	rows := c.windowColumns(windowStartRow, windowEndRow, sorted)
	n := len(sorted)
	if len(rows) < 2 {
		return nil, &bterrors.InsufficientHistoryError{
			Symbols:  symbolStrings(symbols),
			Required: 2,
			Have:     len(rows),
		}
	}

	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = row[j]
		}
		cols[j] = col
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := stat.Covariance(cols[i], cols[j], nil)
			cov.SetSym(i, j, v)
		}
	}

	c.covLRU.Add(key, cov)
	return reorderSym(cov, symbols, sorted), nil
}

// Returns exposes the return matrix a Cache is bound to, so callers that
// already hold a Cache (e.g. internal/backtest choosing the Preselector's
// input) do not need to thread the matrix through separately.
func (c *Cache) Returns() *contracts.ReturnMatrix { return c.returns }

func symbolStrings(symbols []contracts.Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = string(s)
	}
	return out
}

// orderLike reorders a vector computed over sortedOrder into the order
// requested by wanted.
func orderLike(v []float64, wanted, sortedOrder []contracts.Symbol) []float64 {
	idx := make(map[contracts.Symbol]int, len(sortedOrder))
	for i, s := range sortedOrder {
		idx[s] = i
	}
	out := make([]float64, len(wanted))
	for i, s := range wanted {
		out[i] = v[idx[s]]
	}
	return out
}

// reorderSym reorders a symmetric matrix computed over sortedOrder into a
// new symmetric matrix in the order requested by wanted.
func reorderSym(m *mat.SymDense, wanted, sortedOrder []contracts.Symbol) *mat.SymDense {
	idx := make(map[contracts.Symbol]int, len(sortedOrder))
	for i, s := range sortedOrder {
		idx[s] = i
	}
	n := len(wanted)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, m.At(idx[wanted[i]], idx[wanted[j]]))
		}
	}
	return out
}
