// Package marketdata loads the wide-format price CSV files cmd/backtester
// reads from disk into the in-memory contracts.PriceMatrix/ReturnMatrix the
// rest of the pipeline consumes.
//
// Grounded on other_examples/6ee7acb2_slabach-perfect-nt-bot's
// cmd/backtest/backtest.go, which reads historical bars from CSV via
// encoding/csv for its own day-by-day simulation loop; this package keeps
// the same encoding/csv idiom but loads a wide symbol-per-column panel
// instead of one-file-per-ticker bars.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/wonny/backtester/internal/contracts"
)

// LoadPriceMatrix reads a wide CSV file shaped:
//
//	date,SYM1,SYM2,...
//	2024-01-02,100.5,52.3,...
//	2024-01-03,101.0,,...
//
// An empty cell means a missing observation for that symbol on that date.
// Dates must be strictly increasing; this is checked, not assumed.
func LoadPriceMatrix(path string) (*contracts.PriceMatrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("marketdata: read header: %w", err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("marketdata: %s: header must have a date column and at least one symbol", path)
	}

	symbols := make([]contracts.Symbol, 0, len(header)-1)
	for _, h := range header[1:] {
		symbols = append(symbols, contracts.Symbol(h))
	}

	var dates []time.Time
	var values [][]float64
	var prevDate time.Time

	for rowNum := 2; ; rowNum++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: %s: row %d: %w", path, rowNum, err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("marketdata: %s: row %d: expected %d columns, got %d", path, rowNum, len(header), len(rec))
		}

		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, fmt.Errorf("marketdata: %s: row %d: invalid date %q: %w", path, rowNum, rec[0], err)
		}
		if !prevDate.IsZero() && !date.After(prevDate) {
			return nil, fmt.Errorf("marketdata: %s: row %d: dates must be strictly increasing", path, rowNum)
		}
		prevDate = date

		row := make([]float64, len(symbols))
		for i, cell := range rec[1:] {
			if cell == "" {
				row[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("marketdata: %s: row %d: invalid price %q for %s: %w", path, rowNum, cell, symbols[i], err)
			}
			row[i] = v
		}

		dates = append(dates, date)
		values = append(values, row)
	}

	if len(dates) == 0 {
		return nil, fmt.Errorf("marketdata: %s: no data rows", path)
	}

	return contracts.NewPriceMatrix(dates, symbols, values), nil
}

// DeriveReturnMatrix computes simple returns over the previous available
// (non-NaN) observation of each symbol. A symbol's first observed row, and
// any row on which its price is missing, is NaN for that symbol; the row
// after a gap holds the return over the last observation before the gap.
func DeriveReturnMatrix(prices *contracts.PriceMatrix) *contracts.ReturnMatrix {
	n := prices.NumRows()
	symbols := prices.Symbols
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, len(symbols))
	}

	lastPrice := make([]float64, len(symbols))
	lastSet := make([]bool, len(symbols))
	for row := 0; row < n; row++ {
		for col := range symbols {
			v := prices.At(row, col)
			if math.IsNaN(v) {
				values[row][col] = math.NaN()
				continue
			}
			if !lastSet[col] {
				values[row][col] = math.NaN()
			} else if lastPrice[col] == 0 {
				values[row][col] = math.NaN()
			} else {
				values[row][col] = v/lastPrice[col] - 1
			}
			lastPrice[col] = v
			lastSet[col] = true
		}
	}

	return contracts.NewReturnMatrix(prices.Dates, symbols, values)
}
