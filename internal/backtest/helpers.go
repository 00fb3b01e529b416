package backtest

import (
	"math"
	"time"

	"github.com/wonny/backtester/internal/bterrors"
	"github.com/wonny/backtester/internal/contracts"
)

// validateConfig checks the structural preconditions §3/§6 place on a
// BacktestConfig before the day loop starts. Violations are always
// InvalidConfig, raised before any state mutates (§7's propagation
// policy).
func validateConfig(cfg contracts.BacktestConfig) error {
	if !cfg.StartDate.Before(cfg.EndDate) {
		return &bterrors.InvalidConfigError{Field: "start_date", Message: "must be strictly before end_date"}
	}
	if cfg.InitialCapital <= 0 {
		return &bterrors.InvalidConfigError{Field: "initial_capital", Message: "must be positive"}
	}
	switch cfg.RebalanceFrequency {
	case contracts.RebalanceDaily, contracts.RebalanceWeekly, contracts.RebalanceMonthly,
		contracts.RebalanceQuarterly, contracts.RebalanceAnnual:
	default:
		return &bterrors.InvalidConfigError{Field: "rebalance_frequency", Message: "unrecognised value: " + string(cfg.RebalanceFrequency)}
	}
	if cfg.OpportunisticBand < 0 || cfg.OpportunisticBand > 0.5 {
		return &bterrors.InvalidConfigError{Field: "opportunistic_band", Message: "must be in [0, 0.5]"}
	}
	if cfg.CacheCapacity < 0 {
		return &bterrors.InvalidConfigError{Field: "cache_capacity", Message: "must be >= 0"}
	}
	if cfg.CostModel.CommissionPct < 0 || cfg.CostModel.MinCommission < 0 || cfg.CostModel.SlippageBps < 0 {
		return &bterrors.InvalidConfigError{Field: "cost_model", Message: "commission/slippage parameters must be non-negative"}
	}
	return nil
}

// windowRows returns the indices into prices.Dates that fall within
// [start, end], inclusive, in chronological order.
func windowRows(prices *contracts.PriceMatrix, start, end time.Time) []int {
	var rows []int
	for i, d := range prices.Dates {
		if d.Before(start) {
			continue
		}
		if d.After(end) {
			break
		}
		rows = append(rows, i)
	}
	return rows
}

// decideTrigger implements §4.1 step 2: the first trading day of the run
// is always SCHEDULED; thereafter SCHEDULED boundaries take precedence,
// then OPPORTUNISTIC, then FORCED — and per SPEC_FULL.md §13's resolution
// of the source's open question, a firing OPPORTUNISTIC trigger suppresses
// FORCED for that day entirely.
func decideTrigger(
	i, row int,
	date time.Time,
	prices *contracts.PriceMatrix,
	cfg contracts.BacktestConfig,
	cons contracts.Constraints,
	currentWeights map[contracts.Symbol]float64,
	lastTarget map[contracts.Symbol]contracts.Weight,
) (contracts.TriggerKind, bool) {
	if i == 0 {
		return contracts.TriggerScheduled, true
	}
	if isScheduledBoundary(row, prices, cfg.RebalanceFrequency) {
		return contracts.TriggerScheduled, true
	}
	if cfg.OpportunisticBand > 0 && lastTarget != nil {
		if maxAbsDrift(currentWeights, lastTarget) >= cfg.OpportunisticBand {
			return contracts.TriggerOpportunistic, true
		}
	}
	if cfg.ForceRebalanceOnDrift {
		for _, w := range currentWeights {
			if cons.MaxWeight > 0 && w > cons.MaxWeight+1e-9 {
				return contracts.TriggerForced, true
			}
			if w < cons.MinWeight-1e-9 {
				return contracts.TriggerForced, true
			}
		}
	}
	return "", false
}

func maxAbsDrift(current map[contracts.Symbol]float64, target map[contracts.Symbol]contracts.Weight) float64 {
	seen := make(map[contracts.Symbol]bool, len(current)+len(target))
	for s := range current {
		seen[s] = true
	}
	for s := range target {
		seen[s] = true
	}
	maxDrift := 0.0
	for s := range seen {
		d := math.Abs(current[s] - target[s])
		if d > maxDrift {
			maxDrift = d
		}
	}
	return maxDrift
}

// isScheduledBoundary reports whether row is the first trading day of its
// rebalance period, by comparing its period key against the prior
// trading day's (§4.1's "first trading day of each ISO week/calendar
// boundary" semantics).
func isScheduledBoundary(row int, prices *contracts.PriceMatrix, freq contracts.RebalanceFrequency) bool {
	if freq == contracts.RebalanceDaily {
		return true
	}
	if row == 0 {
		return true
	}
	return periodKey(prices.Dates[row], freq) != periodKey(prices.Dates[row-1], freq)
}

func periodKey(t time.Time, freq contracts.RebalanceFrequency) [2]int {
	switch freq {
	case contracts.RebalanceWeekly:
		y, w := t.ISOWeek()
		return [2]int{y, w}
	case contracts.RebalanceMonthly:
		return [2]int{t.Year(), int(t.Month())}
	case contracts.RebalanceQuarterly:
		return [2]int{t.Year(), (int(t.Month()) - 1) / 3}
	case contracts.RebalanceAnnual:
		return [2]int{t.Year(), 0}
	default:
		return [2]int{t.Year(), int(t.Month())*100 + t.Day()}
	}
}

// redistributeMissingPrices drops target symbols with no reference price
// on date and redistributes their intended weight proportionally among
// the remaining targets, per §4.1's edge policy — it never blocks the
// rebalance, it only narrows its target set.
func redistributeMissingPrices(
	weights map[contracts.Symbol]contracts.Weight,
	date time.Time,
	prices *contracts.PriceMatrix,
) map[contracts.Symbol]contracts.Weight {
	present := make(map[contracts.Symbol]contracts.Weight, len(weights))
	var presentTotal, missingTotal float64
	for sym, w := range weights {
		if _, ok := prices.Price(date, sym); ok {
			present[sym] = w
			presentTotal += w
		} else {
			missingTotal += w
		}
	}
	if missingTotal <= 0 || presentTotal <= 0 {
		return present
	}
	factor := (presentTotal + missingTotal) / presentTotal
	out := make(map[contracts.Symbol]contracts.Weight, len(present))
	for sym, w := range present {
		out[sym] = w * factor
	}
	return out
}

func symbolStrings(symbols []contracts.Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = string(s)
	}
	return out
}
