// Package metrics computes the Performance Metrics (PM) record: a pure
// function of an equity curve and a rebalance-event log (§4.9).
//
// Grounded on the donor's internal/risk/var.go historical-simulation
// VaR/CVaR (reused here for expected_shortfall) and internal/risk's
// sorted-descending concentration idiom (reused for top5_concentration);
// the return/drawdown/Sharpe/Sortino/Calmar formulas themselves have no
// direct donor analogue (the donor never backtests) and are built
// straight from SPEC_FULL.md §4.9.
package metrics

import (
	"math"

	"github.com/wonny/backtester/internal/contracts"
	"github.com/wonny/backtester/internal/risk"
)

const tradingDaysPerYear = 252

// Compute derives a PerformanceMetrics record from an equity curve
// (index 0 is the starting value, Return is the simple return over the
// prior point, 0 on the first point) and the run's rebalance events.
func Compute(equity []contracts.EquityPoint, events []contracts.RebalanceEvent, riskFreeRateAnnual float64) contracts.PerformanceMetrics {
	if len(equity) == 0 {
		return contracts.PerformanceMetrics{}
	}

	equityStart := equity[0].Equity
	equityEnd := equity[len(equity)-1].Equity

	var totalReturn float64
	if equityStart != 0 {
		totalReturn = equityEnd/equityStart - 1
	}

	n := len(equity) - 1
	annualisedReturn := annualise(equityStart, equityEnd, n)

	dailyReturns := make([]float64, 0, n)
	for _, pt := range equity[1:] {
		dailyReturns = append(dailyReturns, pt.Return)
	}

	annualisedVol := risk.StdDev(dailyReturns) * math.Sqrt(tradingDaysPerYear)

	rfDaily := riskFreeRateAnnual / tradingDaysPerYear
	sharpe := sharpeRatio(dailyReturns, rfDaily)
	sortino := sortinoRatio(dailyReturns, rfDaily)

	maxDrawdown := maxDrawdownOf(equity)

	var calmar float64
	if maxDrawdown == 0 {
		calmar = math.NaN()
	} else {
		calmar = annualisedReturn / math.Abs(maxDrawdown)
	}

	expectedShortfall := expectedShortfall95(dailyReturns)

	winRate, avgWin, avgLoss := winLossStats(dailyReturns)

	turnover, totalCosts := eventStats(events)

	var top5 float64
	if len(events) > 0 {
		last := events[len(events)-1]
		weights := make(map[string]float64, len(last.RealisedWeights))
		for s, w := range last.RealisedWeights {
			weights[string(s)] = w
		}
		_, top5 = risk.Concentration(weights)
	}

	return contracts.PerformanceMetrics{
		TotalReturn:          totalReturn,
		AnnualisedReturn:      annualisedReturn,
		AnnualisedVolatility:  annualisedVol,
		Sharpe:                sharpe,
		Sortino:               sortino,
		MaxDrawdown:           maxDrawdown,
		Calmar:                calmar,
		ExpectedShortfall95:   expectedShortfall,
		WinRate:               winRate,
		AvgWin:                avgWin,
		AvgLoss:               avgLoss,
		Turnover:              turnover,
		TotalCosts:            totalCosts,
		RebalanceCount:        len(events),
		Top5Concentration:     top5,
	}
}

func annualise(equityStart, equityEnd float64, n int) float64 {
	if n <= 0 || equityStart <= 0 || equityEnd <= 0 {
		return 0
	}
	ratio := equityEnd / equityStart
	exponent := float64(tradingDaysPerYear) / float64(n)
	return math.Pow(ratio, exponent) - 1
}

func sharpeRatio(dailyReturns []float64, rfDaily float64) float64 {
	vol := risk.StdDev(dailyReturns)
	if vol == 0 {
		return 0
	}
	excess := make([]float64, len(dailyReturns))
	for i, r := range dailyReturns {
		excess[i] = r - rfDaily
	}
	return risk.Mean(excess) / vol * math.Sqrt(tradingDaysPerYear)
}

func sortinoRatio(dailyReturns []float64, rfDaily float64) float64 {
	var downside []float64
	for _, r := range dailyReturns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	downsideDev := risk.StdDev(downside)
	if downsideDev == 0 {
		return 0
	}
	excess := make([]float64, len(dailyReturns))
	for i, r := range dailyReturns {
		excess[i] = r - rfDaily
	}
	return risk.Mean(excess) / downsideDev * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdownOf is min over t of equity(t)/running_max(equity) - 1,
// returned as a non-positive value.
func maxDrawdownOf(equity []contracts.EquityPoint) float64 {
	if len(equity) == 0 {
		return 0
	}
	runningMax := equity[0].Equity
	worst := 0.0
	for _, pt := range equity {
		if pt.Equity > runningMax {
			runningMax = pt.Equity
		}
		if runningMax <= 0 {
			continue
		}
		dd := pt.Equity/runningMax - 1
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// expectedShortfall95 is the mean of daily returns in the worst 5% tail,
// reusing internal/risk's historical-simulation CVaR (loss-positive) and
// restoring the signed convention §4.9 asks for.
func expectedShortfall95(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	result := risk.CalculateVaR(dailyReturns, 0.95)
	return -result.CVaR
}

func winLossStats(dailyReturns []float64) (winRate, avgWin, avgLoss float64) {
	if len(dailyReturns) == 0 {
		return 0, 0, 0
	}
	var wins, losses []float64
	for _, r := range dailyReturns {
		if r > 0 {
			wins = append(wins, r)
		} else if r < 0 {
			losses = append(losses, r)
		}
	}
	winRate = float64(len(wins)) / float64(len(dailyReturns))
	avgWin = risk.Mean(wins)
	avgLoss = risk.Mean(losses)
	return winRate, avgWin, avgLoss
}

func eventStats(events []contracts.RebalanceEvent) (turnover, totalCosts float64) {
	if len(events) == 0 {
		return 0, 0
	}
	var turnoverSum float64
	for _, ev := range events {
		turnoverSum += halfAbsoluteWeightDelta(ev)
		totalCosts += ev.TotalCost
	}
	return turnoverSum / float64(len(events)), totalCosts
}

// halfAbsoluteWeightDelta is Σ_s |Δweight_s| / 2 for one rebalance event,
// where Δweight_s is the traded notional for symbol s expressed as a
// fraction of the portfolio's pre-trade value.
func halfAbsoluteWeightDelta(ev contracts.RebalanceEvent) float64 {
	if ev.PortfolioValueBefore <= 0 {
		return 0
	}
	var sum float64
	for _, tr := range ev.Trades {
		sum += math.Abs(tr.TradeValue) / ev.PortfolioValueBefore
	}
	return sum / 2
}
