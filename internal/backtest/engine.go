// Package backtest implements the Backtest Engine (BE) described by §4.1:
// the daily loop that drives the Preselector/Membership/Strategy/
// Constraints/Transaction-Cost pipeline, maintains cash and holdings,
// records rebalance events, and finalises performance metrics.
//
// Grounded on the donor's internal/backtest.Engine.Run: the overall shape
// (iterate trading days, check a trigger, delegate to a pipeline on
// rebalance days, accumulate a result) is the direct descendant of the
// donor's day-loop; everything the donor delegated to a live orchestrator
// and a Postgres-backed simulator is replaced here by calls into
// internal/preselect, internal/membership, internal/strategy,
// internal/constraints, internal/costmodel and internal/statcache over
// the in-memory PriceMatrix/ReturnMatrix of §3.
package backtest

import (
	"context"
	"time"

	"github.com/wonny/backtester/internal/bterrors"
	"github.com/wonny/backtester/internal/constraints"
	"github.com/wonny/backtester/internal/contracts"
	"github.com/wonny/backtester/internal/membership"
	"github.com/wonny/backtester/internal/metrics"
	"github.com/wonny/backtester/internal/preselect"
	"github.com/wonny/backtester/internal/statcache"
	"github.com/wonny/backtester/internal/strategy"
	"github.com/wonny/backtester/pkg/logger"
)

const defaultStrategyLookback = 252

// Engine drives one backtest run. It holds no state across calls to Run;
// each call builds its own simulator, RSC, preselector and membership
// policy so that concurrent comparison runs (CompareRunner) never share
// mutable state, per §5's "each backtest owns a private RSC" rule.
type Engine struct {
	log *logger.Logger
}

// New builds an Engine. log may be nil (components silently skip
// logging, matching the donor's "logger only where it already holds
// one" shape).
func New(log *logger.Logger) *Engine {
	return &Engine{log: log}
}

// Run replays [config.StartDate, config.EndDate] day by day over prices
// and returns, driving strat through the Preselector/Membership pipeline
// when preselection is configured. universe is the static eligible symbol
// set the Preselector (or, with preselection disabled, the strategy
// directly) chooses from; asset-class labels for class caps live on
// cons.AssetClassOf.
//
// Run is deterministic: given identical arguments, two calls produce
// byte-identical equity, events and metrics (§5). It never mutates its
// arguments.
func (e *Engine) Run(
	ctx context.Context,
	cfg contracts.BacktestConfig,
	strat strategy.Strategy,
	cons contracts.Constraints,
	universe []contracts.Symbol,
	prices *contracts.PriceMatrix,
	returns *contracts.ReturnMatrix,
) ([]contracts.EquityPoint, []contracts.RebalanceEvent, contracts.PerformanceMetrics, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, nil, contracts.PerformanceMetrics{}, err
	}

	lookback := cfg.StrategyLookback
	if lookback <= 0 {
		lookback = defaultStrategyLookback
	}

	rows := windowRows(prices, cfg.StartDate, cfg.EndDate)
	if len(rows) == 0 {
		return nil, nil, contracts.PerformanceMetrics{}, &bterrors.InvalidConfigError{
			Field:   "start_date/end_date",
			Message: "no trading day falls within [start_date, end_date]",
		}
	}

	needed := lookback
	if _, ok := strat.(strategy.EqualWeight); ok {
		// Equal-Weight reads no return window, so only an enabled
		// preselector's lookback calls for trailing history.
		needed = 0
	}
	if cfg.Preselection != nil && cfg.Preselection.Enabled && cfg.Preselection.Lookback > needed {
		needed = cfg.Preselection.Lookback
	}
	if rows[0] < needed {
		return nil, nil, contracts.PerformanceMetrics{}, &bterrors.InsufficientHistoryError{
			Date:     prices.Dates[rows[0]],
			Symbols:  symbolStrings(universe),
			Required: needed,
			Have:     rows[0],
		}
	}

	cache, err := statcache.New(returns, cfg.CacheCapacity)
	if err != nil {
		return nil, nil, contracts.PerformanceMetrics{}, &bterrors.InvalidConfigError{Field: "cache_capacity", Message: "failed to initialise RSC", Cause: err}
	}

	var selector *preselect.Selector
	if cfg.Preselection != nil && cfg.Preselection.Enabled {
		selector, err = preselect.New(*cfg.Preselection, e.log)
		if err != nil {
			return nil, nil, contracts.PerformanceMetrics{}, err
		}
	}
	var memPolicy *membership.Policy
	if cfg.MembershipPolicy != nil && cfg.MembershipPolicy.Enabled {
		memPolicy = membership.New(*cfg.MembershipPolicy)
	}

	sim := newSimulator(cfg.InitialCapital)

	var (
		equity      []contracts.EquityPoint
		events      []contracts.RebalanceEvent
		lastTarget  map[contracts.Symbol]contracts.Weight
		memberState contracts.MembershipState
		prevEquity  float64
	)

	for i, row := range rows {
		if ctx != nil {
			select {
			case <-ctx.Done():
				m := metrics.Compute(equity, events, cfg.RiskFreeRate)
				return equity, events, m, &bterrors.CancelledError{Date: prices.Dates[row], Cause: ctx.Err()}
			default:
			}
		}

		date := prices.Dates[row]

		valueBefore, weightsNow, _ := sim.markToMarket(date, prices)

		trigger, fires := decideTrigger(i, row, date, prices, cfg, cons, weightsNow, lastTarget)

		var ev *contracts.RebalanceEvent
		if fires {
			ev, err = e.rebalance(
				sim, trigger, date, row, lookback,
				selector, memPolicy, &memberState,
				strat, cons, cfg, cache,
				universe, prices, valueBefore,
			)
			if err != nil {
				if _, isRebalErr := err.(*bterrors.RebalanceError); isRebalErr && cfg.SkipFailedRebalance {
					ev = &contracts.RebalanceEvent{
						Date:                 date,
						Trigger:              trigger,
						PortfolioValueBefore: valueBefore,
						PortfolioValueAfter:  valueBefore,
						Failed:               true,
						FailureReason:        err.Error(),
					}
					if e.log != nil {
						e.log.WithFields(map[string]interface{}{
							"date":    date.Format("2006-01-02"),
							"trigger": string(trigger),
						}).WithError(err).Warn("rebalance failed, keeping prior weights")
					}
				} else {
					m := metrics.Compute(equity, events, cfg.RiskFreeRate)
					return equity, events, m, err
				}
			}
			if ev != nil {
				events = append(events, *ev)
				if !ev.Failed {
					lastTarget = ev.TargetWeights
				}
			}
		}

		valueAfter := valueBefore
		if ev != nil && !ev.Failed {
			valueAfter = ev.PortfolioValueAfter
		}

		ret := 0.0
		if i > 0 && prevEquity != 0 {
			ret = valueAfter/prevEquity - 1
		}
		equity = append(equity, contracts.EquityPoint{Date: date, Equity: valueAfter, Return: ret})
		prevEquity = valueAfter
	}

	m := metrics.Compute(equity, events, cfg.RiskFreeRate)
	if e.log != nil {
		e.log.WithFields(map[string]interface{}{
			"rebalances":   m.RebalanceCount,
			"total_return": m.TotalReturn,
			"sharpe":       m.Sharpe,
			"max_drawdown": m.MaxDrawdown,
		}).Info("backtest run completed")
	}
	return equity, events, m, nil
}

// rebalance runs the PS -> MP -> SP -> C -> TCM pipeline for one trading
// day and applies the resulting trades to sim, per §4.1 step 3 and §5's
// strict within-day ordering (PS -> MP -> FE -> SP -> C -> TCM).
func (e *Engine) rebalance(
	sim *simulator,
	trigger contracts.TriggerKind,
	date time.Time,
	asofRow int,
	lookback int,
	selector *preselect.Selector,
	memPolicy *membership.Policy,
	memberState *contracts.MembershipState,
	strat strategy.Strategy,
	cons contracts.Constraints,
	cfg contracts.BacktestConfig,
	cache *statcache.Cache,
	universe []contracts.Symbol,
	prices *contracts.PriceMatrix,
	valueBefore float64,
) (*contracts.RebalanceEvent, error) {
	active := e.activeSymbols(asofRow, selector, memPolicy, memberState, universe, cache)
	if len(active) == 0 {
		return nil, &bterrors.RebalanceError{Date: date, Reason: "no eligible symbols at asof"}
	}

	windowStart := asofRow - lookback
	if windowStart < 0 {
		windowStart = 0
	}

	portfolio, err := strat.Build(active, windowStart, asofRow, cache, cons)
	if err != nil {
		return nil, &bterrors.RebalanceError{Date: date, Symbols: symbolStrings(active), Reason: "strategy build failed", Cause: err}
	}

	projected, err := constraints.Project(portfolio.Holdings, cons)
	if err != nil {
		return nil, &bterrors.RebalanceError{Date: date, Symbols: symbolStrings(active), Reason: "constraint projection infeasible", Cause: err}
	}

	target := redistributeMissingPrices(projected, date, prices)

	trades, totalCost, scalingFactor, err := sim.applyTarget(date, target, prices, valueBefore, cfg.CostModel)
	if err != nil {
		return nil, err
	}

	valueAfter := sim.cash
	for sym, qty := range sim.shares {
		if qty == 0 {
			continue
		}
		if p, ok := prices.Price(date, sym); ok {
			valueAfter += qty * p
		} else {
			valueAfter += sim.lastValue[sym]
		}
	}

	realised := sim.realisedWeights(date, prices, valueAfter)

	ev := &contracts.RebalanceEvent{
		Date:                 date,
		Trigger:              trigger,
		TargetWeights:        target,
		RealisedWeights:      realised,
		Trades:               trades,
		TotalCost:            totalCost,
		PortfolioValueBefore: valueBefore,
		PortfolioValueAfter:  valueAfter,
		ScalingFactor:        scalingFactor,
	}
	if e.log != nil {
		e.log.WithFields(map[string]interface{}{
			"date":       date.Format("2006-01-02"),
			"trigger":    string(trigger),
			"symbols":    len(target),
			"total_cost": totalCost,
		}).Debug("rebalance executed")
	}
	return ev, nil
}

// activeSymbols resolves the set of symbols a rebalance should target:
// the Preselector's ranked top-K, smoothed by the Membership Policy when
// configured, or the full universe when preselection is disabled.
func (e *Engine) activeSymbols(
	asofRow int,
	selector *preselect.Selector,
	memPolicy *membership.Policy,
	memberState *contracts.MembershipState,
	universe []contracts.Symbol,
	cache *statcache.Cache,
) []contracts.Symbol {
	if selector == nil {
		return universe
	}
	ranked, finite := selector.Rank(asofRow, universe, cache.Returns())
	topK := selector.TopK()
	if finite < topK {
		topK = finite
	}

	if memPolicy == nil {
		if topK > len(ranked) {
			topK = len(ranked)
		}
		out := append([]contracts.Symbol(nil), ranked[:topK]...)
		return out
	}

	next := memPolicy.Apply(*memberState, ranked, topK)
	*memberState = next
	return append([]contracts.Symbol(nil), next.CurrentMembers...)
}
