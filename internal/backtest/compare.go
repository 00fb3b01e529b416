package backtest

import (
	"context"
	"sync"

	"github.com/wonny/backtester/internal/contracts"
	"github.com/wonny/backtester/internal/strategy"
	"github.com/wonny/backtester/pkg/logger"
)

// CompareResult is one strategy's outcome from CompareRunner.
type CompareResult struct {
	StrategyName string
	Equity       []contracts.EquityPoint
	Events       []contracts.RebalanceEvent
	Metrics      contracts.PerformanceMetrics
	Err          error
}

// CompareRunner runs the same window under several strategies
// concurrently (SPEC_FULL.md §10.4/§12's "one place the spec explicitly
// allows parallelism") and returns one CompareResult per strategy, in
// the same order as strategies.
//
// Grounded on the donor's cmd/quant/commands/backtest.go pattern of
// running independent pipelines and collecting their results; each
// branch here calls Engine.Run, which builds its own private
// simulator/RSC/preselector per run, so no mutable state is shared
// across goroutines (§5).
func CompareRunner(
	ctx context.Context,
	log *logger.Logger,
	cfg contracts.BacktestConfig,
	strategies []strategy.Strategy,
	cons contracts.Constraints,
	universe []contracts.Symbol,
	prices *contracts.PriceMatrix,
	returns *contracts.ReturnMatrix,
) []CompareResult {
	results := make([]CompareResult, len(strategies))

	var wg sync.WaitGroup
	for i, strat := range strategies {
		wg.Add(1)
		go func(i int, strat strategy.Strategy) {
			defer wg.Done()
			engine := New(log)
			equity, events, m, err := engine.Run(ctx, cfg, strat, cons, universe, prices, returns)
			results[i] = CompareResult{
				StrategyName: strat.Name(),
				Equity:       equity,
				Events:       events,
				Metrics:      m,
				Err:          err,
			}
		}(i, strat)
	}
	wg.Wait()

	return results
}
