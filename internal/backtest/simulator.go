// Package backtest implements the Backtest Engine (BE): it drives the
// daily loop, calls the Preselector/Membership/Strategy/Constraints/
// Transaction-Cost pipeline on rebalance days, maintains cash and
// holdings, and finalises performance metrics (§4.1, §4.8).
//
// Grounded on the donor's internal/backtest.Engine/Simulator: the
// day-loop shape (iterate trading days, check a rebalance trigger,
// mark-to-market, append an equity point) is the direct descendant of
// the donor's Engine.Run/calculateMetrics; the donor's integer-cents
// Simulator.executeOrder cash-deduction idiom is the grounding for this
// file's float64 applyTarget, generalised from the donor's single
// commission+slippage execution to the cash-shortfall proportional
// scaling §4.1 requires.
package backtest

import (
	"time"

	"github.com/wonny/backtester/internal/contracts"
	"github.com/wonny/backtester/internal/costmodel"
)

// simulator owns the mutable cash/shares state the engine advances one
// trading day at a time. It carries no cross-run state.
type simulator struct {
	cash      float64
	shares    map[contracts.Symbol]float64
	lastValue map[contracts.Symbol]float64 // marked value carried while a price is missing
}

func newSimulator(initialCapital float64) *simulator {
	return &simulator{
		cash:      initialCapital,
		shares:    make(map[contracts.Symbol]float64),
		lastValue: make(map[contracts.Symbol]float64),
	}
}

// markToMarket prices every held symbol at date, carrying the last known
// value (and flagging it stale to the caller) when a price is missing.
func (s *simulator) markToMarket(date time.Time, prices *contracts.PriceMatrix) (portfolioValue float64, weights map[contracts.Symbol]float64, stale []contracts.Symbol) {
	portfolioValue = s.cash
	weights = make(map[contracts.Symbol]float64, len(s.shares))

	values := make(map[contracts.Symbol]float64, len(s.shares))
	for sym, qty := range s.shares {
		if qty == 0 {
			continue
		}
		price, ok := prices.Price(date, sym)
		var value float64
		if ok {
			value = qty * price
			s.lastValue[sym] = value
		} else {
			value = s.lastValue[sym]
			stale = append(stale, sym)
		}
		values[sym] = value
		portfolioValue += value
	}

	for sym, v := range values {
		if portfolioValue > 0 {
			weights[sym] = v / portfolioValue
		}
	}
	return portfolioValue, weights, stale
}

// applyTarget converts target weights to target share counts at date's
// reference price, computes trades and transaction costs, scales them
// proportionally if cash would otherwise go negative, and mutates the
// simulator's cash/shares in place.
func (s *simulator) applyTarget(
	date time.Time,
	targetWeights map[contracts.Symbol]contracts.Weight,
	prices *contracts.PriceMatrix,
	portfolioValue float64,
	costParams contracts.CostModelParams,
) (trades []contracts.Trade, totalCost, scalingFactor float64, err error) {
	type plannedTrade struct {
		symbol      contracts.Symbol
		deltaShares float64
		tradeValue  float64 // signed: positive = buy
		price       float64
	}

	var planned []plannedTrade
	touched := make(map[contracts.Symbol]bool)
	for sym := range targetWeights {
		touched[sym] = true
	}
	for sym := range s.shares {
		touched[sym] = true
	}

	for sym := range touched {
		price, ok := prices.Price(date, sym)
		if !ok {
			continue // no reference price: leave the existing position untouched
		}
		targetValue := targetWeights[sym] * portfolioValue
		targetShares := 0.0
		if price > 0 {
			targetShares = targetValue / price
		}
		delta := targetShares - s.shares[sym]
		if delta == 0 {
			continue
		}
		planned = append(planned, plannedTrade{symbol: sym, deltaShares: delta, tradeValue: delta * price, price: price})
	}

	costOf := func(f float64) (float64, error) {
		var sum float64
		for _, t := range planned {
			c, cerr := costmodel.Cost(t.tradeValue*f, costParams)
			if cerr != nil {
				return 0, cerr
			}
			sum += c
		}
		return sum, nil
	}

	cashAfter := func(f float64) (float64, error) {
		cost, cerr := costOf(f)
		if cerr != nil {
			return 0, cerr
		}
		var net float64
		for _, t := range planned {
			net -= t.tradeValue * f // buys consume cash, sells (negative tradeValue) release it
		}
		return s.cash + net - cost, nil
	}

	scalingFactor = 1.0
	full, err := cashAfter(1.0)
	if err != nil {
		return nil, 0, 0, err
	}
	if full < 0 {
		lo, hi := 0.0, 1.0
		for i := 0; i < 60; i++ {
			mid := (lo + hi) / 2
			v, cerr := cashAfter(mid)
			if cerr != nil {
				return nil, 0, 0, cerr
			}
			if v < 0 {
				hi = mid
			} else {
				lo = mid
			}
		}
		scalingFactor = lo
	}

	totalCost, err = costOf(scalingFactor)
	if err != nil {
		return nil, 0, 0, err
	}

	trades = make([]contracts.Trade, 0, len(planned))
	for _, t := range planned {
		scaledDelta := t.deltaShares * scalingFactor
		scaledValue := t.tradeValue * scalingFactor
		tradeCost, cerr := costmodel.Cost(scaledValue, costParams)
		if cerr != nil {
			return nil, 0, 0, cerr
		}

		s.shares[t.symbol] += scaledDelta
		s.cash -= scaledValue
		s.cash -= tradeCost
		if price, ok := prices.Price(date, t.symbol); ok {
			s.lastValue[t.symbol] = s.shares[t.symbol] * price
		}

		trades = append(trades, contracts.Trade{
			Symbol:      t.symbol,
			DeltaShares: scaledDelta,
			TradeValue:  scaledValue,
			Cost:        tradeCost,
		})
	}

	return trades, totalCost, scalingFactor, nil
}

// realisedWeights recomputes each held symbol's share of portfolioValue
// after trades have been applied at date's prices.
func (s *simulator) realisedWeights(date time.Time, prices *contracts.PriceMatrix, portfolioValue float64) map[contracts.Symbol]contracts.Weight {
	out := make(map[contracts.Symbol]contracts.Weight, len(s.shares))
	if portfolioValue <= 0 {
		return out
	}
	for sym, qty := range s.shares {
		if qty == 0 {
			continue
		}
		price, ok := prices.Price(date, sym)
		if !ok {
			price = 0
			if v, ok2 := s.lastValue[sym]; ok2 && qty != 0 {
				out[sym] = v / portfolioValue
				continue
			}
		}
		out[sym] = (qty * price) / portfolioValue
	}
	return out
}
