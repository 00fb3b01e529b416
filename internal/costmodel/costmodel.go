// Package costmodel computes transaction costs for executed trades (§4.8).
//
// Grounded on the donor's internal/backtest/simulator.go executeOrder,
// which charges a commission rate against trade notional and a slippage
// adjustment against the fill price before computing notional. This
// package keeps that two-term shape (commission + slippage, both
// proportional to trade value) but replaces the donor's integer-cents
// price arithmetic with float64 trade values and adds the donor's
// min_commission floor as an explicit parameter rather than a fixed
// per-broker constant.
package costmodel

import (
	"math"

	"github.com/wonny/backtester/internal/bterrors"
	"github.com/wonny/backtester/internal/contracts"
)

// Cost returns the transaction cost for one trade of the given signed
// value (positive for buys, negative for sells; only the magnitude
// matters). A zero-value trade costs zero. Non-finite or nonsensical
// parameters raise a TransactionCostError.
func Cost(tradeValue float64, params contracts.CostModelParams) (float64, error) {
	if math.IsNaN(tradeValue) || math.IsInf(tradeValue, 0) {
		return 0, &bterrors.TransactionCostError{Field: "trade_value", Value: tradeValue, Message: "must be finite"}
	}
	if params.CommissionPct < 0 || math.IsNaN(params.CommissionPct) || math.IsInf(params.CommissionPct, 0) {
		return 0, &bterrors.TransactionCostError{Field: "commission_pct", Value: params.CommissionPct, Message: "must be finite and non-negative"}
	}
	if params.MinCommission < 0 || math.IsNaN(params.MinCommission) || math.IsInf(params.MinCommission, 0) {
		return 0, &bterrors.TransactionCostError{Field: "min_commission", Value: params.MinCommission, Message: "must be finite and non-negative"}
	}
	if params.SlippageBps < 0 || math.IsNaN(params.SlippageBps) || math.IsInf(params.SlippageBps, 0) {
		return 0, &bterrors.TransactionCostError{Field: "slippage_bps", Value: params.SlippageBps, Message: "must be finite and non-negative"}
	}

	absValue := math.Abs(tradeValue)
	if absValue == 0 {
		return 0, nil
	}

	commission := params.CommissionPct * absValue
	if commission < params.MinCommission {
		commission = params.MinCommission
	}
	slippage := params.SlippageBps * 1e-4 * absValue

	return commission + slippage, nil
}

// Batch sums the cost of each trade's value, in the order given.
func Batch(tradeValues []float64, params contracts.CostModelParams) (float64, error) {
	var total float64
	for _, v := range tradeValues {
		c, err := Cost(v, params)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}
