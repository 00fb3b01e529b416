// Package strategy implements the Strategy Plugins (SP): pluggable
// portfolio-construction methods that turn a symbol list and a trailing
// return window into target weights.
//
// Grounded on the donor's internal/portfolio.Constructor.calculateWeights
// dispatch (equal/score_based/tiered/"risk_parity TODO"): this package
// keeps the dispatch-by-name shape but replaces the donor's four
// Korean-equity weighting modes with the three named here. Equal-Weight
// is a direct port of the donor's equalWeight (cash-reserve concept
// dropped in favour of an explicit max_per_asset-driven cash residual).
// Risk-Parity and Mean-Variance have no donor analogue and are built
// against gonum/mat and gonum/optimize per SPEC_FULL.md §4.4/§11.
package strategy

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/wonny/backtester/internal/bterrors"
	"github.com/wonny/backtester/internal/contracts"
	"github.com/wonny/backtester/internal/statcache"
)

// Strategy builds a target Portfolio from a symbol list and a return
// window strictly prior to the rebalance day (§4.4).
type Strategy interface {
	Name() string
	Build(symbols []contracts.Symbol, windowStartRow, windowEndRow int, cache *statcache.Cache, c contracts.Constraints) (*contracts.Portfolio, error)
}

func newPortfolio(tag string, weights map[contracts.Symbol]float64) *contracts.Portfolio {
	return &contracts.Portfolio{Holdings: weights, StrategyTag: tag}
}

// EqualWeight assigns 1/N to each symbol, clipping to max_per_asset and
// leaving the shortfall as cash rather than redistributing it (§4.4).
type EqualWeight struct{}

func (EqualWeight) Name() string { return "equal_weight" }

func (EqualWeight) Build(symbols []contracts.Symbol, _, _ int, _ *statcache.Cache, c contracts.Constraints) (*contracts.Portfolio, error) {
	if len(symbols) == 0 {
		return nil, &bterrors.RebalanceError{Reason: "equal_weight: empty symbol list"}
	}
	n := float64(len(symbols))
	w := 1.0 / n
	cap := c.MaxPerAsset
	if cap > 0 && cap < w {
		w = cap
	}
	weights := make(map[contracts.Symbol]float64, len(symbols))
	for _, s := range symbols {
		weights[s] = w
	}
	return newPortfolio("equal_weight", weights), nil
}

// RiskParity solves the equal-risk-contribution problem: every asset
// contributes the same share of total portfolio variance. Falls back to
// a diagonal covariance (asset-wise variances only) when the sample
// covariance is not numerically positive semidefinite (§4.4).
type RiskParity struct {
	// MaxIterations bounds the fixed-point solve; 0 uses the spec
	// default of 1000.
	MaxIterations int
}

const (
	defaultERCIterations = 1000
	ercTolerance          = 1e-6
	eigenFloor            = 1e-8
)

func (RiskParity) Name() string { return "risk_parity" }

func (rp RiskParity) Build(symbols []contracts.Symbol, startRow, endRow int, cache *statcache.Cache, c contracts.Constraints) (*contracts.Portfolio, error) {
	n := len(symbols)
	if n == 0 {
		return nil, &bterrors.RebalanceError{Reason: "risk_parity: empty symbol list"}
	}

	cov, err := cache.Cov(startRow, endRow, symbols)
	if err != nil {
		return nil, err
	}

	sigma := ensurePSD(cov, n)

	w, err := solveERC(sigma, n, rp.MaxIterations)
	if err != nil {
		return nil, &bterrors.RebalanceError{
			Symbols: symbolStrings(symbols),
			Reason:  "risk_parity: equal-risk-contribution solve did not converge",
			Cause:   err,
		}
	}

	weights := make(map[contracts.Symbol]float64, n)
	for i, s := range symbols {
		weights[s] = w[i]
	}

	projected, err := projectByBisection(weights, c)
	if err != nil {
		return nil, err
	}
	return newPortfolio("risk_parity", projected), nil
}

// ensurePSD returns cov unchanged if its smallest eigenvalue is at least
// eigenFloor, otherwise a diagonal matrix of the input's variances.
func ensurePSD(cov *mat.SymDense, n int) *mat.SymDense {
	var eig mat.EigenSym
	ok := eig.Factorize(cov, false)
	if ok {
		values := eig.Values(nil)
		smallest := math.Inf(1)
		for _, v := range values {
			if v < smallest {
				smallest = v
			}
		}
		if smallest >= eigenFloor {
			return cov
		}
	}

	diag := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		diag.SetSym(i, i, cov.At(i, i))
	}
	return diag
}

// solveERC finds w > 0, sum(w) = 1, with w_i*(Σw)_i equal across i, via a
// multiplicative cyclic fixed-point scheme: at each pass scale every
// weight toward the ratio of its target risk contribution to its
// current one, then renormalise. Converges when the maximum relative
// deviation between risk contributions falls below ercTolerance.
func solveERC(sigma *mat.SymDense, n int, maxIter int) ([]float64, error) {
	if maxIter <= 0 {
		maxIter = defaultERCIterations
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}

	sigmaW := make([]float64, n)
	riskContrib := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		mulSymVec(sigma, w, sigmaW)

		var totalRisk float64
		for i := 0; i < n; i++ {
			riskContrib[i] = w[i] * sigmaW[i]
			totalRisk += riskContrib[i]
		}
		if totalRisk <= 0 {
			return nil, &deviationError{reason: "non-positive portfolio variance"}
		}
		targetRC := totalRisk / float64(n)

		maxDev := 0.0
		for i := 0; i < n; i++ {
			dev := math.Abs(riskContrib[i]-targetRC) / targetRC
			if dev > maxDev {
				maxDev = dev
			}
		}
		if maxDev <= ercTolerance {
			return w, nil
		}

		for i := 0; i < n; i++ {
			if sigmaW[i] <= 0 || w[i] <= 0 {
				continue
			}
			w[i] *= math.Sqrt(targetRC / riskContrib[i])
		}
		var total float64
		for _, wi := range w {
			total += wi
		}
		if total <= 0 {
			return nil, &deviationError{reason: "weights collapsed to zero"}
		}
		for i := range w {
			w[i] /= total
		}
	}

	return nil, &deviationError{reason: "exceeded maximum iterations"}
}

type deviationError struct{ reason string }

func (e *deviationError) Error() string { return e.reason }

func mulSymVec(sigma *mat.SymDense, v, out []float64) {
	n := len(v)
	vv := mat.NewVecDense(n, v)
	ov := mat.NewVecDense(n, nil)
	ov.MulVec(sigma, vv)
	for i := 0; i < n; i++ {
		out[i] = ov.AtVec(i)
	}
}

// projectByBisection scales the weight vector by a single factor,
// found by bisection, until the largest weight satisfies max_per_asset,
// then renormalises (§4.4's "project to constraints by bisection on the
// cap; renormalise").
func projectByBisection(weights map[contracts.Symbol]float64, c contracts.Constraints) (map[contracts.Symbol]float64, error) {
	cap := c.MaxPerAsset
	if cap <= 0 {
		cap = 1.0
	}

	maxW := 0.0
	for _, w := range weights {
		if w > maxW {
			maxW = w
		}
	}
	if maxW <= cap {
		return weights, nil
	}

	lo, hi := 0.0, 1.0
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if mid*maxW > cap {
			hi = mid
		} else {
			lo = mid
		}
	}
	factor := lo

	out := make(map[contracts.Symbol]float64, len(weights))
	var total float64
	for sym, w := range weights {
		scaled := w * factor
		out[sym] = scaled
		total += scaled
	}
	if total <= 0 {
		return nil, &bterrors.RebalanceError{Reason: "risk_parity: bisection collapsed weights to zero"}
	}
	for sym := range out {
		out[sym] /= total
	}
	return out, nil
}

// MeanVariance maximises mu'w - (gamma/2) w'Sigma w subject to
// 0 <= w_i <= max_per_asset and sum(w_i) <= 1 (cash allowed), via
// gonum/optimize's gradient-based minimisation of the negated objective
// followed by a constraint projection (§4.4).
type MeanVariance struct {
	RiskAversion float64 // gamma, default 1.0 when <= 0
}

func (MeanVariance) Name() string { return "mean_variance" }

func (mv MeanVariance) Build(symbols []contracts.Symbol, startRow, endRow int, cache *statcache.Cache, c contracts.Constraints) (*contracts.Portfolio, error) {
	n := len(symbols)
	if n == 0 {
		return nil, &bterrors.RebalanceError{Reason: "mean_variance: empty symbol list"}
	}

	mu, err := cache.Mean(startRow, endRow, symbols)
	if err != nil {
		return nil, err
	}
	sigma, err := cache.Cov(startRow, endRow, symbols)
	if err != nil {
		return nil, err
	}

	gamma := mv.RiskAversion
	if gamma <= 0 {
		gamma = 1.0
	}

	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			sw := make([]float64, n)
			mulSymVec(sigma, w, sw)
			var muW, quad float64
			for i := 0; i < n; i++ {
				muW += mu[i] * w[i]
				quad += w[i] * sw[i]
			}
			return -(muW - 0.5*gamma*quad)
		},
		Grad: func(grad, w []float64) {
			sw := make([]float64, n)
			mulSymVec(sigma, w, sw)
			for i := 0; i < n; i++ {
				grad[i] = -mu[i] + gamma*sw[i]
			}
		},
	}

	init := make([]float64, n)
	for i := range init {
		init[i] = 1.0 / float64(n)
	}

	result, err := optimize.Minimize(problem, init, nil, &optimize.BFGS{})
	if err != nil {
		return nil, &bterrors.RebalanceError{Symbols: symbolStrings(symbols), Reason: "mean_variance: optimizer failed", Cause: err}
	}
	for _, v := range result.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &bterrors.RebalanceError{Symbols: symbolStrings(symbols), Reason: "mean_variance: optimizer returned non-finite weights"}
		}
	}

	weights := make(map[contracts.Symbol]float64, n)
	for i, s := range symbols {
		w := result.X[i]
		if w < 0 {
			w = 0
		}
		weights[s] = w
	}

	return newPortfolio("mean_variance", clipAndCap(weights, c)), nil
}

// clipAndCap enforces 0 <= w_i <= max_per_asset and sum(w_i) <= 1 without
// forcing full investment, since the strategy allows residual cash.
func clipAndCap(weights map[contracts.Symbol]float64, c contracts.Constraints) map[contracts.Symbol]float64 {
	cap := c.MaxPerAsset
	if cap <= 0 {
		cap = 1.0
	}
	out := make(map[contracts.Symbol]float64, len(weights))
	var total float64
	for sym, w := range weights {
		if w > cap {
			w = cap
		}
		out[sym] = w
		total += w
	}
	leverage := c.LeverageCap
	if leverage <= 0 {
		leverage = 1.0
	}
	if total > leverage {
		factor := leverage / total
		for sym := range out {
			out[sym] *= factor
		}
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
