// Package constraints validates and projects portfolio weight vectors to
// satisfy bounds, leverage and asset-class caps (§4.5).
//
// Grounded on the donor's internal/portfolio.Constraints (bounds +
// blacklist + normalise-to-target-total idiom): the per-weight clip and
// renormalise step below follows the shape of the donor's
// applyConstraints/normalizeWeights pair, generalised from a single flat
// bound to the full class-cap sequential-scaling projection SPEC_FULL.md
// §4.5 requires. The donor's blacklist has no analogue here (no
// SPEC_FULL.md component excludes symbols by list) and is not carried.
package constraints

import (
	"math"

	"github.com/wonny/backtester/internal/bterrors"
	"github.com/wonny/backtester/internal/contracts"
)

const maxProjectionPasses = 20

// Validate checks a portfolio's weights against its constraints without
// modifying anything, per §4.5.
func Validate(p *contracts.Portfolio, c contracts.Constraints) error {
	var total float64
	for sym, w := range p.Holdings {
		if w < 0 || math.IsNaN(w) {
			return &bterrors.InvalidConfigError{Field: "weight", Message: "must be finite and >= 0: " + string(sym)}
		}
		if w < c.MinWeight-1e-12 || w > c.MaxWeight+1e-12 {
			return &bterrors.InvalidConfigError{Field: "weight", Message: "out of [min_weight, max_weight] bounds: " + string(sym)}
		}
		if c.MaxPerAsset > 0 && w > c.MaxPerAsset+1e-12 {
			return &bterrors.InvalidConfigError{Field: "weight", Message: "exceeds max_per_asset: " + string(sym)}
		}
		total += w
	}
	leverage := c.LeverageCap
	if leverage <= 0 {
		leverage = 1.0
	}
	if total > leverage+1e-9 {
		return &bterrors.InvalidConfigError{Field: "weights", Message: "sum exceeds leverage_cap"}
	}

	classTotals := map[contracts.AssetClass]float64{}
	for sym, w := range p.Holdings {
		class := c.AssetClassOf[sym]
		classTotals[class] += w
	}
	for class, total := range classTotals {
		cap, ok := c.ClassCaps[class]
		if !ok {
			continue
		}
		if total > cap.Max+1e-9 {
			return &bterrors.InvalidConfigError{Field: "class_cap", Message: "class exceeds max: " + string(class)}
		}
	}
	return nil
}

// Project clips each weight to [min_weight, max_weight] (and max_per_asset)
// and renormalises to sum <= leverage_cap, then enforces class caps via
// sequential scaling: for each class whose sum exceeds its cap, scale that
// class's weights to the cap and redistribute the freed mass
// proportionally to non-saturated classes, iterating to a fixed point or
// at most 20 passes (§4.5). Idempotent: Project(Project(w)) == Project(w)
// (property 9).
func Project(weights map[contracts.Symbol]float64, c contracts.Constraints) (map[contracts.Symbol]float64, error) {
	out := clipAndNormalise(weights, c)

	for pass := 0; pass < maxProjectionPasses; pass++ {
		changed, err := applyClassCapsOnce(out, c)
		if err != nil {
			return nil, err
		}
		if !changed {
			return out, nil
		}
	}

	if classCapsSatisfied(out, c) {
		return out, nil
	}
	return nil, &bterrors.InvalidConfigError{Field: "class_caps", Message: "infeasible after 20 projection passes"}
}

func clipAndNormalise(weights map[contracts.Symbol]float64, c contracts.Constraints) map[contracts.Symbol]float64 {
	maxW := c.MaxWeight
	if c.MaxPerAsset > 0 && c.MaxPerAsset < maxW {
		maxW = c.MaxPerAsset
	}
	out := make(map[contracts.Symbol]float64, len(weights))
	var total float64
	for sym, w := range weights {
		if w < c.MinWeight {
			w = c.MinWeight
		}
		if maxW > 0 && w > maxW {
			w = maxW
		}
		out[sym] = w
		total += w
	}

	leverage := c.LeverageCap
	if leverage <= 0 {
		leverage = 1.0
	}
	if total > leverage && total > 0 {
		factor := leverage / total
		for sym := range out {
			out[sym] *= factor
		}
	}
	return out
}

func applyClassCapsOnce(weights map[contracts.Symbol]float64, c contracts.Constraints) (bool, error) {
	if len(c.ClassCaps) == 0 {
		return false, nil
	}

	classTotals := map[contracts.AssetClass]float64{}
	for sym, w := range weights {
		class := c.AssetClassOf[sym]
		classTotals[class] += w
	}

	var excess float64
	saturated := map[contracts.AssetClass]bool{}
	for class, total := range classTotals {
		cap, ok := c.ClassCaps[class]
		if !ok || total <= cap.Max+1e-12 {
			continue
		}
		factor := 0.0
		if total > 0 {
			factor = cap.Max / total
		}
		for sym, w := range weights {
			if c.AssetClassOf[sym] == class {
				scaled := w * factor
				excess += w - scaled
				weights[sym] = scaled
			}
		}
		saturated[class] = true
	}

	if excess <= 1e-12 {
		return false, nil
	}

	// Redistribute freed mass proportionally to non-saturated classes.
	var nonSaturatedTotal float64
	for class, total := range classTotals {
		if !saturated[class] {
			nonSaturatedTotal += total
		}
	}
	if nonSaturatedTotal <= 0 {
		return true, nil // nothing to redistribute into; caller re-checks caps
	}
	for sym, w := range weights {
		class := c.AssetClassOf[sym]
		if saturated[class] {
			continue
		}
		share := w / nonSaturatedTotal
		weights[sym] = w + excess*share
	}
	return true, nil
}

func classCapsSatisfied(weights map[contracts.Symbol]float64, c contracts.Constraints) bool {
	classTotals := map[contracts.AssetClass]float64{}
	for sym, w := range weights {
		classTotals[c.AssetClassOf[sym]] += w
	}
	for class, total := range classTotals {
		if cap, ok := c.ClassCaps[class]; ok && total > cap.Max+1e-9 {
			return false
		}
	}
	return true
}
