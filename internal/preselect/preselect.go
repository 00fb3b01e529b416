// Package preselect implements the Preselector (PS): ranks the eligible
// universe by a factor (or a weighted combination of z-scored factors) and
// returns the top-K symbols, deterministically.
//
// Grounded on the donor's internal/selection.Ranker.Rank (compute a score
// per symbol, sort descending, assign ranks, log the winner) — reshaped
// from the donor's six-signal weighted sum over a fixed-universe
// SignalSet to this module's momentum/low_volatility/combined methods
// over a contracts.ReturnMatrix window (§4.2), including factor-value
// z-scoring via gonum/stat (SPEC_FULL.md §11) and per-factor attribution
// (SPEC_FULL.md §12, contracts.FactorSnapshot), which mirrors the donor's
// RankedStock.Scores breakdown.
package preselect

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/wonny/backtester/internal/bterrors"
	"github.com/wonny/backtester/internal/contracts"
	"github.com/wonny/backtester/internal/factors"
	"github.com/wonny/backtester/pkg/logger"
)

// Method names recognised by Config.Method.
const (
	MethodMomentum     = "momentum"
	MethodLowVolatility = "low_volatility"
	MethodCombined     = "combined"
)

// Selector implements the Preselector.
type Selector struct {
	cfg    contracts.PreselectionConfig
	logger *logger.Logger
}

// New validates cfg and builds a Selector. Illegal parameters (skip >=
// lookback, min_periods > lookback, both combined weights zero or
// negative) raise InvalidConfig immediately, per §4.2.
func New(cfg contracts.PreselectionConfig, log *logger.Logger) (*Selector, error) {
	if cfg.Skip >= cfg.Lookback {
		return nil, &bterrors.InvalidConfigError{Field: "preselection.skip", Message: "must be < lookback"}
	}
	if cfg.MinPeriods > cfg.Lookback {
		return nil, &bterrors.InvalidConfigError{Field: "preselection.min_periods", Message: "must be <= lookback"}
	}
	if cfg.Method == MethodCombined {
		if cfg.MomentumWeight < 0 || cfg.LowVolWeight < 0 {
			return nil, &bterrors.InvalidConfigError{Field: "preselection.weights", Message: "must be >= 0"}
		}
		if cfg.MomentumWeight == 0 && cfg.LowVolWeight == 0 {
			return nil, &bterrors.InvalidConfigError{Field: "preselection.weights", Message: "must not both be zero"}
		}
	}
	return &Selector{cfg: cfg, logger: log}, nil
}

// TopK returns the configured top-K cutoff.
func (s *Selector) TopK() int { return s.cfg.TopK }

// Select ranks eligible universe symbols at asofRow and returns the top-K,
// deterministic and idempotent. Never raises on data sparsity: returns a
// shorter (possibly empty) list instead.
func (s *Selector) Select(asofRow int, eligible []contracts.Symbol, returns *contracts.ReturnMatrix) []contracts.Symbol {
	ranked, finite := s.Rank(asofRow, eligible, returns)

	topK := s.cfg.TopK
	if finite < topK {
		topK = finite
	}

	if s.logger != nil && topK > 0 {
		s.logger.WithFields(map[string]interface{}{
			"method": s.cfg.Method,
			"top_k":  topK,
			"top":    string(ranked[0]),
		}).Debug("preselection completed")
	}

	return ranked[:topK]
}

// Rank returns every eligible symbol sorted by descending score (the same
// order Select truncates), plus the count of symbols with a finite score.
// internal/membership uses the full ordering to resolve its rank buffer.
func (s *Selector) Rank(asofRow int, eligible []contracts.Symbol, returns *contracts.ReturnMatrix) ([]contracts.Symbol, int) {
	snapshots := s.scoreFactors(asofRow, eligible, returns)
	combined := s.combine(eligible, snapshots)

	ranked := make([]contracts.Symbol, len(eligible))
	copy(ranked, eligible)
	sort.Slice(ranked, func(i, j int) bool {
		si, sj := combined[ranked[i]], combined[ranked[j]]
		if si == sj {
			return ranked[i] < ranked[j] // lexicographic tie-break
		}
		// NaN (no score) sorts last regardless of numeric comparison.
		if math.IsNaN(si) {
			return false
		}
		if math.IsNaN(sj) {
			return true
		}
		return si > sj
	})

	finite := 0
	for _, sym := range ranked {
		if !math.IsNaN(combined[sym]) {
			finite++
		}
	}
	return ranked, finite
}

// Snapshot returns the per-factor FactorSnapshot breakdown for the given
// asof and universe (SPEC_FULL.md §12 factor-attribution supplement).
func (s *Selector) Snapshot(asofRow int, eligible []contracts.Symbol, returns *contracts.ReturnMatrix, asof time.Time) []contracts.FactorSnapshot {
	var out []contracts.FactorSnapshot
	mom := factors.Momentum(asofRow, eligible, returns, s.cfg.Lookback, s.cfg.Skip, s.cfg.MinPeriods)
	out = append(out, snapshotFrom("momentum", asof, mom))
	lv := factors.LowVol(asofRow, eligible, returns, s.cfg.Lookback, s.cfg.MinPeriods)
	out = append(out, snapshotFrom("low_volatility", asof, lv))
	return out
}

func (s *Selector) scoreFactors(asofRow int, eligible []contracts.Symbol, returns *contracts.ReturnMatrix) map[string]map[contracts.Symbol]float64 {
	out := make(map[string]map[contracts.Symbol]float64, 2)
	out["momentum"] = factors.Momentum(asofRow, eligible, returns, s.cfg.Lookback, s.cfg.Skip, s.cfg.MinPeriods)
	out["low_volatility"] = factors.LowVol(asofRow, eligible, returns, s.cfg.Lookback, s.cfg.MinPeriods)
	return out
}

func (s *Selector) combine(eligible []contracts.Symbol, snapshots map[string]map[contracts.Symbol]float64) map[contracts.Symbol]float64 {
	switch s.cfg.Method {
	case MethodMomentum:
		return snapshots["momentum"]
	case MethodLowVolatility:
		return snapshots["low_volatility"]
	default: // combined
		momZ := zScore(eligible, snapshots["momentum"])
		lvZ := zScore(eligible, snapshots["low_volatility"])
		totalW := s.cfg.MomentumWeight + s.cfg.LowVolWeight

		out := make(map[contracts.Symbol]float64, len(eligible))
		for _, sym := range eligible {
			mz, lz := momZ[sym], lvZ[sym]
			if math.IsNaN(mz) && math.IsNaN(lz) {
				out[sym] = math.NaN()
				continue
			}
			if math.IsNaN(mz) {
				mz = 0
			}
			if math.IsNaN(lz) {
				lz = 0
			}
			out[sym] = (s.cfg.MomentumWeight*mz + s.cfg.LowVolWeight*lz) / totalW
		}
		return out
	}
}

// zScore standardises factor values across the eligible universe, ignoring
// NaN for mean/std (gonum/stat.Mean/StdDev over the finite subset), then
// replaces NaN with (min finite z) - 1 so they always sort last.
func zScore(eligible []contracts.Symbol, values map[contracts.Symbol]float64) map[contracts.Symbol]float64 {
	finite := make([]float64, 0, len(eligible))
	for _, sym := range eligible {
		v := values[sym]
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}

	out := make(map[contracts.Symbol]float64, len(eligible))
	if len(finite) == 0 {
		for _, sym := range eligible {
			out[sym] = math.NaN()
		}
		return out
	}

	mean := stat.Mean(finite, nil)
	std := stat.StdDev(finite, nil)

	minZ := math.Inf(1)
	for _, sym := range eligible {
		v := values[sym]
		if math.IsNaN(v) {
			continue
		}
		var z float64
		if std == 0 {
			z = 0
		} else {
			z = (v - mean) / std
		}
		out[sym] = z
		if z < minZ {
			minZ = z
		}
	}
	for _, sym := range eligible {
		if _, ok := out[sym]; !ok {
			out[sym] = minZ - 1
		}
	}
	return out
}

func snapshotFrom(name string, asof time.Time, values map[contracts.Symbol]float64) contracts.FactorSnapshot {
	ranks := rankOf(values)
	return contracts.FactorSnapshot{
		Asof:       asof,
		FactorName: name,
		Values:     values,
		Ranks:      ranks,
	}
}

func rankOf(values map[contracts.Symbol]float64) map[contracts.Symbol]uint32 {
	syms := make([]contracts.Symbol, 0, len(values))
	for s := range values {
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool {
		vi, vj := values[syms[i]], values[syms[j]]
		if vi == vj {
			return syms[i] < syms[j]
		}
		if math.IsNaN(vi) {
			return false
		}
		if math.IsNaN(vj) {
			return true
		}
		return vi > vj
	})
	ranks := make(map[contracts.Symbol]uint32, len(syms))
	for i, s := range syms {
		ranks[s] = uint32(i + 1)
	}
	return ranks
}
