// Package stratconfig defines the YAML-shaped run configuration consumed
// by cmd/backtester: the universe, constraint, preselection, membership,
// strategy-selection, cost-model and rebalance parameters a single
// backtest run needs, loaded once and validated before internal/backtest
// ever sees them.
//
// Grounded on the donor's internal/strategyconfig package: the same
// Meta/sectioned-struct shape, the same yaml.v3 strict-decode-then-validate
// loader, and the same ValidationError{Field, Message} failure mode — the
// donor's Korean-equities six-signal ranking config (universe filters by
// KRX flag, S1-S6 screening stages, tiered holdings) is replaced by this
// module's preselection/membership/strategy/cost fields (§4 of the run
// spec), but the package's shape and idiom are unchanged.
package stratconfig

import (
	"time"

	"github.com/wonny/backtester/internal/contracts"
)

// Meta identifies a configuration and its provenance.
type Meta struct {
	StrategyID string `yaml:"strategy_id"`
	Version    string `yaml:"version"`
}

// Universe selects and filters the eligible symbol set.
type Universe struct {
	Symbols     []string `yaml:"symbols"`
	ExcludeList []string `yaml:"exclude_list"`
}

// ConstraintsConfig mirrors contracts.Constraints in YAML-friendly form.
type ConstraintsConfig struct {
	MinWeight   float64               `yaml:"min_weight"`
	MaxWeight   float64               `yaml:"max_weight"`
	MaxPerAsset float64               `yaml:"max_per_asset"`
	LeverageCap float64               `yaml:"leverage_cap"`
	ClassCaps   map[string]ClassCap   `yaml:"class_caps"`
	AssetClass  map[string]string     `yaml:"asset_class"`
}

// ClassCap is a (min, max) bound for one asset class.
type ClassCap struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Preselection mirrors contracts.PreselectionConfig.
type Preselection struct {
	Enabled        bool    `yaml:"enabled"`
	Method         string  `yaml:"method"`
	Lookback       int     `yaml:"lookback"`
	Skip           int     `yaml:"skip"`
	MinPeriods     int     `yaml:"min_periods"`
	TopK           int     `yaml:"top_k"`
	MomentumWeight float64 `yaml:"momentum_weight"`
	LowVolWeight   float64 `yaml:"low_vol_weight"`
}

// MembershipPolicy mirrors contracts.MembershipPolicyConfig.
type MembershipPolicy struct {
	Enabled           bool    `yaml:"enabled"`
	BufferRank        int     `yaml:"buffer_rank"`
	MinHoldingPeriods int     `yaml:"min_holding_periods"`
	MaxTurnover       float64 `yaml:"max_turnover"`
}

// Strategy selects a strategy plugin and its parameters.
type Strategy struct {
	Name         string  `yaml:"name"` // "equal_weight", "risk_parity", "mean_variance"
	RiskAversion float64 `yaml:"risk_aversion"`
	MaxIterations int    `yaml:"max_iterations"`
}

// CostModel mirrors contracts.CostModelParams.
type CostModel struct {
	CommissionPct float64 `yaml:"commission_pct"`
	MinCommission float64 `yaml:"min_commission"`
	SlippageBps   float64 `yaml:"slippage_bps"`
}

// Rebalance carries the scheduling and trigger parameters of
// contracts.BacktestConfig.
type Rebalance struct {
	Frequency             string  `yaml:"frequency"` // "daily", "weekly", "monthly", "quarterly", "annual"
	OpportunisticBand     float64 `yaml:"opportunistic_band"`
	ForceRebalanceOnDrift bool    `yaml:"force_rebalance_on_drift"`
	SkipFailedRebalance   bool    `yaml:"skip_failed_rebalance"`
}

// Run carries the run window, capital and risk-free rate.
type Run struct {
	StartDate      string  `yaml:"start_date"` // RFC3339 date, "2006-01-02"
	EndDate        string  `yaml:"end_date"`
	InitialCapital float64 `yaml:"initial_capital"`
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	CacheCapacity  int     `yaml:"cache_capacity"`
	StrategyLookback int   `yaml:"strategy_lookback"`
}

// Config is the full YAML document cmd/backtester loads.
type Config struct {
	Meta             Meta             `yaml:"meta"`
	Run              Run              `yaml:"run"`
	Universe         Universe         `yaml:"universe"`
	Constraints      ConstraintsConfig `yaml:"constraints"`
	Preselection     Preselection     `yaml:"preselection"`
	MembershipPolicy MembershipPolicy `yaml:"membership_policy"`
	Strategy         Strategy         `yaml:"strategy"`
	CostModel        CostModel        `yaml:"cost_model"`
	Rebalance        Rebalance        `yaml:"rebalance"`
}

// ToBacktestConfig converts the loaded YAML document into the
// contracts.BacktestConfig internal/backtest.Engine.Run expects. Callers
// must call Validate before this — ToBacktestConfig does not re-check
// field values.
func (c *Config) ToBacktestConfig() (contracts.BacktestConfig, error) {
	start, err := time.Parse("2006-01-02", c.Run.StartDate)
	if err != nil {
		return contracts.BacktestConfig{}, err
	}
	end, err := time.Parse("2006-01-02", c.Run.EndDate)
	if err != nil {
		return contracts.BacktestConfig{}, err
	}

	cfg := contracts.BacktestConfig{
		StartDate:             start,
		EndDate:                end,
		InitialCapital:         c.Run.InitialCapital,
		RebalanceFrequency:     contracts.RebalanceFrequency(c.Rebalance.Frequency),
		OpportunisticBand:      c.Rebalance.OpportunisticBand,
		ForceRebalanceOnDrift:  c.Rebalance.ForceRebalanceOnDrift,
		SkipFailedRebalance:    c.Rebalance.SkipFailedRebalance,
		RiskFreeRate:           c.Run.RiskFreeRate,
		RiskAversion:           c.Strategy.RiskAversion,
		CacheCapacity:          c.Run.CacheCapacity,
		StrategyLookback:       c.Run.StrategyLookback,
		CostModel: contracts.CostModelParams{
			CommissionPct: c.CostModel.CommissionPct,
			MinCommission: c.CostModel.MinCommission,
			SlippageBps:   c.CostModel.SlippageBps,
		},
	}

	if c.Preselection.Enabled {
		cfg.Preselection = &contracts.PreselectionConfig{
			Enabled:        true,
			Method:         c.Preselection.Method,
			Lookback:       c.Preselection.Lookback,
			Skip:           c.Preselection.Skip,
			MinPeriods:     c.Preselection.MinPeriods,
			TopK:           c.Preselection.TopK,
			MomentumWeight: c.Preselection.MomentumWeight,
			LowVolWeight:   c.Preselection.LowVolWeight,
		}
	}
	if c.MembershipPolicy.Enabled {
		cfg.MembershipPolicy = &contracts.MembershipPolicyConfig{
			Enabled:           true,
			BufferRank:        c.MembershipPolicy.BufferRank,
			MinHoldingPeriods: c.MembershipPolicy.MinHoldingPeriods,
			MaxTurnover:       c.MembershipPolicy.MaxTurnover,
		}
	}

	return cfg, nil
}

// ToConstraints converts the loaded YAML document into contracts.Constraints.
func (c *Config) ToConstraints() contracts.Constraints {
	classCaps := make(map[contracts.AssetClass]contracts.ClassCap, len(c.Constraints.ClassCaps))
	for name, cc := range c.Constraints.ClassCaps {
		classCaps[contracts.AssetClass(name)] = contracts.ClassCap{Min: cc.Min, Max: cc.Max}
	}
	assetClassOf := make(map[contracts.Symbol]contracts.AssetClass, len(c.Constraints.AssetClass))
	for sym, class := range c.Constraints.AssetClass {
		assetClassOf[contracts.Symbol(sym)] = contracts.AssetClass(class)
	}
	return contracts.Constraints{
		MinWeight:    c.Constraints.MinWeight,
		MaxWeight:    c.Constraints.MaxWeight,
		MaxPerAsset:  c.Constraints.MaxPerAsset,
		ClassCaps:    classCaps,
		LeverageCap:  c.Constraints.LeverageCap,
		AssetClassOf: assetClassOf,
	}
}

// Symbols returns the configured universe as contracts.Symbol, excluding
// any symbol named in ExcludeList.
func (c *Config) Symbols() []contracts.Symbol {
	excluded := make(map[string]bool, len(c.Universe.ExcludeList))
	for _, s := range c.Universe.ExcludeList {
		excluded[s] = true
	}
	out := make([]contracts.Symbol, 0, len(c.Universe.Symbols))
	for _, s := range c.Universe.Symbols {
		if excluded[s] {
			continue
		}
		out = append(out, contracts.Symbol(s))
	}
	return out
}
