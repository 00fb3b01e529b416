package stratconfig

import (
	"fmt"
	"time"
)

// ValidationError reports a single invalid field. Callers stop the run on
// the first one returned by Validate.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a loaded Config against the constraints
// internal/backtest and its pipeline packages assume on entry. It stops at
// the first violation, checking field by field the sections meta, run,
// universe, constraints, rebalance, preselection, membership_policy,
// strategy and cost_model, in that order.
func Validate(cfg *Config) error {
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	if _, err := time.Parse("2006-01-02", cfg.Run.StartDate); err != nil {
		return ValidationError{"run.start_date", "must be YYYY-MM-DD"}
	}
	if _, err := time.Parse("2006-01-02", cfg.Run.EndDate); err != nil {
		return ValidationError{"run.end_date", "must be YYYY-MM-DD"}
	}
	if cfg.Run.InitialCapital <= 0 {
		return ValidationError{"run.initial_capital", "must be > 0"}
	}
	if cfg.Run.CacheCapacity < 0 {
		return ValidationError{"run.cache_capacity", "must be >= 0"}
	}
	if cfg.Run.StrategyLookback < 0 {
		return ValidationError{"run.strategy_lookback", "must be >= 0"}
	}

	if len(cfg.Universe.Symbols) == 0 {
		return ValidationError{"universe.symbols", "must not be empty"}
	}

	if err := validateConstraints(cfg.Constraints); err != nil {
		return err
	}

	switch cfg.Rebalance.Frequency {
	case "daily", "weekly", "monthly", "quarterly", "annual":
	default:
		return ValidationError{"rebalance.frequency", "must be one of daily, weekly, monthly, quarterly, annual"}
	}
	if cfg.Rebalance.OpportunisticBand < 0 || cfg.Rebalance.OpportunisticBand > 0.5 {
		return ValidationError{"rebalance.opportunistic_band", "must be in [0, 0.5]"}
	}

	if cfg.Preselection.Enabled {
		if err := validatePreselection(cfg.Preselection); err != nil {
			return err
		}
	}
	if cfg.MembershipPolicy.Enabled {
		if cfg.MembershipPolicy.BufferRank < 0 {
			return ValidationError{"membership_policy.buffer_rank", "must be >= 0"}
		}
		if cfg.MembershipPolicy.MinHoldingPeriods < 0 {
			return ValidationError{"membership_policy.min_holding_periods", "must be >= 0"}
		}
		if cfg.MembershipPolicy.MaxTurnover < 0 || cfg.MembershipPolicy.MaxTurnover > 1 {
			return ValidationError{"membership_policy.max_turnover", "must be in [0, 1]"}
		}
	}

	switch cfg.Strategy.Name {
	case "equal_weight", "risk_parity", "mean_variance":
	default:
		return ValidationError{"strategy.name", "must be one of equal_weight, risk_parity, mean_variance"}
	}

	if cfg.CostModel.CommissionPct < 0 {
		return ValidationError{"cost_model.commission_pct", "must be >= 0"}
	}
	if cfg.CostModel.MinCommission < 0 {
		return ValidationError{"cost_model.min_commission", "must be >= 0"}
	}
	if cfg.CostModel.SlippageBps < 0 {
		return ValidationError{"cost_model.slippage_bps", "must be >= 0"}
	}

	return nil
}

func validateConstraints(c ConstraintsConfig) error {
	if c.MinWeight < 0 {
		return ValidationError{"constraints.min_weight", "must be >= 0"}
	}
	if c.MaxWeight <= 0 || c.MaxWeight > 1 {
		return ValidationError{"constraints.max_weight", "must be in (0, 1]"}
	}
	if c.MinWeight > c.MaxWeight {
		return ValidationError{"constraints.min_weight", "must be <= max_weight"}
	}
	if c.MaxPerAsset <= 0 || c.MaxPerAsset > 1 {
		return ValidationError{"constraints.max_per_asset", "must be in (0, 1]"}
	}
	if c.LeverageCap <= 0 {
		return ValidationError{"constraints.leverage_cap", "must be > 0"}
	}
	for name, cc := range c.ClassCaps {
		if cc.Min < 0 {
			return ValidationError{"constraints.class_caps." + name + ".min", "must be >= 0"}
		}
		if cc.Max < cc.Min {
			return ValidationError{"constraints.class_caps." + name + ".max", "must be >= min"}
		}
	}
	return nil
}

func validatePreselection(p Preselection) error {
	switch p.Method {
	case "momentum", "low_volatility", "combined":
	default:
		return ValidationError{"preselection.method", "must be one of momentum, low_volatility, combined"}
	}
	if p.Lookback <= 0 {
		return ValidationError{"preselection.lookback", "must be > 0"}
	}
	if p.Skip < 0 || p.Skip >= p.Lookback {
		return ValidationError{"preselection.skip", "must be >= 0 and < lookback"}
	}
	if p.MinPeriods < 0 || p.MinPeriods > p.Lookback {
		return ValidationError{"preselection.min_periods", "must be >= 0 and <= lookback"}
	}
	if p.TopK <= 0 {
		return ValidationError{"preselection.top_k", "must be > 0"}
	}
	if p.Method == "combined" {
		if p.MomentumWeight < 0 || p.LowVolWeight < 0 {
			return ValidationError{"preselection.momentum_weight", "weights must be >= 0"}
		}
		if p.MomentumWeight == 0 && p.LowVolWeight == 0 {
			return ValidationError{"preselection.momentum_weight", "weights must not both be zero"}
		}
	}
	return nil
}
