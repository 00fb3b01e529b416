package contracts

import "time"

// AssetClass groups symbols for class-cap constraint purposes.
type AssetClass string

// Portfolio is an immutable snapshot of target holdings produced by a
// strategy plugin. Invariants: all weights >= 0, sum(weights) <= 1,
// symbol set is a subset of the universe at creation time.
type Portfolio struct {
	Holdings      map[Symbol]Weight
	StrategyTag   string
	ConstraintRef string
	CreatedAt     time.Time
}

// TotalWeight sums the portfolio's holdings.
func (p *Portfolio) TotalWeight() float64 {
	var total float64
	for _, w := range p.Holdings {
		total += w
	}
	return total
}

// SortedSymbols returns the portfolio's symbols in deterministic order.
func (p *Portfolio) SortedSymbols() []Symbol {
	syms := make([]Symbol, 0, len(p.Holdings))
	for s := range p.Holdings {
		syms = append(syms, s)
	}
	return SortedSymbols(syms)
}

// ClassCap is a (min, max) weight bound for one asset class.
type ClassCap struct {
	Min float64
	Max float64
}

// Constraints bounds a portfolio's weights.
type Constraints struct {
	MinWeight    float64
	MaxWeight    float64
	MaxPerAsset  float64
	ClassCaps    map[AssetClass]ClassCap
	LeverageCap  float64 // default 1.0
	AssetClassOf map[Symbol]AssetClass
}

// DefaultConstraints returns a permissive but well-formed constraint set.
func DefaultConstraints() Constraints {
	return Constraints{
		MinWeight:   0,
		MaxWeight:   1,
		MaxPerAsset: 1,
		ClassCaps:   map[AssetClass]ClassCap{},
		LeverageCap: 1.0,
	}
}

// RebalanceFrequency names the scheduled rebalance cadence.
type RebalanceFrequency string

const (
	RebalanceDaily     RebalanceFrequency = "daily"
	RebalanceWeekly    RebalanceFrequency = "weekly"
	RebalanceMonthly   RebalanceFrequency = "monthly"
	RebalanceQuarterly RebalanceFrequency = "quarterly"
	RebalanceAnnual    RebalanceFrequency = "annual"
)

// PreselectionConfig parameterises the Preselector (internal/preselect).
type PreselectionConfig struct {
	Enabled  bool
	Method   string // "momentum", "low_volatility", "combined"
	Lookback int    // trading days
	Skip     int    // momentum only
	MinPeriods int
	TopK     int
	MomentumWeight   float64 // combined only
	LowVolWeight     float64 // combined only
}

// MembershipPolicyConfig parameterises internal/membership.
type MembershipPolicyConfig struct {
	Enabled           bool
	BufferRank        int
	MinHoldingPeriods int
	MaxTurnover       float64
}

// CostModelParams parameterises internal/costmodel.
type CostModelParams struct {
	CommissionPct float64
	MinCommission float64
	SlippageBps   float64
}

// BacktestConfig is the top-level run configuration consumed by
// internal/backtest.Engine.Run.
type BacktestConfig struct {
	StartDate              time.Time
	EndDate                time.Time
	InitialCapital         float64
	RebalanceFrequency     RebalanceFrequency
	OpportunisticBand      float64 // 0 disables the trigger
	ForceRebalanceOnDrift  bool
	SkipFailedRebalance    bool
	RiskFreeRate           float64 // annualised, default 0
	RiskAversion           float64 // mean-variance gamma, default 1.0
	CacheCapacity          int     // RSC, default 1000
	StrategyLookback       int     // trading days of history a strategy's Build window spans, default 252
	CostModel              CostModelParams
	Preselection           *PreselectionConfig
	MembershipPolicy       *MembershipPolicyConfig
}

// Holdings is the engine's mutable share-count state. ShareCount is a
// fractional decimal; cash is tracked separately by the engine.
type Holdings map[Symbol]float64

// TriggerKind identifies why a rebalance fired.
type TriggerKind string

const (
	TriggerScheduled    TriggerKind = "SCHEDULED"
	TriggerOpportunistic TriggerKind = "OPPORTUNISTIC"
	TriggerForced       TriggerKind = "FORCED"
)

// Trade is one executed order inside a RebalanceEvent.
type Trade struct {
	Symbol     Symbol
	DeltaShares float64
	TradeValue float64
	Cost       float64
}

// RebalanceEvent records one rebalance decision and its execution.
type RebalanceEvent struct {
	Date                time.Time
	Trigger             TriggerKind
	TargetWeights       map[Symbol]Weight
	RealisedWeights     map[Symbol]Weight
	Trades              []Trade
	TotalCost           float64
	PortfolioValueBefore float64
	PortfolioValueAfter  float64
	ScalingFactor       float64 // 1.0 unless cash-shortfall scaling applied; 0 on a failed event
	Failed              bool    // true when SkipFailedRebalance kept prior weights
	FailureReason       string
}

// EquityPoint is one (date, value) sample of the equity curve.
type EquityPoint struct {
	Date   time.Time
	Equity float64
	Return float64 // simple return over the prior equity point, 0 on day one
}
