package contracts

// PerformanceMetrics is the pure, finalised summary of a completed backtest
// run, computed over the equity curve and the rebalance-event log.
type PerformanceMetrics struct {
	TotalReturn         float64
	AnnualisedReturn    float64
	AnnualisedVolatility float64
	Sharpe              float64
	Sortino             float64
	MaxDrawdown         float64 // negative
	Calmar              float64
	ExpectedShortfall95 float64
	WinRate             float64
	AvgWin              float64
	AvgLoss             float64
	Turnover            float64
	TotalCosts          float64
	RebalanceCount      int

	// Top5Concentration is an additive metric (SPEC_FULL.md §12), not part
	// of the distilled spec: the sum of the five largest realised weights
	// in the final rebalance event.
	Top5Concentration float64
}
