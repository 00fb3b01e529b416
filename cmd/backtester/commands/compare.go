package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/backtester/internal/backtest"
	"github.com/wonny/backtester/internal/strategy"
)

var compareStrategies []string

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run the same window under two or more strategies concurrently",
	Long: `Runs the configured window under each --strategy, in parallel, and
prints a side-by-side metrics table.

Example:
  backtester compare --config run.yaml --prices prices.csv --strategy equal_weight --strategy risk_parity`,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringArrayVar(&compareStrategies, "strategy", nil, "strategy to compare (repeatable): equal_weight, risk_parity, mean_variance")
}

func runCompare(cmd *cobra.Command, args []string) error {
	if len(compareStrategies) < 2 {
		return fmt.Errorf("compare needs at least two --strategy flags")
	}

	runCfg, prices, returns, log, err := loadRunInputs()
	if err != nil {
		return err
	}

	btCfg, err := runCfg.ToBacktestConfig()
	if err != nil {
		return fmt.Errorf("build backtest config: %w", err)
	}
	cons := runCfg.ToConstraints()
	universe := runCfg.Symbols()

	strats := make([]strategy.Strategy, 0, len(compareStrategies))
	for _, name := range compareStrategies {
		strat, err := buildStrategy(name, runCfg)
		if err != nil {
			return err
		}
		strats = append(strats, strat)
	}

	results := backtest.CompareRunner(cmd.Context(), log, btCfg, strats, cons, universe, prices, returns)

	fmt.Printf("\n%-16s %10s %10s %10s %10s %10s\n", "Strategy", "Total Ret", "Sharpe", "MaxDD", "Turnover", "Costs")
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("%-16s FAILED: %v\n", r.StrategyName, r.Err)
			continue
		}
		fmt.Printf("%-16s %9.2f%% %10.2f %9.2f%% %10.2f %10.2f\n",
			r.StrategyName,
			r.Metrics.TotalReturn*100,
			r.Metrics.Sharpe,
			r.Metrics.MaxDrawdown*100,
			r.Metrics.Turnover,
			r.Metrics.TotalCosts,
		)
	}

	return nil
}
