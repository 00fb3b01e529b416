package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/backtester/internal/backtest"
	"github.com/wonny/backtester/internal/contracts"
)

var (
	jsonOutputPath string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run a single backtest",
		Long: `Runs one strategy over the configured window and prints a
summary report.

Example:
  backtester run --config run.yaml --prices prices.csv
  backtester run --config run.yaml --prices prices.csv --output result.json`,
		RunE: runRun,
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&jsonOutputPath, "output", "", "write the equity curve, events and metrics to this JSON file")
}

func runRun(cmd *cobra.Command, args []string) error {
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

	strat, err := buildStrategy(runCfg.Strategy.Name, runCfg)
	if err != nil {
		return err
	}

	fmt.Printf("\nPeriod: %s ~ %s\n", btCfg.StartDate.Format("2006-01-02"), btCfg.EndDate.Format("2006-01-02"))
	fmt.Printf("Initial capital: %.2f\n", btCfg.InitialCapital)
	fmt.Printf("Strategy: %s\n", strat.Name())
	fmt.Printf("Rebalance: %s\n\n", btCfg.RebalanceFrequency)

	engine := backtest.New(log)
	equity, events, metrics, err := engine.Run(cmd.Context(), btCfg, strat, cons, universe, prices, returns)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printReport(strat.Name(), equity, events, metrics)

	if jsonOutputPath != "" {
		if err := writeJSONReport(jsonOutputPath, equity, events, metrics); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}

func writeJSONReport(path string, equity []contracts.EquityPoint, events []contracts.RebalanceEvent, m contracts.PerformanceMetrics) error {
	payload := struct {
		Equity  []contracts.EquityPoint     `json:"equity"`
		Events  []contracts.RebalanceEvent  `json:"events"`
		Metrics contracts.PerformanceMetrics `json:"metrics"`
	}{Equity: equity, Events: events, Metrics: m}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printReport(name string, equity []contracts.EquityPoint, events []contracts.RebalanceEvent, m contracts.PerformanceMetrics) {
	fmt.Println("Backtest completed: " + name)
	fmt.Println(strings.Repeat("=", 60))

	fmt.Println("\nSummary")
	fmt.Printf("Trading days: %d\n", len(equity))
	fmt.Printf("Rebalances:   %d\n", m.RebalanceCount)

	fmt.Println("\nPerformance")
	fmt.Printf("Total return:       %+.2f%%\n", m.TotalReturn*100)
	fmt.Printf("Annualised return:  %+.2f%%\n", m.AnnualisedReturn*100)
	fmt.Printf("Annualised vol:     %.2f%%\n", m.AnnualisedVolatility*100)

	fmt.Println("\nRisk metrics")
	fmt.Printf("Sharpe:   %.2f %s\n", m.Sharpe, sharpeBadge(m.Sharpe))
	fmt.Printf("Sortino:  %.2f\n", m.Sortino)
	fmt.Printf("Max DD:   %.2f%% %s\n", m.MaxDrawdown*100, drawdownBadge(m.MaxDrawdown))
	fmt.Printf("Calmar:   %.2f\n", m.Calmar)
	fmt.Printf("CVaR 95:  %.2f%%\n", m.ExpectedShortfall95*100)

	fmt.Println("\nTrading metrics")
	fmt.Printf("Win rate:      %.1f%%\n", m.WinRate*100)
	fmt.Printf("Turnover:      %.2f\n", m.Turnover)
	fmt.Printf("Total costs:   %.2f\n", m.TotalCosts)
	fmt.Printf("Top-5 conc.:   %.1f%%\n", m.Top5Concentration*100)

	fmt.Println("\nEquity curve (last 10 days)")
	start := len(equity) - 10
	if start < 0 {
		start = 0
	}
	for _, pt := range equity[start:] {
		fmt.Printf("%s: %.2f (%+.2f%%)\n", pt.Date.Format("2006-01-02"), pt.Equity, pt.Return*100)
	}

	if failed := countFailed(events); failed > 0 {
		fmt.Printf("\n%d rebalance(s) failed and were skipped (prior weights kept).\n", failed)
	}
}

func sharpeBadge(s float64) string {
	switch {
	case s > 3.0:
		return "(excellent)"
	case s > 2.0:
		return "(good)"
	case s > 1.0:
		return "(fair)"
	default:
		return "(poor)"
	}
}

func drawdownBadge(d float64) string {
	d = -d // MaxDrawdown is non-positive; grade its magnitude
	switch {
	case d < 0.10:
		return "(excellent)"
	case d < 0.20:
		return "(good)"
	case d < 0.30:
		return "(fair)"
	default:
		return "(high)"
	}
}

func countFailed(events []contracts.RebalanceEvent) int {
	n := 0
	for _, ev := range events {
		if ev.Failed {
			n++
		}
	}
	return n
}
