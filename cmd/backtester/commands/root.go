package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyConfigPath string
	verbose            bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "Historical portfolio backtesting engine",
	Long: `backtester

Runs a strategy (equal-weight, risk-parity, mean-variance) over a
historical price panel day by day: preselection, membership smoothing,
portfolio construction, constraint projection and transaction-cost
accounting, then reports performance metrics.

Usage:
  backtester [command]

Examples:
  backtester run --config run.yaml --prices prices.csv
  backtester compare --config run.yaml --prices prices.csv --strategy equal_weight --strategy risk_parity`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyConfigPath, "config", "", "run configuration YAML (falls back to BACKTESTER_STRATEGY_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug log level)")
}
