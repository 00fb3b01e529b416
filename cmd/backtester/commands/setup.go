package commands

import (
	"fmt"

	"github.com/wonny/backtester/internal/contracts"
	"github.com/wonny/backtester/internal/marketdata"
	"github.com/wonny/backtester/internal/strategy"
	"github.com/wonny/backtester/internal/stratconfig"
	"github.com/wonny/backtester/pkg/config"
	"github.com/wonny/backtester/pkg/logger"
)

var (
	pricesFlag string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&pricesFlag, "prices", "", "wide-format price CSV (overrides BACKTESTER_PRICE_FILE)")
}

// loadRunInputs loads the run configuration, price panel and logger shared
// by every subcommand.
func loadRunInputs() (*stratconfig.Config, *contracts.PriceMatrix, *contracts.ReturnMatrix, *logger.Logger, error) {
	envCfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		envCfg.LogLevel = "debug"
	}
	log := logger.New(envCfg)

	runConfigPath := strategyConfigPath
	if runConfigPath == "" {
		runConfigPath = envCfg.StrategyConfigPath
	}
	if runConfigPath == "" {
		return nil, nil, nil, nil, fmt.Errorf("no run configuration: pass --config or set BACKTESTER_STRATEGY_CONFIG")
	}
	runCfg, err := stratconfig.Load(runConfigPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load run config: %w", err)
	}

	priceFile := pricesFlag
	if priceFile == "" {
		priceFile = envCfg.PriceFile
	}
	if priceFile == "" {
		return nil, nil, nil, nil, fmt.Errorf("no price file: pass --prices or set BACKTESTER_PRICE_FILE")
	}
	prices, err := marketdata.LoadPriceMatrix(priceFile)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load prices: %w", err)
	}
	returns := marketdata.DeriveReturnMatrix(prices)

	return runCfg, prices, returns, log, nil
}

// buildStrategy constructs the named strategy plugin with the parameters
// carried by the run config.
func buildStrategy(name string, runCfg *stratconfig.Config) (strategy.Strategy, error) {
	switch name {
	case "equal_weight":
		return strategy.EqualWeight{}, nil
	case "risk_parity":
		maxIter := runCfg.Strategy.MaxIterations
		if maxIter <= 0 {
			maxIter = 100
		}
		return strategy.RiskParity{MaxIterations: maxIter}, nil
	case "mean_variance":
		riskAversion := runCfg.Strategy.RiskAversion
		if riskAversion <= 0 {
			riskAversion = 1.0
		}
		return strategy.MeanVariance{RiskAversion: riskAversion}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
