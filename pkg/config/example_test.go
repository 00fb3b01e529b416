package config_test

import (
	"fmt"

	"github.com/wonny/backtester/pkg/config"
)

// Example demonstrates how to use the config package.
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Environment: %s\n", cfg.Env)
	fmt.Printf("Price file: %s\n", cfg.PriceFile)
	fmt.Printf("RSC cache capacity: %d\n", cfg.CacheCapacity)
}
