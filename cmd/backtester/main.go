package main

import (
	"os"

	"github.com/wonny/backtester/cmd/backtester/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
