package main

import (
	"os"

	"github.com/railsup-labs/railsup-cli/internal/adapters/driving/cli"
	"github.com/railsup-labs/railsup-cli/internal/logger"
)

func main() {
	if err := cli.Wire(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
