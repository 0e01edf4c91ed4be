// Package main provides the leaprun command.
package main

import (
	"os"

	"github.com/leapstack-labs/leaprun/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
