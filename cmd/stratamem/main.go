// Package main is the entry point for the stratamem CLI.
package main

import (
	"os"

	"github.com/stratamem/stratamem/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
