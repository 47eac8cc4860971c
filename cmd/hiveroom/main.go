// Package main is the entry point for the hiveroom CLI.
package main

import (
	"os"

	"github.com/hiveroom/hiveroom/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
