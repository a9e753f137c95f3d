// Package main is the entry point for the nowplaying CLI/TUI.
package main

import (
	"os"

	"github.com/watchfire-io/nowplaying/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
