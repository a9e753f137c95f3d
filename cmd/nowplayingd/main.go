// Package main is the entry point for the nowplayingd daemon.
package main

import (
	"os"

	"github.com/watchfire-io/nowplaying/internal/daemon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
