// Package cmd implements the nowplayingd command line.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagForeground bool
	flagPort       int
)

var rootCmd = &cobra.Command{
	Use:   "nowplayingd",
	Short: "Now-playing menu bar daemon",
	Long: `nowplayingd supervises the worker that talks to the music server and shows
the current track in the system tray.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(runOptions{foreground: flagForeground, port: flagPort})
	},
}

func init() {
	rootCmd.Flags().BoolVar(&flagForeground, "foreground", false, "Run in foreground without a system tray")
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "Control service port (0 for dynamic allocation)")
}

// Execute runs the daemon command line.
func Execute() error {
	return rootCmd.Execute()
}
