package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/watchfire-io/nowplaying/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live view of the current track and zones",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("watch needs an interactive terminal; use `nowplaying status` instead")
		}
		client, err := connectDaemon()
		if err != nil {
			return err
		}
		defer client.Close()
		return tui.Run(client)
	},
}
