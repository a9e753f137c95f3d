package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/watchfire-io/nowplaying/internal/config"
	"github.com/watchfire-io/nowplaying/internal/daemon/server"
	"github.com/watchfire-io/nowplaying/internal/models"
)

var flagStatusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current track and connection",
	RunE:  runStatus,
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List zones known to the daemon",
	RunE:  runZones,
}

var selectCmd = &cobra.Command{
	Use:   "select <zone-id>|auto",
	Short: "Pin the menu bar to a zone, or return to automatic",
	Args:  cobra.ExactArgs(1),
	RunE:  runSelect,
}

func init() {
	statusCmd.Flags().BoolVar(&flagStatusJSON, "json", false, "Print the raw state as JSON")
}

// fetchState reads the daemon state, with a friendly error when it is down.
func fetchState() (models.StatusView, error) {
	client, err := connectDaemon()
	if err != nil {
		if errors.Is(err, config.ErrDaemonNotRunning) {
			return models.StatusView{}, fmt.Errorf("%w (start it with `nowplaying daemon start`)", err)
		}
		return models.StatusView{}, err
	}
	defer client.Close()

	ctx, cancel := rpcContext()
	defer cancel()
	return client.GetState(ctx)
}

func runStatus(cmd *cobra.Command, args []string) error {
	v, err := fetchState()
	if err != nil {
		return err
	}
	if flagStatusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Print(formatStatus(v))
	return nil
}

func runZones(cmd *cobra.Command, args []string) error {
	v, err := fetchState()
	if err != nil {
		return err
	}
	fmt.Print(formatZones(v))
	return nil
}

func runSelect(cmd *cobra.Command, args []string) error {
	id := args[0]
	if id == "auto" {
		id = ""
	}

	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := rpcContext()
	defer cancel()
	if err := client.SelectZone(ctx, id); err != nil {
		if errors.Is(err, server.ErrZoneNotFound) {
			return fmt.Errorf("no zone with id %q (see `nowplaying zones`)", args[0])
		}
		return err
	}

	if id == "" {
		fmt.Println(styleSuccess.Render("Automatic zone selection."))
	} else {
		fmt.Printf("%s %s\n", styleSuccess.Render("Pinned to"), styleValue.Render(id))
	}
	return nil
}
