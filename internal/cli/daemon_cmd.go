package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/watchfire-io/nowplaying/internal/config"
	"github.com/watchfire-io/nowplaying/internal/models"
)

var daemonStartPort int

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the nowplayingd daemon",
	Long: `Manage the nowplayingd daemon, which runs the worker process and keeps
the menu bar in sync with it.`,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon and worker status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the daemon and its worker",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

func init() {
	daemonStartCmd.Flags().IntVar(&daemonStartPort, "port", 0, "control service port (0 picks a free port)")

	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	info, err := config.RunningDaemon()
	if err == nil {
		fmt.Printf("Daemon is already running (PID %d, %s).\n", info.PID, info.Address())
		return nil
	}

	fmt.Print("Starting daemon...")
	info, err = startDaemon(daemonStartPort)
	if err != nil {
		fmt.Println()
		return err
	}
	fmt.Printf(" %s (PID %d, %s).\n", styleSuccess.Render("started"), info.PID, info.Address())
	fmt.Println(styleHint.Render("  Follow it with ") + styleCommand.Render("nowplaying watch"))
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	report, err := fetchDaemonReport()
	if err != nil {
		return err
	}
	if report == nil {
		fmt.Println("Daemon is not running.")
		fmt.Println(styleHint.Render("  Start it with ") + styleCommand.Render("nowplaying daemon start"))
		return nil
	}
	fmt.Print(formatDaemonReport(report, time.Now()))
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	report, err := fetchDaemonReport()
	if err != nil {
		return err
	}
	if report == nil {
		fmt.Println("Daemon is not running.")
		return nil
	}

	if v := report.View; v != nil && v.WorkerRunning {
		fmt.Printf("Stopping daemon and worker (PID %d)...", v.WorkerPID)
	} else {
		fmt.Print("Stopping daemon...")
	}

	via, err := requestShutdown(report)
	if err != nil {
		fmt.Println()
		return err
	}

	pid := report.Info.PID
	if !pollUntil(daemonStopTimeout, daemonPollEvery, func() bool { return !config.ProcessAlive(pid) }) {
		fmt.Println()
		return fmt.Errorf("daemon (PID %d) did not stop within %v", pid, daemonStopTimeout)
	}
	// A daemon that died mid-shutdown leaves its file behind.
	_ = config.RemoveDaemonInfo()

	fmt.Printf(" %s %s\n", styleSuccess.Render("stopped."), styleHint.Render("(via "+via+")"))
	return nil
}

// requestShutdown asks the daemon to exit through the control service, which
// stops the worker before the daemon exits. It falls back to SIGTERM, which
// the daemon handles the same way, when the service is unreachable.
func requestShutdown(r *daemonReport) (string, error) {
	if r.View != nil {
		if err := shutdownViaControl(); err == nil {
			return "control service", nil
		}
	}
	if err := signalDaemon(r.Info); err != nil {
		return "", err
	}
	return "SIGTERM", nil
}

func shutdownViaControl() error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}
	defer client.Close()
	ctx, cancel := rpcContext()
	defer cancel()
	return client.Shutdown(ctx)
}

func signalDaemon(info *models.DaemonInfo) error {
	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("failed to find daemon process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send stop signal: %w", err)
	}
	return nil
}
