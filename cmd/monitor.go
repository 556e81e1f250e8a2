package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slipway-build/slipway/internal/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor <project-id>",
	Short: "Monitor the project's sandbox expiry in the background",
	Long: `Periodically reconciles the project's recorded sandbox against the
provider and reports when it expires. With --auto-sync an expired
sandbox is replaced automatically. Runs in the foreground until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

var (
	monitorInterval int
	monitorAutoSync bool
)

func init() {
	monitorCmd.Flags().IntVar(&monitorInterval, "interval", 60, "Check interval in seconds")
	monitorCmd.Flags().BoolVar(&monitorAutoSync, "auto-sync", false, "Automatically replace expired sandboxes")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	mgr, _, err := newManager()
	if err != nil {
		return err
	}

	interval := time.Duration(monitorInterval) * time.Second

	var opts []monitor.Option
	if monitorAutoSync {
		opts = append(opts, monitor.WithAutoSync(true))
	}

	mon := monitor.New(interval, mgr, projectID, ownerID, opts...)

	logInfo("Starting expiry monitor (interval: %ds, auto-sync: %v)", monitorInterval, monitorAutoSync)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = mon.Run(ctx)
	if err == context.Canceled {
		logInfo("Monitor stopped")
		return nil
	}
	return err
}
