package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/slipway-build/slipway/internal/lifecycle"
	"github.com/slipway-build/slipway/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status <project-id>",
	Short: "Show the project's sandbox status",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var (
	statusWatch    bool
	statusInterval int
)

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep watching with a live display")
	statusCmd.Flags().IntVar(&statusInterval, "interval", 5, "Watch poll interval in seconds")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	mgr, _, err := newManager()
	if err != nil {
		return err
	}

	if statusWatch {
		return tui.RunWatch(mgr, projectID, ownerID, time.Duration(statusInterval)*time.Second)
	}

	st, err := mgr.GetStatus(context.Background(), projectID, ownerID)
	if err != nil {
		return err
	}

	fmt.Printf("Project: %s\n", projectID)
	fmt.Printf("Status: %s\n", st.State)

	switch st.State {
	case lifecycle.StatusRunning:
		fmt.Printf("Sandbox: %s\n", st.SandboxID)
		fmt.Printf("Preview: %s\n", st.PreviewURL)
		fmt.Printf("Expires in: %dm\n", st.RemainingMinutes)
	case lifecycle.StatusExpired:
		fmt.Printf("Sandbox: %s (gone)\n", st.SandboxID)
		fmt.Printf("Action: run `slipway sync %s`\n", projectID)
	default:
		fmt.Printf("Action: run `slipway sync %s`\n", projectID)
	}

	return nil
}
