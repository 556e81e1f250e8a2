package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <project-id>",
	Short: "Tear down the project's sandbox",
	Long: `Destroys the project's sandbox at the provider and clears its
record. The project's files are kept; a later sync provisions a fresh
sandbox from them.`,
	Args: cobra.ExactArgs(1),
	RunE: runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
}

func runDestroy(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	mgr, _, err := newManager()
	if err != nil {
		return err
	}

	existed, err := mgr.DestroySandbox(context.Background(), projectID, ownerID)
	if err != nil {
		return err
	}

	if existed {
		logSuccess("Sandbox destroyed")
	} else {
		logInfo("No sandbox recorded for %s", projectID)
	}
	return nil
}
