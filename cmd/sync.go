package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slipway-build/slipway/internal/lifecycle"
)

var syncCmd = &cobra.Command{
	Use:   "sync <project-id>",
	Short: "Provision a sandbox serving the project",
	Long: `Ensures the project has a live sandbox running its dev server and
prints the preview URL. A still-valid sandbox from an earlier sync is
reused; an expired or lost one is destroyed and replaced.

Empty projects are seeded with the starter app unless --no-scaffold is
given, in which case syncing an empty project is an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

var syncNoScaffold bool

func init() {
	syncCmd.Flags().BoolVar(&syncNoScaffold, "no-scaffold", false, "Fail on empty projects instead of seeding the starter app")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	projectID := args[0]

	mgr, _, err := newManager()
	if err != nil {
		return err
	}

	logInfo("Syncing project %s...", projectID)

	res, err := mgr.EnsureSandbox(context.Background(), projectID, ownerID, lifecycle.EnsureOptions{
		ScaffoldOnEmpty: !syncNoScaffold,
	})
	if err != nil {
		return err
	}

	if res.Scaffolded {
		logInfo("Seeded empty project with the starter app")
	}
	if res.Reused {
		logSuccess("Sandbox %s still live, reused", res.SandboxID)
	} else {
		logSuccess("Sandbox %s ready", res.SandboxID)
	}
	fmt.Printf("  Preview: %s\n", res.PreviewURL)
	fmt.Printf("  Files: %d\n", res.FilesCount)
	fmt.Printf("  Expires in: %dm\n", res.RemainingMinutes)
	return nil
}
