package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/slipway-build/slipway/internal/config"
	"github.com/slipway-build/slipway/internal/errors"
	"github.com/slipway-build/slipway/internal/project"
	"github.com/slipway-build/slipway/internal/scaffold"
)

var initCmd = &cobra.Command{
	Use:   "init [project-id]",
	Short: "Create a new project record",
	Long: `Creates a project record in the local store. With no argument a
random project id is minted. Use --scaffold to seed the record with the
starter Vite app instead of leaving it empty.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var initScaffold bool

func init() {
	initCmd.Flags().BoolVar(&initScaffold, "scaffold", false, "Seed the project with the starter app")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	projectID := uuid.NewString()
	if len(args) == 1 {
		projectID = args[0]
	}
	if err := config.ValidateProjectID(projectID); err != nil {
		return errors.Validation(err.Error())
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	proj := &project.Project{
		ID:      projectID,
		OwnerID: ownerID,
		Files:   map[string]string{},
	}
	if initScaffold {
		proj.Files = scaffold.Files()
	}

	if err := store.Create(context.Background(), proj); err != nil {
		return err
	}

	logSuccess("Project %s created", projectID)
	if initScaffold {
		fmt.Printf("  Files: %d (starter app)\n", len(proj.Files))
	}
	fmt.Printf("  Next: slipway sync %s\n", projectID)
	return nil
}
