package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/slipway-build/slipway/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configPath string
	ownerID    string
)

var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Ephemeral preview sandbox manager",
	Long: `slipway provisions ephemeral cloud sandboxes for projects, pushes
their files in, and boots a dev server reachable over a preview URL.

Each project gets at most one live sandbox. Sandboxes expire on a TTL;
slipway reconciles the recorded sandbox against the provider and
transparently replaces dead ones on the next sync.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(verbose, jsonOutput, os.Stderr)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ~/.config/slipway/config.toml)")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "local", "Owner identity for project records")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
