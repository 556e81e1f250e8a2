package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/slipway-build/slipway/internal/errors"
)

var writeCmd = &cobra.Command{
	Use:   "write <project-id> <file>...",
	Short: "Push local files into the live sandbox",
	Long: `Reads the given files relative to the current directory (or --dir)
and writes them into the project's running sandbox under the same
relative paths. The project record is updated so the next full sync
carries the changes too.

Requires a sandbox provisioned by sync in this same process session;
after a restart, run sync first.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runWrite,
}

var writeDir string

func init() {
	writeCmd.Flags().StringVar(&writeDir, "dir", ".", "Base directory file paths are relative to")
	rootCmd.AddCommand(writeCmd)
}

func runWrite(cmd *cobra.Command, args []string) error {
	projectID := args[0]
	paths := args[1:]

	files := make(map[string]string, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			return errors.Validation(fmt.Sprintf("file path must be relative: %s", p))
		}
		rel := filepath.ToSlash(filepath.Clean(p))
		data, err := os.ReadFile(filepath.Join(writeDir, p))
		if err != nil {
			return errors.Validation(fmt.Sprintf("reading %s: %v", p, err))
		}
		files[rel] = string(data)
	}

	mgr, _, err := newManager()
	if err != nil {
		return err
	}

	res, err := mgr.WriteFiles(context.Background(), projectID, ownerID, files)
	if err != nil {
		return err
	}

	for _, p := range res.Failed {
		logWarning("  failed: %s", p)
	}
	logSuccess("Wrote %d file(s)", len(res.Written))
	if len(res.Failed) > 0 {
		logError("%d file(s) failed; the record still holds them for the next sync", len(res.Failed))
	}
	return nil
}
