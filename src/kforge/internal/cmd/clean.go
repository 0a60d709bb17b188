package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/paths"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove build outputs",
	Long: `Removes the build directory contents and the release kernel image.
The build history database is kept unless --all is given.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().Bool("all", false, "Also remove the build history database")
}

func runClean(cmd *cobra.Command, args []string) error {
	l, err := loadLayout()
	if err != nil {
		return err
	}
	all, _ := cmd.Flags().GetBool("all")

	removed := 0
	if paths.IsDir(l.BuildDir()) {
		entries, err := os.ReadDir(l.BuildDir())
		if err != nil {
			return errors.ErrWorkspaceInvalid.WithMessagef("cannot read %s", l.BuildDir()).WithCause(err)
		}
		keep := filepath.Base(historyPath(l))
		for _, e := range entries {
			if !all && isHistoryFile(e.Name(), keep) {
				continue
			}
			if err := os.RemoveAll(filepath.Join(l.BuildDir(), e.Name())); err != nil {
				return errors.ErrInternal.WithMessagef("cannot remove %s", e.Name()).WithCause(err)
			}
			removed++
		}
	}

	release := l.KernelImage(layout.Release)
	if paths.Exists(release) {
		if err := os.Remove(release); err != nil {
			return errors.ErrInternal.WithMessagef("cannot remove %s", release).WithCause(err)
		}
		removed++
	}

	log.Info("Workspace cleaned", "removed", removed, "history_kept", !all)
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
	return nil
}

// isHistoryFile matches the database and its sqlite journal files
func isHistoryFile(name, db string) bool {
	return name == db || name == db+"-journal" || name == db+"-wal" || name == db+"-shm"
}
