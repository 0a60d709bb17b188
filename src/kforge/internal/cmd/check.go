package cmd

import (
	"os/exec"
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/kforge/internal/output"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
	"github.com/spf13/cobra"
)

// lookPath resolves tool names; tests replace it
var lookPath toolchain.LookPathFunc = exec.LookPath

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the external tools are installed",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	format, err := getOutputFormat()
	if err != nil {
		return err
	}

	avail := toolchain.CheckAvailability(tools().Requirements(), lookPath)
	out := cmd.OutOrStdout()
	err = output.Print(out, format, avail, func() {
		rows := make([][]string, len(avail))
		for i, a := range avail {
			status := "ok"
			switch {
			case !a.Found && a.Optional:
				status = "missing (optional)"
			case !a.Found:
				status = "missing"
			}
			rows[i] = []string{a.Tool, status, a.Path, a.Purpose}
		}
		output.PrintTable(out, []string{"TOOL", "STATUS", "PATH", "PURPOSE"}, rows)
	})
	if err != nil {
		return err
	}

	if missing := toolchain.Missing(avail); len(missing) > 0 {
		return errors.ErrToolNotFound.WithMessagef("required tools not found: %s", strings.Join(missing, ", "))
	}
	return nil
}
