package cmd

import (
	"fmt"

	"github.com/bitswalk/kforge/src/kforge/internal/output"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	format, err := getOutputFormat()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	return output.Print(out, format, VersionInfo, func() {
		fmt.Fprintln(out, VersionInfo.Full())
	})
}
