package cmd

import (
	"fmt"
	"time"

	"github.com/bitswalk/kforge/src/common/cli"
	"github.com/bitswalk/kforge/src/common/paths"
	"github.com/bitswalk/kforge/src/kforge/build"
	"github.com/bitswalk/kforge/src/kforge/history"
	"github.com/bitswalk/kforge/src/kforge/internal/output"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Assemble, compile and link the kernel",
	Long: `Runs the build pipeline for a variant.

release: optimized kernel at <workspace>/kernel.elf
debug:   kernel with debug info at <workspace>/build/kernel_debug.elf,
         plus a 64 MiB FAT32 image at <workspace>/build/rootfs.img`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().Var(new(layout.Variant), "variant", "Build variant: release or debug (default release)")
	buildCmd.Flags().Bool("parallel", false, "Assemble boot sources in parallel")
	buildCmd.Flags().Bool("no-history", false, "Do not record this run in the build history")

	_ = cli.BindFlag(v, buildCmd, "parallel", "build.parallel_assembly")
}

// buildSummary is the structured output of a build
type buildSummary struct {
	RunID     string            `json:"run_id" yaml:"run_id"`
	Variant   layout.Variant    `json:"variant" yaml:"variant"`
	State     build.State       `json:"state" yaml:"state"`
	Duration  string            `json:"duration" yaml:"duration"`
	Artifacts []layout.Artifact `json:"artifacts" yaml:"artifacts"`
}

func runBuild(cmd *cobra.Command, args []string) error {
	format, err := getOutputFormat()
	if err != nil {
		return err
	}
	l, err := loadLayout()
	if err != nil {
		return err
	}
	variant := variantFlag(cmd, layout.Release)

	var opts []build.Option
	noHistory, _ := cmd.Flags().GetBool("no-history")
	if v.GetBool("history.enabled") && !noHistory {
		store, err := history.Open(cmd.Context(), historyPath(l))
		if err != nil {
			log.Warn("Build history unavailable", "error", err)
		} else {
			defer store.Close()
			opts = append(opts, build.WithRecorder(store))
		}
	}

	res, err := build.NewPipeline(l, buildConfig(), newRunner(), opts...).Run(cmd.Context(), variant)
	if err != nil {
		return err
	}

	summary := buildSummary{
		RunID:     res.RunID,
		Variant:   res.Variant,
		State:     res.State,
		Duration:  res.Duration().Round(time.Millisecond).String(),
		Artifacts: res.Artifacts,
	}
	out := cmd.OutOrStdout()
	return output.Print(out, format, summary, func() {
		rows := make([][]string, len(res.Artifacts))
		for i, a := range res.Artifacts {
			rows[i] = []string{string(a.Kind), l.Rel(a.Path), fmt.Sprintf("%d", paths.Size(a.Path))}
		}
		output.PrintTable(out, []string{"KIND", "PATH", "SIZE"}, rows)
		fmt.Fprintf(out, "\n%s build %s finished in %s\n", variant, res.RunID, summary.Duration)
	})
}
