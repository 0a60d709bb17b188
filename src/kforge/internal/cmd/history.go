package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/kforge/history"
	"github.com/bitswalk/kforge/src/kforge/internal/output"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded build runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the stages and artifacts of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the most recent runs",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	historyPruneCmd.Flags().Int("keep", 50, "Number of runs to keep")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	l, err := loadLayout()
	if err != nil {
		return nil, err
	}
	return history.Open(cmd.Context(), historyPath(l))
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	format, err := getOutputFormat()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	return output.Print(out, format, runs, func() {
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return
		}
		rows := make([][]string, len(runs))
		for i, r := range runs {
			rows[i] = []string{
				r.ID,
				string(r.Variant),
				string(r.Status),
				r.FailedStage,
				r.StartedAt.Local().Format(time.DateTime),
				r.Duration().Round(time.Millisecond).String(),
			}
		}
		output.PrintTable(out, []string{"ID", "VARIANT", "STATUS", "FAILED STAGE", "STARTED", "DURATION"}, rows)
	})
}

// runDetail is the structured output of history show
type runDetail struct {
	Run       *history.Run             `json:"run" yaml:"run"`
	Stages    []history.StageRecord    `json:"stages" yaml:"stages"`
	Artifacts []history.ArtifactRecord `json:"artifacts" yaml:"artifacts"`
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	format, err := getOutputFormat()
	if err != nil {
		return err
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	run, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}
	stages, err := store.Stages(ctx, run.ID)
	if err != nil {
		return err
	}
	arts, err := store.Artifacts(ctx, run.ID)
	if err != nil {
		return err
	}

	detail := runDetail{Run: run, Stages: stages, Artifacts: arts}
	out := cmd.OutOrStdout()
	return output.Print(out, format, detail, func() {
		fmt.Fprintf(out, "Run:     %s\n", run.ID)
		fmt.Fprintf(out, "Variant: %s\n", run.Variant)
		fmt.Fprintf(out, "Status:  %s (%s)\n", run.Status, run.State)
		if run.Error != "" {
			fmt.Fprintf(out, "Error:   %s\n", run.Error)
		}
		fmt.Fprintln(out)

		rows := make([][]string, len(stages))
		for i, s := range stages {
			rows[i] = []string{string(s.Stage), string(s.Status), (time.Duration(s.DurationMS) * time.Millisecond).String(), s.Message}
		}
		output.PrintTable(out, []string{"STAGE", "STATUS", "DURATION", "MESSAGE"}, rows)

		if len(arts) > 0 {
			fmt.Fprintln(out)
			rows = make([][]string, len(arts))
			for i, a := range arts {
				rows[i] = []string{string(a.Kind), a.Path, strconv.FormatInt(a.SizeBytes, 10)}
			}
			output.PrintTable(out, []string{"KIND", "PATH", "SIZE"}, rows)
		}
	})
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	keep, _ := cmd.Flags().GetInt("keep")
	if keep < 0 {
		return errors.ErrConfigInvalid.WithMessage("--keep must not be negative")
	}

	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Prune(cmd.Context(), keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d runs\n", n)
	return nil
}
