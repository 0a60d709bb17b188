package cmd

import (
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/run"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the kernel in QEMU",
	Long: `Launches qemu-system-arm on the raspi0 machine with the built kernel.

normal:  console on stdio
logging: also traces interrupts and guest errors to build/qemu.log

Use "kforge debug" to start halted with a gdb stub.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("mode", string(run.ModeNormal), "Run mode: normal or logging")
	runCmd.Flags().Var(new(layout.Variant), "variant", "Kernel variant to run (default release)")
	runCmd.Flags().Bool("disk", false, "Attach build/rootfs.img as an SD card")
	runCmd.Flags().Bool("no-disk", false, "Do not attach a disk image")
	runCmd.MarkFlagsMutuallyExclusive("disk", "no-disk")
}

func runRun(cmd *cobra.Command, args []string) error {
	modeName, _ := cmd.Flags().GetString("mode")
	mode, err := run.ParseMode(modeName)
	if err != nil {
		return err
	}
	if mode == run.ModeDebugHalt {
		return runDebug(cmd, args)
	}

	cfg, err := runConfiguration(cmd, mode)
	if err != nil {
		return err
	}
	return run.NewLauncher(tools().Emulator, newRunner()).Launch(cmd.Context(), cfg)
}

// runConfiguration derives the run configuration from the command's flags
func runConfiguration(cmd *cobra.Command, mode run.Mode) (run.Configuration, error) {
	l, err := loadLayout()
	if err != nil {
		return run.Configuration{}, err
	}

	opts := run.Options{Variant: variantFlag(cmd, "")}
	if f := cmd.Flags().Lookup("disk"); f != nil && f.Changed {
		disk := true
		opts.Disk = &disk
	}
	if f := cmd.Flags().Lookup("no-disk"); f != nil && f.Changed {
		disk := false
		opts.Disk = &disk
	}
	return run.NewConfiguration(l, mode, opts)
}
