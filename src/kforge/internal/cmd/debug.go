package cmd

import (
	"fmt"
	"os"

	"github.com/bitswalk/kforge/src/common/logs"
	"github.com/bitswalk/kforge/src/kforge/debugcfg"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/run"
	"github.com/spf13/cobra"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Run the kernel halted at reset, waiting for gdb",
	Long: `Checks that the debug kernel and rootfs image exist, writes build/gdbinit
and build/debug-session.yaml, then starts QEMU halted with a gdb stub on
localhost:1234. Attach from another terminal with the printed command,
or run "kforge debug --attach" to start gdb from the saved session.`,
	Args: cobra.NoArgs,
	RunE: runDebug,
}

var gdbinitCmd = &cobra.Command{
	Use:   "gdbinit",
	Short: "Write the gdb command file without starting QEMU",
	Args:  cobra.NoArgs,
	RunE:  runGDBInit,
}

func init() {
	for _, c := range []*cobra.Command{debugCmd, gdbinitCmd} {
		c.Flags().Var(new(layout.Variant), "variant", "Kernel variant to debug (default debug)")
		c.Flags().Bool("disk", false, "Attach build/rootfs.img as an SD card (default)")
		c.Flags().Bool("no-disk", false, "Do not attach a disk image")
		c.MarkFlagsMutuallyExclusive("disk", "no-disk")
	}
	debugCmd.Flags().Bool("attach", false, "Start gdb against the session saved by a previous debug run")
	debugCmd.MarkFlagsMutuallyExclusive("attach", "variant")
}

// prepareDebugSession checks preconditions and writes the debugger files.
// Nothing is written when a precondition fails.
func prepareDebugSession(cmd *cobra.Command) (run.Configuration, debugcfg.Manifest, error) {
	cfg, err := runConfiguration(cmd, run.ModeDebugHalt)
	if err != nil {
		return cfg, debugcfg.Manifest{}, err
	}
	if err := run.CheckPreconditions(cfg); err != nil {
		return cfg, debugcfg.Manifest{}, err
	}

	session, err := debugcfg.FromRun(cfg)
	if err != nil {
		return cfg, debugcfg.Manifest{}, err
	}

	l, err := loadLayout()
	if err != nil {
		return cfg, debugcfg.Manifest{}, err
	}
	if err := debugcfg.Write(session, l.GDBInit()); err != nil {
		return cfg, debugcfg.Manifest{}, err
	}
	manifest := debugcfg.NewManifest(session, l.GDBInit(), tools().Debugger)
	if err := debugcfg.WriteManifest(manifest, l.SessionManifest()); err != nil {
		return cfg, debugcfg.Manifest{}, err
	}

	log.Info("Debug session configured", "gdbinit", l.GDBInit(), "symbols", session.SymbolFile)
	return cfg, manifest, nil
}

func runDebug(cmd *cobra.Command, args []string) error {
	if attach, _ := cmd.Flags().GetBool("attach"); attach {
		return runAttach(cmd)
	}

	cfg, manifest, err := prepareDebugSession(cmd)
	if err != nil {
		return err
	}

	if !logs.IsTerminal(os.Stdin) {
		log.Warn("stdin is not a terminal; the QEMU monitor will not be interactive")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Attach with: %s\n", manifest.Attach)

	return run.NewLauncher(tools().Emulator, newRunner()).Launch(cmd.Context(), cfg)
}

func runGDBInit(cmd *cobra.Command, args []string) error {
	_, manifest, err := prepareDebugSession(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), manifest.GDBInit)
	return nil
}

// runAttach starts the debugger recorded in the session manifest. The
// emulator is expected to be running already.
func runAttach(cmd *cobra.Command) error {
	l, err := loadLayout()
	if err != nil {
		return err
	}
	manifest, err := debugcfg.LoadSession(l.SessionManifest())
	if err != nil {
		return err
	}
	log.Info("Attaching debugger", "debugger", manifest.Debugger, "symbols", manifest.Session.SymbolFile)
	return newRunner().Run(cmd.Context(), manifest.Command(l.Root()))
}
