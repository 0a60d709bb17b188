// Package cmd implements the kforge command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bitswalk/kforge/src/common/cli"
	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/logs"
	"github.com/bitswalk/kforge/src/common/version"
	"github.com/bitswalk/kforge/src/kforge/build"
	"github.com/bitswalk/kforge/src/kforge/history"
	"github.com/bitswalk/kforge/src/kforge/internal/output"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/publish"
	"github.com/bitswalk/kforge/src/kforge/run"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// VersionInfo holds version information - set at build time via ldflags
	VersionInfo = version.New()

	// Configuration file path
	cfgFile string

	// Output format (table, json or yaml)
	outputFormat string

	// v holds the merged flag, environment and file configuration
	v = viper.New()

	log = logs.NewDefault()

	// newRunner creates the tool runner; tests replace it with a recorder
	newRunner = func() toolchain.Runner {
		return toolchain.NewExecRunner()
	}
)

// Linker variables - set via ldflags at build time
var (
	ReleaseVersion = "0.0.0"
	BuildDate      = "unknown"
	GitCommit      = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "kforge",
	Short: "Build and debug a bare-metal ARM kernel",
	Long: `kforge assembles the boot sources, cross-compiles and links the kernel
for the BCM2835 (ARM1176JZF-S), packages a FAT32 filesystem image for debug
builds and launches QEMU, optionally halted and waiting for gdb.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig()
	},
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	VersionInfo.ReleaseVersion = ReleaseVersion
	VersionInfo.BuildDate = BuildDate
	VersionInfo.GitCommit = GitCommit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		printError(rootCmd.ErrOrStderr(), err)
	}
	return errors.GetExitCode(err)
}

func printError(w io.Writer, err error) {
	r := errors.NewReport(err)
	fmt.Fprintf(w, "Error: %s\n", r.Message)
	if r.Cause != "" {
		fmt.Fprintf(w, "  cause: %s\n", r.Cause)
	}
}

func init() {
	cli.RegisterConfigFlag(rootCmd, &cfgFile, "./kforge.yaml")

	rootCmd.PersistentFlags().StringP("workspace", "w", "", "Workspace root (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")

	cli.RegisterLogFlags(v, rootCmd)

	_ = v.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))

	setDefaults(v)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(gdbinitCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(publishCmd)

	registerCompletions()
}

// setDefaults registers the default of every configuration key
func setDefaults(v *viper.Viper) {
	lo := layout.DefaultOptions()
	v.SetDefault("layout.boot_dir", lo.BootDir)
	v.SetDefault("layout.build_dir", lo.BuildDir)
	v.SetDefault("layout.crate", lo.Crate)
	v.SetDefault("layout.linker_script", lo.LinkerScript)
	v.SetDefault("layout.target_spec", lo.TargetSpec)

	bc := build.DefaultConfig()
	v.SetDefault("tools.assembler", bc.Tools.Assembler)
	v.SetDefault("tools.cargo", bc.Tools.Cargo)
	v.SetDefault("tools.mkfs_fat", bc.Tools.MkfsFat)
	v.SetDefault("tools.mount", bc.Tools.Mount)
	v.SetDefault("tools.umount", bc.Tools.Umount)
	v.SetDefault("tools.emulator", bc.Tools.Emulator)
	v.SetDefault("tools.debugger", bc.Tools.Debugger)

	v.SetDefault("build.target.cpu", bc.Target.CPU)
	v.SetDefault("build.target.float_abi", bc.Target.FloatABI)
	v.SetDefault("build.target.fpu", bc.Target.FPU)
	v.SetDefault("build.features", []string{})
	v.SetDefault("build.parallel_assembly", false)
	v.SetDefault("build.assembly_jobs", bc.AssemblyJobs)

	v.SetDefault("rootfs.size_mib", bc.Rootfs.SizeMiB)
	v.SetDefault("rootfs.label", bc.Rootfs.Label)
	v.SetDefault("rootfs.privilege_command", []string{})

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.base_path", "~/.local/share/kforge/artifacts")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("publish.prefix", "kforge")
	v.SetDefault("publish.presign_expiry", "0s")
}

func initConfig() error {
	opts := cli.DefaultConfigOptions("kforge", "KFORGE")
	opts.ConfigFile = cfgFile

	if err := cli.InitConfig(v, opts); err != nil {
		return errors.ErrConfigInvalid.WithMessage("failed to load configuration").WithCause(err)
	}

	log = cli.InitLogger(v, "kforge")
	toolchain.SetLogger(log)
	build.SetLogger(log)
	run.SetLogger(log)
	history.SetLogger(log)
	publish.SetLogger(log)

	if used := v.ConfigFileUsed(); used != "" {
		log.Debug("Configuration loaded", "file", used)
	}
	return nil
}

// workspaceRoot resolves the workspace once per invocation
func workspaceRoot() (string, error) {
	root := cli.GetExpandedString(v, "workspace")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.ErrWorkspaceInvalid.WithMessage("cannot determine current directory").WithCause(err)
		}
		root = wd
	}
	return filepath.Abs(root)
}

// loadLayout builds the workspace layout from configuration
func loadLayout() (*layout.Layout, error) {
	root, err := workspaceRoot()
	if err != nil {
		return nil, err
	}
	return layout.New(root, layout.Options{
		BootDir:      v.GetString("layout.boot_dir"),
		BuildDir:     v.GetString("layout.build_dir"),
		Crate:        v.GetString("layout.crate"),
		LinkerScript: v.GetString("layout.linker_script"),
		TargetSpec:   v.GetString("layout.target_spec"),
	})
}

// tools returns the configured external tool names
func tools() toolchain.Tools {
	return toolchain.Tools{
		Assembler: v.GetString("tools.assembler"),
		Cargo:     v.GetString("tools.cargo"),
		MkfsFat:   v.GetString("tools.mkfs_fat"),
		Mount:     v.GetString("tools.mount"),
		Umount:    v.GetString("tools.umount"),
		Emulator:  v.GetString("tools.emulator"),
		Debugger:  v.GetString("tools.debugger"),
	}
}

// buildConfig returns the pipeline configuration
func buildConfig() build.Config {
	cfg := build.DefaultConfig()
	cfg.Tools = tools()
	cfg.Target = build.Target{
		CPU:      v.GetString("build.target.cpu"),
		FloatABI: v.GetString("build.target.float_abi"),
		FPU:      v.GetString("build.target.fpu"),
	}
	cfg.Features = v.GetStringSlice("build.features")
	cfg.ParallelAssembly = v.GetBool("build.parallel_assembly")
	cfg.AssemblyJobs = v.GetInt("build.assembly_jobs")
	cfg.Rootfs.SizeMiB = v.GetInt64("rootfs.size_mib")
	cfg.Rootfs.Label = v.GetString("rootfs.label")
	cfg.Rootfs.PrivilegeCommand = v.GetStringSlice("rootfs.privilege_command")
	return cfg
}

// historyPath returns the history database location
func historyPath(l *layout.Layout) string {
	if p := cli.GetExpandedString(v, "history.path"); p != "" {
		return p
	}
	return l.HistoryDB()
}

// getOutputFormat returns the validated output format
func getOutputFormat() (output.Format, error) {
	f, err := output.ParseFormat(outputFormat)
	if err != nil {
		return "", errors.ErrConfigInvalid.WithMessage(err.Error())
	}
	return f, nil
}

// variantFlag reads a --variant flag, falling back to def when unset
func variantFlag(cmd *cobra.Command, def layout.Variant) layout.Variant {
	f := cmd.Flags().Lookup("variant")
	if f == nil || f.Value.String() == "" {
		return def
	}
	return layout.Variant(f.Value.String())
}
