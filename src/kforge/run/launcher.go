package run

import (
	"context"
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/logs"
	"github.com/bitswalk/kforge/src/common/paths"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the run package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Launcher starts the emulator
type Launcher struct {
	emulator string
	runner   toolchain.Runner
}

// NewLauncher creates a launcher using the given emulator binary
func NewLauncher(emulator string, runner toolchain.Runner) *Launcher {
	return &Launcher{emulator: emulator, runner: runner}
}

// Launch checks preconditions, then runs the emulator until it exits.
// The emulator is never started when a precondition fails.
func (l *Launcher) Launch(ctx context.Context, cfg Configuration) error {
	if err := CheckPreconditions(cfg); err != nil {
		return err
	}
	if cfg.LogFile != "" {
		if err := paths.EnsureDir(cfg.LogFile); err != nil {
			return errors.ErrWorkspaceInvalid.WithMessagef("cannot create log directory for %s", cfg.LogFile).WithCause(err)
		}
	}

	cmd := l.Command(cfg)
	log.Info("Starting emulator", "mode", cfg.Mode, "machine", cfg.Machine, "kernel", cfg.KernelImage, "disk", cfg.DiskImage)
	if cfg.Mode == ModeDebugHalt {
		log.Info("Emulator halted at reset, waiting for debugger", "endpoint", cfg.Endpoint)
	}

	if err := l.runner.Run(ctx, cmd); err != nil {
		return err
	}
	log.Info("Emulator exited", "mode", cfg.Mode)
	return nil
}

// Command builds the emulator invocation for cfg
func (l *Launcher) Command(cfg Configuration) toolchain.Command {
	cmd := toolchain.New(string(cfg.Mode), l.emulator,
		toolchain.Option("-M", cfg.Machine),
		toolchain.Option("-kernel", cfg.KernelImage),
		toolchain.Switch("-nographic"),
	)

	switch cfg.Mode {
	case ModeLogging:
		cmd = cmd.With(
			toolchain.Option("-d", "int,guest_errors"),
			toolchain.Option("-D", cfg.LogFile),
		)
	case ModeDebugHalt:
		cmd = cmd.With(
			toolchain.Switch("-S"),
			toolchain.Option("-gdb", "tcp::"+endpointPort(cfg.Endpoint)),
		)
	}

	if cfg.DiskImage != "" {
		cmd = cmd.With(toolchain.Option("-drive", "file="+escapeOptionValue(cfg.DiskImage)+",if=sd,format=raw"))
	}

	cmd.Dir = cfg.Workspace
	cmd.Interactive = true
	return cmd
}

// escapeOptionValue doubles commas, which QEMU reads as suboption separators
func escapeOptionValue(v string) string {
	return strings.ReplaceAll(v, ",", ",,")
}

func endpointPort(endpoint string) string {
	if i := strings.LastIndex(endpoint, ":"); i >= 0 && i < len(endpoint)-1 {
		return endpoint[i+1:]
	}
	return debugPort
}
