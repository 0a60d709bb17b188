// Package run launches the kernel in the emulator after checking that the
// artifacts it needs have been built.
package run

import (
	"fmt"
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/kforge/layout"
)

// Mode selects how the emulator is launched
type Mode string

const (
	ModeNormal    Mode = "normal"
	ModeLogging   Mode = "logging"
	ModeDebugHalt Mode = "debug-halt"
)

// ParseMode validates a user-supplied mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNormal, ModeLogging, ModeDebugHalt:
		return m, nil
	case "":
		return ModeNormal, nil
	default:
		return "", errors.ErrConfigInvalid.WithMessagef("unknown run mode %q (expected normal, logging or debug-halt)", s)
	}
}

// String implements fmt.Stringer
func (m Mode) String() string {
	return string(m)
}

// Fixed emulator settings
const (
	Machine       = "raspi0"
	DebugEndpoint = "localhost:1234"
	debugPort     = "1234"
)

// Configuration is everything needed to start one emulator session
type Configuration struct {
	Mode    Mode
	Variant layout.Variant
	Machine string

	// KernelImage is the linked image passed to -kernel
	KernelImage string

	// DiskImage is attached as an SD card when set
	DiskImage string

	// LogFile receives emulator traces in logging mode
	LogFile string

	// Endpoint is the gdb stub address in debug-halt mode
	Endpoint string

	// Workspace is the root the emulator runs in
	Workspace string
}

// Options override the mode's defaults
type Options struct {
	Variant layout.Variant // empty selects the mode's default
	Disk    *bool          // nil selects the mode's default
}

// NewConfiguration derives a run configuration from the workspace layout.
// Normal and logging runs default to the release kernel without a disk;
// debug-halt defaults to the debug kernel and the rootfs image.
func NewConfiguration(l *layout.Layout, mode Mode, opts Options) (Configuration, error) {
	switch mode {
	case ModeNormal, ModeLogging, ModeDebugHalt:
	default:
		return Configuration{}, errors.ErrConfigInvalid.WithMessagef("unknown run mode %q", mode)
	}

	variant := opts.Variant
	if variant == "" {
		variant = layout.Release
		if mode == ModeDebugHalt {
			variant = layout.Debug
		}
	}

	disk := mode == ModeDebugHalt
	if opts.Disk != nil {
		disk = *opts.Disk
	}

	cfg := Configuration{
		Mode:        mode,
		Variant:     variant,
		Machine:     Machine,
		KernelImage: l.KernelImage(variant),
		Workspace:   l.Root(),
	}
	if disk {
		cfg.DiskImage = l.RootfsImage()
	}
	if mode == ModeLogging {
		cfg.LogFile = l.EmulatorLog()
	}
	if mode == ModeDebugHalt {
		cfg.Endpoint = DebugEndpoint
	}
	return cfg, nil
}

// String implements fmt.Stringer
func (c Configuration) String() string {
	return fmt.Sprintf("%s run of %s kernel %s", c.Mode, c.Variant, c.KernelImage)
}
