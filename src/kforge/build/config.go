package build

import (
	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
)

// Target describes the CPU the boot sources are assembled for
type Target struct {
	CPU      string
	FloatABI string
	FPU      string
}

// DefaultTarget returns the BCM2835 ARM1176JZF-S hard-float target
func DefaultTarget() Target {
	return Target{
		CPU:      "arm1176jzf-s",
		FloatABI: "hard",
		FPU:      "vfp",
	}
}

// RootfsConfig controls the debug filesystem image
type RootfsConfig struct {
	SizeMiB         int64
	Label           string
	SentinelName    string
	SentinelContent string

	// PrivilegeCommand prefixes mount and umount, e.g. ["sudo", "-n"].
	// Empty runs them directly.
	PrivilegeCommand []string
}

// DefaultRootfsConfig returns the standard 64 MiB FAT32 image settings
func DefaultRootfsConfig() RootfsConfig {
	return RootfsConfig{
		SizeMiB:         64,
		Label:           "ROOTFS",
		SentinelName:    "HELLO.TXT",
		SentinelContent: "Hello from kforge rootfs!\n",
	}
}

// Config holds configuration for the build pipeline
type Config struct {
	Tools    toolchain.Tools
	Target   Target
	Features []string // cargo features passed to the kernel crate
	Rootfs   RootfsConfig

	ParallelAssembly bool
	AssemblyJobs     int // upper bound on concurrent assembler processes
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Tools:        toolchain.DefaultTools(),
		Target:       DefaultTarget(),
		Rootfs:       DefaultRootfsConfig(),
		AssemblyJobs: 4,
	}
}

// Validate rejects configurations the pipeline cannot run with
func (c Config) Validate() error {
	if c.Target.CPU == "" || c.Target.FloatABI == "" || c.Target.FPU == "" {
		return errors.ErrConfigInvalid.WithMessage("target cpu, float-abi and fpu must all be set")
	}
	if c.Rootfs.SizeMiB <= 0 {
		return errors.ErrConfigInvalid.WithMessagef("rootfs size must be positive, got %d MiB", c.Rootfs.SizeMiB)
	}
	if c.Rootfs.Label == "" || len(c.Rootfs.Label) > 11 {
		return errors.ErrConfigInvalid.WithMessagef("rootfs label %q must be 1 to 11 characters", c.Rootfs.Label)
	}
	if c.Rootfs.SentinelName == "" {
		return errors.ErrConfigInvalid.WithMessage("rootfs sentinel file name is empty")
	}
	if c.ParallelAssembly && c.AssemblyJobs < 1 {
		return errors.ErrConfigInvalid.WithMessagef("assembly jobs must be at least 1, got %d", c.AssemblyJobs)
	}
	return nil
}

func (c Config) rootfsBytes() int64 {
	return c.Rootfs.SizeMiB << 20
}
