package build

import (
	"context"
	"debug/elf"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/paths"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
)

// LinkStage cross-compiles the kernel crate and links it with the boot
// objects against the linker script
type LinkStage struct{}

// NewLinkStage creates a new link stage
func NewLinkStage() *LinkStage {
	return &LinkStage{}
}

// Name returns the stage name
func (s *LinkStage) Name() StageName {
	return StageLink
}

// State returns the pipeline state while linking
func (s *LinkStage) State() State {
	return StateLinking
}

// Enabled reports that linking runs for every variant
func (s *LinkStage) Enabled(layout.Profile) bool {
	return true
}

// Validate checks the linker inputs exist
func (s *LinkStage) Validate(ctx context.Context, sc *StageContext) error {
	if len(sc.Objects) == 0 {
		return errors.ErrSourceSetInvalid.WithMessage("no objects to link")
	}
	for _, obj := range sc.Objects {
		if !paths.IsFile(obj) {
			return errors.ErrArtifactMissing.WithMessagef("object %s was not produced by the assembler", obj)
		}
	}
	if !paths.IsFile(sc.Layout.LinkerScript()) {
		return errors.ErrArtifactMissing.WithMessagef("linker script not found at %s", sc.Layout.LinkerScript())
	}
	if !paths.IsFile(sc.Layout.CrateManifest()) {
		return errors.ErrArtifactMissing.WithMessagef("kernel crate manifest not found at %s", sc.Layout.CrateManifest())
	}
	if sc.Layout.HasTargetSpecFile() && !paths.IsFile(sc.Layout.TargetSpec()) {
		return errors.ErrArtifactMissing.WithMessagef("target specification not found at %s", sc.Layout.TargetSpec())
	}
	return nil
}

// Execute runs the compiler driver and installs the linked image at its
// canonical path
func (s *LinkStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) Outcome {
	progress(0, "Compiling and linking kernel")

	if err := sc.Runner.Run(ctx, s.command(sc)); err != nil {
		return Failed(s, err)
	}
	progress(70, "Kernel linked")

	output := sc.Layout.ToolchainOutput(sc.Variant)
	if err := verifyImage(output); err != nil {
		return Failed(s, err)
	}

	image := sc.Layout.KernelImage(sc.Variant)
	if err := installAtomic(output, image); err != nil {
		return Failed(s, err)
	}

	log.Info("Kernel image installed", "variant", sc.Variant, "path", image, "size", paths.Size(image))
	progress(100, "Installed "+sc.Layout.Rel(image))

	return Succeeded(s, layout.Artifact{Path: image, Kind: layout.KindLinkedImage, Variant: sc.Variant})
}

// command builds the single cargo rustc invocation
func (s *LinkStage) command(sc *StageContext) toolchain.Command {
	l := sc.Layout
	cmd := toolchain.New(string(StageLink), sc.Config.Tools.Cargo,
		toolchain.Positional("rustc"),
		toolchain.Option("--manifest-path", l.CrateManifest()),
		toolchain.Option("--target", l.TargetSpec()),
		toolchain.Option("--target-dir", l.CargoTargetDir()),
		toolchain.Option("-Z", "build-std=core,alloc"),
		toolchain.Option("-Z", "build-std-features=compiler-builtins-mem"),
	)
	if sc.Profile.OptimizedProfile {
		cmd = cmd.With(toolchain.Switch("--release"))
	}
	if len(sc.Config.Features) > 0 {
		cmd = cmd.With(toolchain.Option("--features", strings.Join(sc.Config.Features, ",")))
	}

	cmd = cmd.With(
		toolchain.Switch("--"),
		toolchain.Option("-C", "link-arg=-T"+l.LinkerScript()),
		toolchain.Option("-C", "link-arg=--gc-sections"),
	)
	for _, obj := range sc.Objects {
		cmd = cmd.With(toolchain.Option("-C", "link-arg="+obj))
	}
	cmd = cmd.With(toolchain.Option("-C", "debuginfo="+strconv.Itoa(sc.Profile.DebugInfo)))

	cmd.Dir = l.Root()
	return cmd
}

// verifyImage checks the toolchain output is a non-empty 32-bit ARM ELF file
func verifyImage(path string) error {
	if paths.Size(path) <= 0 {
		return errors.ErrArtifactMissing.WithMessagef("toolchain output %s is missing or empty", path)
	}

	f, err := elf.Open(path)
	if err != nil {
		return errors.ErrArtifactInvalid.WithMessagef("toolchain output %s is not an ELF file", path).WithCause(err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_ARM {
		return errors.ErrArtifactInvalid.WithMessagef("toolchain output %s is %s/%s, expected ELFCLASS32/EM_ARM", path, f.Class, f.Machine)
	}
	return nil
}

// installAtomic copies src to dst through a temp file in dst's directory so
// readers never observe a partial image
func installAtomic(src, dst string) error {
	if err := paths.EnsureDir(dst); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open toolchain output: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp image: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to copy kernel image: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync kernel image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close kernel image: %w", err)
	}
	if err := os.Chmod(tmpName, 0755); err != nil {
		return fmt.Errorf("failed to set image permissions: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("failed to install kernel image: %w", err)
	}
	committed = true
	return nil
}
