// Package layout resolves every path kforge reads or writes from a single
// workspace root and build variant. No other package builds artifact paths.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/paths"
)

// ArtifactKind classifies build outputs
type ArtifactKind string

const (
	KindObject          ArtifactKind = "object"
	KindLinkedImage     ArtifactKind = "linked-image"
	KindFilesystemImage ArtifactKind = "filesystem-image"
)

// Artifact is a file produced by a pipeline stage
type Artifact struct {
	Path    string       `json:"path" yaml:"path"`
	Kind    ArtifactKind `json:"kind" yaml:"kind"`
	Variant Variant      `json:"variant" yaml:"variant"`
}

// Options are the workspace-relative locations of inputs and outputs
type Options struct {
	BootDir      string // boot-stage sources
	BuildDir     string // intermediate and debug outputs
	Crate        string // kernel crate directory and binary name
	LinkerScript string
	TargetSpec   string // rustc target specification file
}

// DefaultOptions returns the standard workspace layout
func DefaultOptions() Options {
	return Options{
		BootDir:      "kernel/boot",
		BuildDir:     "build",
		Crate:        "kernel",
		LinkerScript: "kernel/linker.ld",
		TargetSpec:   "kernel/armv6a-none-eabihf.json",
	}
}

// Layout maps a workspace root to artifact paths. It is immutable.
type Layout struct {
	root string
	opts Options
}

// New validates root and returns its Layout. Empty options fall back to
// DefaultOptions.
func New(root string, opts Options) (*Layout, error) {
	if root == "" {
		return nil, errors.ErrWorkspaceInvalid.WithMessage("workspace root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.ErrWorkspaceInvalid.WithMessagef("cannot resolve workspace root %s", root).WithCause(err)
	}
	if !paths.IsDir(abs) {
		return nil, errors.ErrWorkspaceInvalid.WithMessagef("workspace root %s is not a directory", abs)
	}

	def := DefaultOptions()
	if opts.BootDir == "" {
		opts.BootDir = def.BootDir
	}
	if opts.BuildDir == "" {
		opts.BuildDir = def.BuildDir
	}
	if opts.Crate == "" {
		opts.Crate = def.Crate
	}
	if opts.LinkerScript == "" {
		opts.LinkerScript = def.LinkerScript
	}
	if opts.TargetSpec == "" {
		opts.TargetSpec = def.TargetSpec
	}

	return &Layout{root: abs, opts: opts}, nil
}

// Root returns the absolute workspace root
func (l *Layout) Root() string {
	return l.root
}

func (l *Layout) path(rel ...string) string {
	return paths.Absolute(l.root, filepath.Join(rel...))
}

// BuildDir returns the build output directory
func (l *Layout) BuildDir() string {
	return l.path(l.opts.BuildDir)
}

// EnsureBuildDir creates the build directory if absent. It is idempotent.
func (l *Layout) EnsureBuildDir() error {
	if err := paths.EnsureDirPath(l.BuildDir()); err != nil {
		return errors.ErrWorkspaceInvalid.WithMessagef("cannot create build directory %s", l.BuildDir()).WithCause(err)
	}
	return nil
}

// BootDir returns the directory holding boot-stage sources
func (l *Layout) BootDir() string {
	return l.path(l.opts.BootDir)
}

// Sources returns the boot-stage sources in lexical order.
// Every source must map to a distinct object file.
func (l *Layout) Sources() ([]string, error) {
	entries, err := os.ReadDir(l.BootDir())
	if err != nil {
		return nil, errors.ErrSourceSetInvalid.WithMessagef("cannot read boot source directory %s", l.BootDir()).WithCause(err)
	}

	var sources []string
	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !isAssemblySource(e.Name()) {
			continue
		}
		obj := objectName(e.Name())
		if prev, ok := seen[obj]; ok {
			return nil, errors.ErrSourceSetInvalid.WithMessagef("%s and %s both map to %s", prev, e.Name(), obj)
		}
		seen[obj] = e.Name()
		sources = append(sources, filepath.Join(l.BootDir(), e.Name()))
	}
	sort.Strings(sources)

	if len(sources) == 0 {
		return nil, errors.ErrSourceSetInvalid.WithMessagef("no boot sources (*.S, *.s) found under %s", l.BootDir())
	}
	return sources, nil
}

func isAssemblySource(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".S" || ext == ".s"
}

func objectName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".o"
}

// ObjectFor returns the object path produced from a boot source
func (l *Layout) ObjectFor(source string) string {
	return filepath.Join(l.BuildDir(), objectName(source))
}

// Objects returns the object paths for sources, in the same order
func (l *Layout) Objects(sources []string) []string {
	objs := make([]string, len(sources))
	for i, src := range sources {
		objs[i] = l.ObjectFor(src)
	}
	return objs
}

// LinkerScript returns the linker script path
func (l *Layout) LinkerScript() string {
	return l.path(l.opts.LinkerScript)
}

// TargetSpec returns the rustc --target value: the absolute path of a
// JSON target specification, or a built-in target triple as given.
func (l *Layout) TargetSpec() string {
	if l.HasTargetSpecFile() {
		return l.path(l.opts.TargetSpec)
	}
	return l.opts.TargetSpec
}

// HasTargetSpecFile reports whether the target is a JSON specification file
func (l *Layout) HasTargetSpecFile() bool {
	return strings.HasSuffix(l.opts.TargetSpec, ".json")
}

// TargetName is the rustc target name derived from the specification file
func (l *Layout) TargetName() string {
	return strings.TrimSuffix(filepath.Base(l.opts.TargetSpec), ".json")
}

// CrateManifest returns the kernel crate's Cargo.toml
func (l *Layout) CrateManifest() string {
	return l.path(l.opts.Crate, "Cargo.toml")
}

// CargoTargetDir is passed to cargo so its output location is fixed
func (l *Layout) CargoTargetDir() string {
	return filepath.Join(l.BuildDir(), "target")
}

// ToolchainOutput is where cargo leaves the linked image for a variant
func (l *Layout) ToolchainOutput(v Variant) string {
	return filepath.Join(l.CargoTargetDir(), l.TargetName(), v.Profile().CargoProfileDir(), filepath.Base(l.opts.Crate))
}

// KernelImage returns the canonical linked image path for a variant
func (l *Layout) KernelImage(v Variant) string {
	p := v.Profile()
	if p.InBuildDir {
		return filepath.Join(l.BuildDir(), p.ImageName)
	}
	return filepath.Join(l.root, p.ImageName)
}

// RootfsImage returns the filesystem image path
func (l *Layout) RootfsImage() string {
	return filepath.Join(l.BuildDir(), "rootfs.img")
}

// EmulatorLog returns the logging-mode emulator log path
func (l *Layout) EmulatorLog() string {
	return filepath.Join(l.BuildDir(), "qemu.log")
}

// GDBInit returns the generated gdb command file path
func (l *Layout) GDBInit() string {
	return filepath.Join(l.BuildDir(), "gdbinit")
}

// SessionManifest returns the generated debug session manifest path
func (l *Layout) SessionManifest() string {
	return filepath.Join(l.BuildDir(), "debug-session.yaml")
}

// HistoryDB returns the build history database path
func (l *Layout) HistoryDB() string {
	return filepath.Join(l.BuildDir(), "history.db")
}

// Artifacts lists the final artifacts a successful build of v produces
func (l *Layout) Artifacts(v Variant) []Artifact {
	arts := []Artifact{{Path: l.KernelImage(v), Kind: KindLinkedImage, Variant: v}}
	if v.Profile().BuildsRootfs {
		arts = append(arts, Artifact{Path: l.RootfsImage(), Kind: KindFilesystemImage, Variant: v})
	}
	return arts
}

// Rel returns p relative to the workspace root for display
func (l *Layout) Rel(p string) string {
	rel, err := filepath.Rel(l.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}

// String implements fmt.Stringer
func (l *Layout) String() string {
	return fmt.Sprintf("workspace %s (build dir %s)", l.root, l.opts.BuildDir)
}
