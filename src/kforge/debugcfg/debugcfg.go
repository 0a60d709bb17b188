// Package debugcfg renders the gdb command file and session manifest used to
// attach a debugger to an emulator halted at reset.
package debugcfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/paths"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/run"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
	"gopkg.in/yaml.v3"
)

// Config describes one debugger session
type Config struct {
	SymbolFile          string         `yaml:"symbol_file"`
	Endpoint            string         `yaml:"endpoint"`
	Architecture        string         `yaml:"architecture"`
	DisassembleNextLine bool           `yaml:"disassemble_next_line"`
	FallbackMode        string         `yaml:"fallback_mode"`
	ForceMode           string         `yaml:"force_mode"`
	Variant             layout.Variant `yaml:"variant"`
}

// FromRun derives the session from the configuration that launches the
// emulator, so the symbols always match the running kernel. Only debug-halt
// runs expose a debug endpoint.
func FromRun(cfg run.Configuration) (Config, error) {
	if cfg.Mode != run.ModeDebugHalt {
		return Config{}, errors.ErrConfigInvalid.WithMessagef("debugger configuration requires a debug-halt run, got %s", cfg.Mode)
	}
	if cfg.Endpoint == "" {
		return Config{}, errors.ErrConfigInvalid.WithMessage("debug-halt run has no debug endpoint")
	}
	if !filepath.IsAbs(cfg.KernelImage) {
		return Config{}, errors.ErrConfigInvalid.WithMessagef("symbol file %q must be an absolute path", cfg.KernelImage)
	}

	return Config{
		SymbolFile:          cfg.KernelImage,
		Endpoint:            cfg.Endpoint,
		Architecture:        "arm",
		DisassembleNextLine: true,
		FallbackMode:        "thumb",
		ForceMode:           "arm",
		Variant:             cfg.Variant,
	}, nil
}

// Render returns the gdb command file contents
func (c Config) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "target remote %s\n", c.Endpoint)
	fmt.Fprintf(&b, "symbol-file %s\n", quoteArg(c.SymbolFile))
	fmt.Fprintf(&b, "set architecture %s\n", c.Architecture)
	fmt.Fprintf(&b, "set disassemble-next-line %s\n", onOff(c.DisassembleNextLine))
	fmt.Fprintf(&b, "set arm fallback-mode %s\n", c.FallbackMode)
	fmt.Fprintf(&b, "set arm force-mode %s\n", c.ForceMode)
	return b.String()
}

// quoteArg quotes a file name for gdb, which splits command arguments on
// whitespace and treats backslash as an escape inside double quotes.
func quoteArg(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Write writes the gdb command file to path
func Write(c Config, path string) error {
	return writeFile(path, []byte(c.Render()))
}

// Manifest is the YAML description of a debug session for editors and IDEs
type Manifest struct {
	Session  Config `yaml:"session"`
	GDBInit  string `yaml:"gdbinit"`
	Debugger string `yaml:"debugger"`
	Attach   string `yaml:"attach"`
}

// NewManifest describes the session and how to attach to it
func NewManifest(c Config, gdbinit, debugger string) Manifest {
	return Manifest{
		Session:  c,
		GDBInit:  gdbinit,
		Debugger: debugger,
		Attach:   AttachCommand(debugger, gdbinit).String(),
	}
}

// WriteManifest writes the session manifest to path
func WriteManifest(m Manifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.ErrInternal.WithMessage("failed to encode debug session manifest").WithCause(err)
	}
	return writeFile(path, data)
}

// ReadManifest loads a session manifest written by WriteManifest
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, errors.ErrArtifactMissing.WithMessagef("debug session manifest not found at %s", path).WithCause(err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, errors.ErrArtifactInvalid.WithMessagef("cannot parse debug session manifest %s", path).WithCause(err)
	}
	return m, nil
}

// LoadSession reads a saved session manifest and checks that the files it
// points at still exist
func LoadSession(path string) (Manifest, error) {
	m, err := ReadManifest(path)
	if err != nil {
		return m, err
	}
	if m.Debugger == "" {
		return m, errors.ErrArtifactInvalid.WithMessagef("debug session manifest %s names no debugger", path)
	}
	for what, p := range map[string]string{"gdb command file": m.GDBInit, "symbol file": m.Session.SymbolFile} {
		if !paths.IsFile(p) {
			return m, errors.ErrArtifactMissing.WithMessagef("%s not found at %s; run `kforge debug` first", what, p)
		}
	}
	return m, nil
}

// Command is the interactive debugger invocation for the session
func (m Manifest) Command(dir string) toolchain.Command {
	cmd := AttachCommand(m.Debugger, m.GDBInit)
	cmd.Dir = dir
	cmd.Interactive = true
	return cmd
}

// AttachCommand is the debugger invocation that loads the command file
func AttachCommand(debugger, gdbinit string) toolchain.Command {
	return toolchain.New("attach", debugger, toolchain.Option("-x", gdbinit))
}

func writeFile(path string, data []byte) error {
	if err := paths.EnsureDir(path); err != nil {
		return errors.ErrWorkspaceInvalid.WithMessagef("cannot create directory for %s", path).WithCause(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
