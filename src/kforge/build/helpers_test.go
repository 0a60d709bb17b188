package build

import (
	"context"
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
	"github.com/bitswalk/kforge/src/kforge/toolchain/toolchaintest"
)

// fixture is a temp workspace plus a fake toolchain that produces the files
// the real tools would
type fixture struct {
	t      *testing.T
	root   string
	layout *layout.Layout
	runner *toolchaintest.Recorder
	config Config

	mu       sync.Mutex
	mounted  []map[string]string // mount contents captured at each umount
	mountDir []string
}

func newFixture(t *testing.T, sources ...string) *fixture {
	t.Helper()
	if len(sources) == 0 {
		sources = []string{"boot.S"}
	}

	root := t.TempDir()
	files := map[string]string{
		"kernel/linker.ld":               "ENTRY(_start)\n",
		"kernel/Cargo.toml":              "[package]\nname = \"kernel\"\n",
		"kernel/armv6a-none-eabihf.json": "{\"arch\": \"arm\"}\n",
		"kernel/src/main.rs":             "#![no_std]\n",
	}
	for _, src := range sources {
		files[filepath.Join("kernel/boot", src)] = ".global _start\n"
	}
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}

	l, err := layout.New(root, layout.Options{})
	require.NoError(t, err)

	f := &fixture{
		t:      t,
		root:   root,
		layout: l,
		runner: toolchaintest.New(),
		config: DefaultConfig(),
	}
	tools := f.config.Tools

	f.runner.Handle(tools.Assembler, func(cmd toolchain.Command) error {
		obj := optionValue(cmd, "-o")
		return os.WriteFile(obj, []byte("obj:"+obj), 0644)
	})
	f.runner.Handle(tools.Cargo, func(cmd toolchain.Command) error {
		v := layout.Debug
		if hasSwitch(cmd, "--release") {
			v = layout.Release
		}
		out := l.ToolchainOutput(v)
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return err
		}
		return toolchaintest.WriteELF(out, elf.EM_ARM, []byte("kernel-"+string(v)))
	})
	f.runner.Handle(tools.Umount, func(cmd toolchain.Command) error {
		dir := lastPositional(cmd)
		contents := map[string]string{}
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, e := range entries {
				data, err := os.ReadFile(filepath.Join(dir, e.Name()))
				if err != nil {
					return err
				}
				contents[e.Name()] = string(data)
			}
		}
		f.mu.Lock()
		f.mounted = append(f.mounted, contents)
		f.mountDir = append(f.mountDir, dir)
		f.mu.Unlock()
		return nil
	})
	return f
}

func (f *fixture) pipeline(opts ...Option) *Pipeline {
	return NewPipeline(f.layout, f.config, f.runner, opts...)
}

func optionValue(cmd toolchain.Command, name string) string {
	for _, a := range cmd.Args {
		if a.Kind == toolchain.KindOption && a.Name == name {
			return a.Value
		}
	}
	return ""
}

func hasSwitch(cmd toolchain.Command, name string) bool {
	for _, a := range cmd.Args {
		if a.Kind == toolchain.KindSwitch && a.Name == name {
			return true
		}
	}
	return false
}

func lastPositional(cmd toolchain.Command) string {
	for i := len(cmd.Args) - 1; i >= 0; i-- {
		if cmd.Args[i].Kind == toolchain.KindPositional {
			return cmd.Args[i].Value
		}
	}
	return ""
}

// fakeRecorder captures pipeline history calls
type fakeRecorder struct {
	started  []RunInfo
	stages   []Outcome
	finished []*Result
	err      error
}

func (r *fakeRecorder) StartRun(_ context.Context, run RunInfo) error {
	r.started = append(r.started, run)
	return r.err
}

func (r *fakeRecorder) RecordStage(_ context.Context, _ string, o Outcome) error {
	r.stages = append(r.stages, o)
	return r.err
}

func (r *fakeRecorder) FinishRun(_ context.Context, res *Result) error {
	r.finished = append(r.finished, res)
	return r.err
}

var errBoom = fmt.Errorf("boom")
