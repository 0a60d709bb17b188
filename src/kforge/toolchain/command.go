// Package toolchain invokes the external tools kforge orchestrates:
// assembler, compiler driver, filesystem utilities, emulator and debugger.
// Every invocation is described by a structured Command which is validated
// before anything is executed.
package toolchain

import (
	"fmt"
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
)

// ArgKind describes how an argument is rendered on the command line
type ArgKind int

const (
	// KindSwitch is a bare flag: -nographic
	KindSwitch ArgKind = iota
	// KindOption is a flag followed by a separate value: -o build/boot.o
	KindOption
	// KindInline is a flag with an attached value: -mcpu=arm1176jzf-s
	KindInline
	// KindPositional is a bare value: boot.S
	KindPositional
)

// Arg is one typed command-line argument
type Arg struct {
	Kind  ArgKind
	Name  string
	Value string
}

// Switch returns a bare flag argument
func Switch(name string) Arg {
	return Arg{Kind: KindSwitch, Name: name}
}

// Option returns a flag with a separate value argument
func Option(name, value string) Arg {
	return Arg{Kind: KindOption, Name: name, Value: value}
}

// Inline returns a flag with its value attached by '='
func Inline(name, value string) Arg {
	return Arg{Kind: KindInline, Name: name, Value: value}
}

// Positional returns a bare value argument
func Positional(value string) Arg {
	return Arg{Kind: KindPositional, Value: value}
}

// Render returns the argv words for the argument
func (a Arg) Render() []string {
	switch a.Kind {
	case KindSwitch:
		return []string{a.Name}
	case KindOption:
		return []string{a.Name, a.Value}
	case KindInline:
		return []string{a.Name + "=" + a.Value}
	default:
		return []string{a.Value}
	}
}

func (a Arg) validate() error {
	if strings.ContainsRune(a.Name, 0) || strings.ContainsRune(a.Value, 0) {
		return fmt.Errorf("argument %q contains a NUL byte", a.Name+a.Value)
	}
	switch a.Kind {
	case KindSwitch, KindOption, KindInline:
		if !strings.HasPrefix(a.Name, "-") {
			return fmt.Errorf("flag %q must start with '-'", a.Name)
		}
		if strings.ContainsAny(a.Name, " \t\n=") {
			return fmt.Errorf("flag %q contains whitespace or '='", a.Name)
		}
		if a.Kind != KindSwitch && a.Value == "" {
			return fmt.Errorf("flag %q requires a value", a.Name)
		}
	case KindPositional:
		if a.Value == "" {
			return fmt.Errorf("empty positional argument")
		}
	default:
		return fmt.Errorf("unknown argument kind %d", a.Kind)
	}
	return nil
}

// Command describes a single external tool invocation
type Command struct {
	// Stage names the pipeline stage or launcher mode issuing the command
	Stage string

	// Tool is the executable name or path
	Tool string

	// Args are the typed arguments, in order
	Args []Arg

	// Dir is the working directory; it must be set explicitly by the caller
	Dir string

	// Env holds environment overrides on top of the inherited environment
	Env map[string]string

	// Interactive attaches the caller's stdin (emulator console)
	Interactive bool
}

// New creates a Command for the given stage and tool
func New(stage, tool string, args ...Arg) Command {
	return Command{Stage: stage, Tool: tool, Args: args}
}

// With returns a copy of the command with more arguments appended
func (c Command) With(args ...Arg) Command {
	out := c
	out.Args = append(append([]Arg(nil), c.Args...), args...)
	return out
}

// WithPrefix returns a command that runs c through a wrapper tool such as
// sudo. An empty prefix returns c unchanged.
func (c Command) WithPrefix(prefix []string) Command {
	if len(prefix) == 0 {
		return c
	}
	out := c
	out.Tool = prefix[0]
	args := make([]Arg, 0, len(prefix)+len(c.Args))
	for _, p := range prefix[1:] {
		args = append(args, Positional(p))
	}
	args = append(args, Positional(c.Tool))
	out.Args = append(args, c.Args...)
	return out
}

// Validate checks the command before it is executed
func (c Command) Validate() error {
	if strings.TrimSpace(c.Tool) == "" {
		return errors.ErrInvalidCommand.WithMessagef("%s: empty tool name", c.Stage)
	}
	for i, a := range c.Args {
		if err := a.validate(); err != nil {
			return errors.ErrInvalidCommand.WithMessagef("%s: %s argument %d", c.Stage, c.Tool, i).WithCause(err)
		}
	}
	return nil
}

// Argv returns the arguments after the tool name
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		argv = append(argv, a.Render()...)
	}
	return argv
}

// String returns a shell-quoted rendering for logs
func (c Command) String() string {
	words := append([]string{c.Tool}, c.Argv()...)
	for i, w := range words {
		words[i] = quote(w)
	}
	return strings.Join(words, " ")
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
