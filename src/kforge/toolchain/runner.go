package toolchain

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/logs"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the toolchain package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Runner executes a validated Command and blocks until it exits
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// stderrTail bounds how much tool stderr is kept for error messages
const stderrTail = 4096

// ExecRunner runs commands as host processes
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner creates a runner wired to the process stdio
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run executes the command. A non-zero exit becomes an ErrToolInvocation
// carrying the stage, tool and exit status.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	if err := c.Validate(); err != nil {
		return err
	}

	log.Debug("Running tool", "stage", c.Stage, "cmd", c.String(), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, c.Tool, c.Argv()...)
	cmd.Dir = c.Dir

	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	if c.Interactive {
		cmd.Stdin = r.Stdin
	}

	var stderr tailBuffer
	cmd.Stdout = r.Stdout
	if r.Stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, r.Stderr)
	} else {
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if stderrors.Is(err, exec.ErrNotFound) {
		return errors.ErrToolNotFound.WithMessagef("%s: %s not found in PATH", c.Stage, c.Tool).WithCause(err)
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		msg := fmt.Sprintf("%s: %s exited with status %d", c.Stage, c.Tool, code)
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			msg += ": " + tail
		}
		e := errors.ErrToolInvocation.WithMessage(msg).WithCause(err)
		if code > 0 {
			e = e.WithExitCode(code)
		}
		return e
	}

	return errors.ErrToolInvocation.WithMessagef("%s: %s could not be run", c.Stage, c.Tool).WithCause(err)
}

// tailBuffer keeps the last stderrTail bytes written to it
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n, _ := t.buf.Write(p)
	if over := t.buf.Len() - stderrTail; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
