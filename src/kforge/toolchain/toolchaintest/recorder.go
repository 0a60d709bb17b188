// Package toolchaintest provides a recording toolchain.Runner for tests.
package toolchaintest

import (
	"context"
	"sync"

	"github.com/bitswalk/kforge/src/kforge/toolchain"
)

// HandlerFunc simulates one tool. It may create files the real tool would.
type HandlerFunc func(cmd toolchain.Command) error

// Recorder records every command and dispatches it to a per-tool handler.
// Commands without a handler succeed without side effects.
type Recorder struct {
	mu       sync.Mutex
	Handlers map[string]HandlerFunc
	calls    []toolchain.Command
}

// New creates an empty Recorder
func New() *Recorder {
	return &Recorder{Handlers: map[string]HandlerFunc{}}
}

// Handle registers the handler for a tool name
func (r *Recorder) Handle(tool string, h HandlerFunc) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Handlers[tool] = h
	return r
}

// Run implements toolchain.Runner
func (r *Recorder) Run(ctx context.Context, cmd toolchain.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	h := r.Handlers[cmd.Tool]
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if h == nil {
		return nil
	}
	return h(cmd)
}

// Calls returns a copy of the recorded commands in invocation order
func (r *Recorder) Calls() []toolchain.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]toolchain.Command(nil), r.calls...)
}

// CallsTo returns the recorded commands for one tool
func (r *Recorder) CallsTo(tool string) []toolchain.Command {
	var out []toolchain.Command
	for _, c := range r.Calls() {
		if c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

// Stages returns the stage of every recorded command, in order
func (r *Recorder) Stages() []string {
	var out []string
	for _, c := range r.Calls() {
		out = append(out, c.Stage)
	}
	return out
}
