package build

import (
	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/kforge/layout"
)

// State is the pipeline's position in its linear state machine
type State string

const (
	StateInit              State = "init"
	StateAssembling        State = "assembling"
	StateLinking           State = "linking"
	StateImagingFilesystem State = "imaging-filesystem"
	StateFinalizing        State = "finalizing"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// IsTerminal reports whether the state is terminal (finished).
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Machine tracks pipeline state and rejects out-of-order transitions.
// Whether the filesystem image state is on the path depends on the profile.
type Machine struct {
	profile layout.Profile
	state   State
	visited []State
}

// NewMachine returns a machine in StateInit
func NewMachine(profile layout.Profile) *Machine {
	return &Machine{
		profile: profile,
		state:   StateInit,
		visited: []State{StateInit},
	}
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Visited returns every state entered so far, in order
func (m *Machine) Visited() []State {
	return append([]State(nil), m.visited...)
}

// Transition moves to the next state. Failed is reachable from every
// non-terminal state; nothing leaves a terminal state.
func (m *Machine) Transition(to State) error {
	if !m.allowed(to) {
		return errors.ErrInvalidTransition.WithMessagef("cannot move from %s to %s", m.state, to)
	}
	m.state = to
	m.visited = append(m.visited, to)
	return nil
}

func (m *Machine) allowed(to State) bool {
	if m.state.IsTerminal() {
		return false
	}
	if to == StateFailed {
		return true
	}

	switch m.state {
	case StateInit:
		return to == StateAssembling
	case StateAssembling:
		return to == StateLinking
	case StateLinking:
		if m.profile.BuildsRootfs {
			return to == StateImagingFilesystem
		}
		return to == StateFinalizing
	case StateImagingFilesystem:
		return to == StateFinalizing
	case StateFinalizing:
		return to == StateDone
	default:
		return false
	}
}
