package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/kforge/layout"
)

func TestMachine_ReleasePath(t *testing.T) {
	m := NewMachine(layout.Release.Profile())
	for _, s := range []State{StateAssembling, StateLinking, StateFinalizing, StateDone} {
		require.NoError(t, m.Transition(s))
	}
	assert.Equal(t, []State{StateInit, StateAssembling, StateLinking, StateFinalizing, StateDone}, m.Visited())
}

func TestMachine_DebugPath(t *testing.T) {
	m := NewMachine(layout.Debug.Profile())
	for _, s := range []State{StateAssembling, StateLinking, StateImagingFilesystem, StateFinalizing, StateDone} {
		require.NoError(t, m.Transition(s))
	}
	assert.Equal(t, StateDone, m.State())
}

func TestMachine_RejectsSkippedStates(t *testing.T) {
	tests := []struct {
		name    string
		variant layout.Variant
		path    []State
		bad     State
	}{
		{"link before assemble", layout.Release, nil, StateLinking},
		{"release images filesystem", layout.Release, []State{StateAssembling, StateLinking}, StateImagingFilesystem},
		{"debug skips filesystem", layout.Debug, []State{StateAssembling, StateLinking}, StateFinalizing},
		{"done before finalize", layout.Release, []State{StateAssembling}, StateDone},
		{"backwards", layout.Release, []State{StateAssembling, StateLinking}, StateAssembling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(tt.variant.Profile())
			for _, s := range tt.path {
				require.NoError(t, m.Transition(s))
			}
			err := m.Transition(tt.bad)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
		})
	}
}

func TestMachine_FailedFromAnyNonTerminalState(t *testing.T) {
	for _, path := range [][]State{
		nil,
		{StateAssembling},
		{StateAssembling, StateLinking},
		{StateAssembling, StateLinking, StateImagingFilesystem},
		{StateAssembling, StateLinking, StateImagingFilesystem, StateFinalizing},
	} {
		m := NewMachine(layout.Debug.Profile())
		for _, s := range path {
			require.NoError(t, m.Transition(s))
		}
		require.NoError(t, m.Transition(StateFailed))
		assert.True(t, m.State().IsTerminal())
	}
}

func TestMachine_TerminalStatesAreFinal(t *testing.T) {
	m := NewMachine(layout.Release.Profile())
	require.NoError(t, m.Transition(StateFailed))
	assert.Error(t, m.Transition(StateFailed))
	assert.Error(t, m.Transition(StateAssembling))
}
