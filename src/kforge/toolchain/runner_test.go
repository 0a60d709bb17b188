package toolchain

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitswalk/kforge/src/common/errors"
)

func TestExecRunner_Success(t *testing.T) {
	var stdout bytes.Buffer
	r := &ExecRunner{Stdout: &stdout}

	cmd := New("test", "sh", Option("-c", "echo $KFORGE_GREETING"))
	cmd.Env = map[string]string{"KFORGE_GREETING": "hello"}
	cmd.Dir = t.TempDir()

	require.NoError(t, r.Run(context.Background(), cmd))
	assert.Equal(t, "hello\n", stdout.String())
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	r := &ExecRunner{}

	err := r.Run(context.Background(), New("assemble", "sh", Option("-c", "echo bad opcode >&2; exit 3")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrToolInvocation))
	assert.Equal(t, 3, errors.GetExitCode(err))
	assert.Contains(t, err.Error(), "assemble: sh exited with status 3")
	assert.Contains(t, err.Error(), "bad opcode")
}

func TestExecRunner_ToolNotFound(t *testing.T) {
	r := &ExecRunner{}

	err := r.Run(context.Background(), New("run", "kforge-no-such-tool-xyz"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrToolNotFound))
}

func TestExecRunner_RejectsInvalidCommand(t *testing.T) {
	r := &ExecRunner{}
	err := r.Run(context.Background(), New("run", "sh", Switch("no-dash")))
	assert.True(t, errors.Is(err, errors.ErrInvalidCommand))
}

func TestTailBuffer(t *testing.T) {
	var tb tailBuffer
	big := bytes.Repeat([]byte("a"), stderrTail)
	_, _ = tb.Write(big)
	_, _ = tb.Write([]byte("END"))
	assert.Len(t, tb.String(), stderrTail)
	assert.True(t, bytes.HasSuffix([]byte(tb.String()), []byte("END")))
}
