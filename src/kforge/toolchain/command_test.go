package toolchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitswalk/kforge/src/common/errors"
)

func TestCommand_Argv(t *testing.T) {
	cmd := New("assemble", "arm-none-eabi-as",
		Inline("-mcpu", "arm1176jzf-s"),
		Inline("-mfloat-abi", "hard"),
		Positional("/ws/kernel/boot/boot.S"),
		Option("-o", "/ws/build/boot.o"),
	)

	require.NoError(t, cmd.Validate())
	assert.Equal(t, []string{
		"-mcpu=arm1176jzf-s",
		"-mfloat-abi=hard",
		"/ws/kernel/boot/boot.S",
		"-o", "/ws/build/boot.o",
	}, cmd.Argv())
}

func TestCommand_PathsWithSpacesStayOneWord(t *testing.T) {
	cmd := New("link", "cargo", Option("-C", "link-arg=/my ws/build/boot.o"))
	require.NoError(t, cmd.Validate())
	assert.Equal(t, []string{"-C", "link-arg=/my ws/build/boot.o"}, cmd.Argv())
	assert.Equal(t, "cargo -C 'link-arg=/my ws/build/boot.o'", cmd.String())
}

func TestCommand_Validate(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
	}{
		{"empty tool", New("x", "  ")},
		{"flag without dash", New("x", "qemu", Switch("nographic"))},
		{"option without value", New("x", "qemu", Option("-kernel", ""))},
		{"inline name with equals", New("x", "as", Inline("-mcpu=", "arm"))},
		{"empty positional", New("x", "as", Positional(""))},
		{"nul byte", New("x", "as", Positional("boot\x00.S"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidCommand))
		})
	}
}

func TestCommand_WithDoesNotAlias(t *testing.T) {
	base := New("run", "qemu-system-arm", Option("-M", "raspi0"))
	a := base.With(Switch("-S"))
	b := base.With(Option("-d", "int"))

	assert.Equal(t, []string{"-M", "raspi0", "-S"}, a.Argv())
	assert.Equal(t, []string{"-M", "raspi0", "-d", "int"}, b.Argv())
	assert.Len(t, base.Args, 1)
}

func TestCommand_WithPrefix(t *testing.T) {
	cmd := New("rootfs", "mount", Option("-o", "loop"), Positional("/ws/build/rootfs.img"), Positional("/tmp/mnt"))

	same := cmd.WithPrefix(nil)
	assert.Equal(t, "mount", same.Tool)

	sudo := cmd.WithPrefix([]string{"sudo", "-n"})
	require.NoError(t, sudo.Validate())
	assert.Equal(t, "sudo", sudo.Tool)
	assert.Equal(t, []string{"-n", "mount", "-o", "loop", "/ws/build/rootfs.img", "/tmp/mnt"}, sudo.Argv())
}
