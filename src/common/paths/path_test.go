package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("KFORGE_TEST_DIR", "/opt/board")

	assert.Equal(t, home, Expand("~"))
	assert.Equal(t, filepath.Join(home, "src/kernel"), Expand("~/src/kernel"))
	assert.Equal(t, "/opt/board/kernel", Expand("$KFORGE_TEST_DIR/kernel"))
	assert.Equal(t, "relative/path", Expand("relative/path"))
}

func TestAbsolute(t *testing.T) {
	assert.Equal(t, "/ws/build/rootfs.img", Absolute("/ws", "build/rootfs.img"))
	assert.Equal(t, "/etc/kforge", Absolute("/ws", "/etc//kforge/"))
}

func TestFileChecks(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "kernel.elf")
	require.NoError(t, os.WriteFile(file, []byte("\x7fELF"), 0644))

	assert.True(t, Exists(dir))
	assert.True(t, IsDir(dir))
	assert.False(t, IsFile(dir))
	assert.True(t, IsFile(file))
	assert.Equal(t, int64(4), Size(file))
	assert.Equal(t, int64(-1), Size(dir))
	assert.False(t, Exists(filepath.Join(dir, "missing")))
}

func TestEnsureDirIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "build", "nested")
	require.NoError(t, EnsureDirPath(dir))
	require.NoError(t, EnsureDirPath(dir))
	require.NoError(t, EnsureDir(filepath.Join(dir, "sub", "file.o")))
	assert.True(t, IsDir(filepath.Join(dir, "sub")))
}
