package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("Debug")
	require.NoError(t, err)
	assert.Equal(t, Debug, v)

	v, err = ParseVariant(" release ")
	require.NoError(t, err)
	assert.Equal(t, Release, v)

	_, err = ParseVariant("profile")
	assert.Error(t, err)
}

func TestVariant_Profile(t *testing.T) {
	rel := Release.Profile()
	assert.True(t, rel.OptimizedProfile)
	assert.Equal(t, 0, rel.DebugInfo)
	assert.Equal(t, "kernel.elf", rel.ImageName)
	assert.False(t, rel.BuildsRootfs)
	assert.Equal(t, "release", rel.CargoProfileDir())

	dbg := Debug.Profile()
	assert.False(t, dbg.OptimizedProfile)
	assert.Equal(t, 2, dbg.DebugInfo)
	assert.Equal(t, "kernel_debug.elf", dbg.ImageName)
	assert.True(t, dbg.BuildsRootfs)
	assert.Equal(t, "debug", dbg.CargoProfileDir())
}

func TestVariant_FlagValue(t *testing.T) {
	v := Release
	require.NoError(t, v.Set("debug"))
	assert.Equal(t, Debug, v)
	assert.Error(t, v.Set("fast"))
	assert.Equal(t, "variant", v.Type())

	require.NoError(t, v.Set(""))
	assert.Equal(t, Variant(""), v)
}
