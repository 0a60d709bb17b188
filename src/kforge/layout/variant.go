package layout

import (
	"strings"

	"github.com/bitswalk/kforge/src/common/errors"
)

// Variant is a named build configuration
type Variant string

const (
	Release Variant = "release"
	Debug   Variant = "debug"
)

// Variants returns all valid variants
func Variants() []Variant {
	return []Variant{Release, Debug}
}

// ParseVariant validates a user-supplied variant name
func ParseVariant(s string) (Variant, error) {
	switch Variant(strings.ToLower(strings.TrimSpace(s))) {
	case Release:
		return Release, nil
	case Debug:
		return Debug, nil
	default:
		return "", errors.ErrConfigInvalid.WithMessagef("unknown build variant %q (expected release or debug)", s)
	}
}

// Profile is what a variant changes in the pipeline
type Profile struct {
	Variant Variant

	// OptimizedProfile selects cargo's release profile (--release)
	OptimizedProfile bool

	// DebugInfo is the rustc -C debuginfo level
	DebugInfo int

	// ImageName is the file name of the canonical linked image
	ImageName string

	// InBuildDir places the canonical image under the build directory
	// instead of the workspace root
	InBuildDir bool

	// BuildsRootfs enables the filesystem image stage
	BuildsRootfs bool
}

// Profile returns the configuration selected by the variant
func (v Variant) Profile() Profile {
	switch v {
	case Debug:
		return Profile{
			Variant:      Debug,
			DebugInfo:    2,
			ImageName:    "kernel_debug.elf",
			InBuildDir:   true,
			BuildsRootfs: true,
		}
	default:
		return Profile{
			Variant:          Release,
			OptimizedProfile: true,
			DebugInfo:        0,
			ImageName:        "kernel.elf",
		}
	}
}

// CargoProfileDir is the directory cargo writes the profile's outputs to
func (p Profile) CargoProfileDir() string {
	if p.OptimizedProfile {
		return "release"
	}
	return "debug"
}

// String implements fmt.Stringer
func (v Variant) String() string {
	return string(v)
}

// Set implements pflag.Value so a Variant can be bound to a command flag.
// An empty string leaves the variant unset.
func (v *Variant) Set(s string) error {
	if strings.TrimSpace(s) == "" {
		*v = ""
		return nil
	}
	parsed, err := ParseVariant(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Type implements pflag.Value
func (v *Variant) Type() string {
	return "variant"
}
