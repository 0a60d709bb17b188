// Package version holds build-time version information for kforge.
package version

import (
	"fmt"
	"runtime"
)

// Info holds version information. Values are set at build time via ldflags.
type Info struct {
	// ReleaseVersion is the semantic version (e.g., "0.3.0")
	ReleaseVersion string `json:"release_version" yaml:"release_version"`

	// BuildDate is the ISO 8601 build timestamp
	BuildDate string `json:"build_date" yaml:"build_date"`

	// GitCommit is the short git commit hash
	GitCommit string `json:"git_commit" yaml:"git_commit"`
}

// Default values for unset version info
var (
	DefaultReleaseVersion = "0.0.0"
	DefaultBuildDate      = "unknown"
	DefaultGitCommit      = "unknown"
)

// New creates a new Info with default values
func New() *Info {
	return &Info{
		ReleaseVersion: DefaultReleaseVersion,
		BuildDate:      DefaultBuildDate,
		GitCommit:      DefaultGitCommit,
	}
}

// GoVersion returns the Go runtime version
func GoVersion() string {
	return runtime.Version()
}

// Short returns a short version string (release version + commit)
func (i *Info) Short() string {
	return fmt.Sprintf("v%s-%s", i.ReleaseVersion, i.GitCommit)
}

// Full returns a detailed multi-line version string
func (i *Info) Full() string {
	return fmt.Sprintf(`kforge %s
  Build Date: %s
  Git Commit: %s
  Go Version: %s
  Platform:   %s/%s`,
		i.Short(),
		i.BuildDate,
		i.GitCommit,
		GoVersion(),
		runtime.GOOS, runtime.GOARCH,
	)
}
