// Package build provides the kernel build pipeline: boot sources are
// assembled, the kernel is cross-compiled and linked, a filesystem image is
// produced for debug builds, and the result is confirmed.
package build

import (
	"context"
	"time"

	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
)

// StageName identifies a pipeline stage
type StageName string

const (
	StageAssemble StageName = "assemble"
	StageLink     StageName = "link"
	StageRootfs   StageName = "rootfs"
	StageFinalize StageName = "finalize"
)

// Stage defines the interface for a single build pipeline stage
type Stage interface {
	// Name returns the stage name
	Name() StageName

	// State is the pipeline state while the stage runs
	State() State

	// Enabled reports whether the stage runs for the given profile
	Enabled(p layout.Profile) bool

	// Validate checks whether this stage can run given the current context
	Validate(ctx context.Context, sc *StageContext) error

	// Execute runs the stage and reports its outcome
	Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) Outcome
}

// ProgressFunc reports stage progress (0-100) with an optional message
type ProgressFunc func(percent int, message string)

// StageContext holds shared state passed through the pipeline
type StageContext struct {
	RunID   string
	Variant layout.Variant
	Profile layout.Profile
	Layout  *layout.Layout
	Config  Config
	Runner  toolchain.Runner

	// Populated by the assemble stage
	Sources []string
	Objects []string

	// Final artifacts, appended by the stages that produce them
	Artifacts []layout.Artifact
}

// Status is the result classification of one stage
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Outcome is the explicit result of one stage. The pipeline driver checks
// it and halts on the first failure.
type Outcome struct {
	Stage     StageName
	State     State
	Status    Status
	Artifacts []layout.Artifact
	Err       error
	Duration  time.Duration
}

// OK reports whether the stage succeeded
func (o Outcome) OK() bool {
	return o.Status == StatusCompleted && o.Err == nil
}

// Succeeded builds a successful outcome
func Succeeded(s Stage, artifacts ...layout.Artifact) Outcome {
	return Outcome{
		Stage:     s.Name(),
		State:     s.State(),
		Status:    StatusCompleted,
		Artifacts: artifacts,
	}
}

// Failed builds a failed outcome
func Failed(s Stage, err error) Outcome {
	return Outcome{
		Stage:  s.Name(),
		State:  s.State(),
		Status: StatusFailed,
		Err:    err,
	}
}
