package build

import (
	"context"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/paths"
	"github.com/bitswalk/kforge/src/kforge/layout"
)

// FinalizeStage confirms every final artifact of the variant is in place
type FinalizeStage struct{}

// NewFinalizeStage creates a new finalize stage
func NewFinalizeStage() *FinalizeStage {
	return &FinalizeStage{}
}

// Name returns the stage name
func (s *FinalizeStage) Name() StageName {
	return StageFinalize
}

// State returns the pipeline state while finalizing
func (s *FinalizeStage) State() State {
	return StateFinalizing
}

// Enabled reports that finalization runs for every variant
func (s *FinalizeStage) Enabled(layout.Profile) bool {
	return true
}

// Validate has nothing to check ahead of Execute
func (s *FinalizeStage) Validate(ctx context.Context, sc *StageContext) error {
	return nil
}

// Execute checks that the artifacts the variant promises exist and are non-empty
func (s *FinalizeStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) Outcome {
	for _, a := range sc.Layout.Artifacts(sc.Variant) {
		if paths.Size(a.Path) <= 0 {
			return Failed(s, errors.ErrArtifactMissing.WithMessagef("%s %s missing after build", a.Kind, a.Path))
		}
	}
	progress(100, "Build complete")
	return Succeeded(s)
}
