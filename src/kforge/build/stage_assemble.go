package build

import (
	"context"
	"fmt"

	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
	"golang.org/x/sync/errgroup"
)

// AssembleStage assembles every boot-stage source into an object file
type AssembleStage struct{}

// NewAssembleStage creates a new assemble stage
func NewAssembleStage() *AssembleStage {
	return &AssembleStage{}
}

// Name returns the stage name
func (s *AssembleStage) Name() StageName {
	return StageAssemble
}

// State returns the pipeline state while assembling
func (s *AssembleStage) State() State {
	return StateAssembling
}

// Enabled reports that assembly runs for every variant
func (s *AssembleStage) Enabled(layout.Profile) bool {
	return true
}

// Validate resolves the source set. An empty or ambiguous set is an error.
func (s *AssembleStage) Validate(ctx context.Context, sc *StageContext) error {
	sources, err := sc.Layout.Sources()
	if err != nil {
		return err
	}
	sc.Sources = sources
	sc.Objects = sc.Layout.Objects(sources)
	return nil
}

// Execute runs the assembler once per source. The first failure fails the
// stage; in parallel mode every started invocation is joined first.
func (s *AssembleStage) Execute(ctx context.Context, sc *StageContext, progress ProgressFunc) Outcome {
	progress(0, fmt.Sprintf("Assembling %d boot sources", len(sc.Sources)))

	var err error
	if sc.Config.ParallelAssembly && len(sc.Sources) > 1 {
		err = s.assembleParallel(ctx, sc)
	} else {
		err = s.assembleSequential(ctx, sc, progress)
	}
	if err != nil {
		return Failed(s, err)
	}

	arts := make([]layout.Artifact, len(sc.Objects))
	for i, obj := range sc.Objects {
		arts[i] = layout.Artifact{Path: obj, Kind: layout.KindObject, Variant: sc.Variant}
	}
	progress(100, "Boot sources assembled")
	return Succeeded(s, arts...)
}

func (s *AssembleStage) assembleSequential(ctx context.Context, sc *StageContext, progress ProgressFunc) error {
	for i, src := range sc.Sources {
		if err := sc.Runner.Run(ctx, s.command(sc, src, sc.Objects[i])); err != nil {
			return err
		}
		progress((i+1)*100/len(sc.Sources), "Assembled "+sc.Layout.Rel(src))
	}
	return nil
}

func (s *AssembleStage) assembleParallel(ctx context.Context, sc *StageContext) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sc.Config.AssemblyJobs)

	for i, src := range sc.Sources {
		cmd := s.command(sc, src, sc.Objects[i])
		g.Go(func() error {
			return sc.Runner.Run(gctx, cmd)
		})
	}
	return g.Wait()
}

// command builds the assembler invocation for one source
func (s *AssembleStage) command(sc *StageContext, src, obj string) toolchain.Command {
	t := sc.Config.Target
	cmd := toolchain.New(string(StageAssemble), sc.Config.Tools.Assembler,
		toolchain.Inline("-mcpu", t.CPU),
		toolchain.Inline("-mfloat-abi", t.FloatABI),
		toolchain.Inline("-mfpu", t.FPU),
		toolchain.Positional(src),
		toolchain.Option("-o", obj),
	)
	cmd.Dir = sc.Layout.Root()
	return cmd
}
