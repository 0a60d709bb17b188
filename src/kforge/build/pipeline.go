package build

import (
	"context"
	"time"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/logs"
	"github.com/bitswalk/kforge/src/kforge/layout"
	"github.com/bitswalk/kforge/src/kforge/toolchain"
	"github.com/google/uuid"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the build package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// Recorder persists pipeline runs. Recording errors never fail a build.
type Recorder interface {
	StartRun(ctx context.Context, run RunInfo) error
	RecordStage(ctx context.Context, runID string, outcome Outcome) error
	FinishRun(ctx context.Context, result *Result) error
}

// RunInfo identifies a pipeline run as it starts
type RunInfo struct {
	ID        string
	Variant   layout.Variant
	Workspace string
	StartedAt time.Time
}

// Result is the outcome of a whole pipeline run
type Result struct {
	RunID       string
	Variant     layout.Variant
	State       State
	Outcomes    []Outcome
	Artifacts   []layout.Artifact
	StartedAt   time.Time
	CompletedAt time.Time
	Err         error

	// Done is set once Finalizing succeeded
	Done bool
}

// FailedStage returns the stage that failed, or "" on success
func (r *Result) FailedStage() StageName {
	for _, o := range r.Outcomes {
		if !o.OK() {
			return o.Stage
		}
	}
	return ""
}

// Duration returns the wall time of the run
func (r *Result) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// StageProgressFunc reports progress of the running stage
type StageProgressFunc func(stage StageName, percent int, message string)

// Pipeline drives the build stages in order and halts on the first failure
type Pipeline struct {
	layout   *layout.Layout
	config   Config
	runner   toolchain.Runner
	recorder Recorder
	progress StageProgressFunc
	stages   []Stage
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithRecorder attaches a run recorder
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithProgress attaches a progress callback
func WithProgress(fn StageProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// DefaultStages returns the stages in execution order
func DefaultStages() []Stage {
	return []Stage{
		NewAssembleStage(),
		NewLinkStage(),
		NewRootfsStage(),
		NewFinalizeStage(),
	}
}

// NewPipeline creates a pipeline for the workspace
func NewPipeline(l *layout.Layout, cfg Config, runner toolchain.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		layout: l,
		config: cfg,
		runner: runner,
		stages: DefaultStages(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stages returns the stages that run for a variant, in order
func (p *Pipeline) Stages(v layout.Variant) []Stage {
	var out []Stage
	for _, s := range p.stages {
		if s.Enabled(v.Profile()) {
			out = append(out, s)
		}
	}
	return out
}

// Run builds the variant. On failure the returned error wraps the failing
// stage's error and the Result records every outcome up to that point.
func (p *Pipeline) Run(ctx context.Context, v layout.Variant) (*Result, error) {
	if err := p.config.Validate(); err != nil {
		return nil, err
	}
	if err := p.layout.EnsureBuildDir(); err != nil {
		return nil, err
	}

	profile := v.Profile()
	sc := &StageContext{
		RunID:   uuid.NewString(),
		Variant: v,
		Profile: profile,
		Layout:  p.layout,
		Config:  p.config,
		Runner:  p.runner,
	}
	result := &Result{
		RunID:     sc.RunID,
		Variant:   v,
		State:     StateInit,
		StartedAt: time.Now(),
	}
	machine := NewMachine(profile)

	log.Info("Build started", "run_id", sc.RunID, "variant", v, "workspace", p.layout.Root())
	p.record(func(r Recorder) error {
		return r.StartRun(ctx, RunInfo{ID: sc.RunID, Variant: v, Workspace: p.layout.Root(), StartedAt: result.StartedAt})
	})

	for _, stage := range p.Stages(v) {
		if err := machine.Transition(stage.State()); err != nil {
			return p.fail(ctx, machine, result, Failed(stage, errors.ErrInternal.WithCause(err)))
		}
		result.State = machine.State()

		outcome := p.runStage(ctx, stage, sc)
		result.Outcomes = append(result.Outcomes, outcome)
		p.record(func(r Recorder) error {
			return r.RecordStage(context.WithoutCancel(ctx), sc.RunID, outcome)
		})

		if !outcome.OK() {
			return p.fail(ctx, machine, result, outcome)
		}
		sc.Artifacts = append(sc.Artifacts, outcome.Artifacts...)
	}

	if err := machine.Transition(StateDone); err != nil {
		return p.fail(ctx, machine, result, Outcome{Stage: StageFinalize, State: machine.State(), Status: StatusFailed, Err: errors.ErrInternal.WithCause(err)})
	}

	result.State = StateDone
	result.Done = true
	result.Artifacts = finalArtifacts(sc.Artifacts)
	result.CompletedAt = time.Now()

	log.Info("Build finished", "run_id", sc.RunID, "variant", v, "duration", result.Duration().Round(time.Millisecond))
	p.record(func(r Recorder) error {
		return r.FinishRun(ctx, result)
	})
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, sc *StageContext) Outcome {
	start := time.Now()
	log.Info("Stage started", "run_id", sc.RunID, "stage", stage.Name())

	var outcome Outcome
	switch {
	case ctx.Err() != nil:
		outcome = Failed(stage, ctx.Err())
	default:
		if err := stage.Validate(ctx, sc); err != nil {
			outcome = Failed(stage, err)
		} else {
			outcome = stage.Execute(ctx, sc, p.stageProgress(stage.Name()))
		}
	}
	outcome.Duration = time.Since(start)

	if outcome.OK() {
		log.Info("Stage completed", "run_id", sc.RunID, "stage", stage.Name(), "duration", outcome.Duration.Round(time.Millisecond))
	} else {
		log.Error("Stage failed", "run_id", sc.RunID, "stage", stage.Name(), "error", outcome.Err)
	}
	return outcome
}

func (p *Pipeline) stageProgress(name StageName) ProgressFunc {
	return func(percent int, message string) {
		if message != "" {
			log.Debug(message, "stage", name, "progress", percent)
		}
		if p.progress != nil {
			p.progress(name, percent, message)
		}
	}
}

func (p *Pipeline) fail(ctx context.Context, machine *Machine, result *Result, outcome Outcome) (*Result, error) {
	if err := machine.Transition(StateFailed); err != nil {
		log.Warn("Pipeline already terminal", "state", machine.State(), "error", err)
	}
	cause := outcome.Err
	if cause == nil {
		cause = errors.ErrInternal.WithMessagef("stage %s reported failure without an error", outcome.Stage)
	}

	result.State = StateFailed
	result.CompletedAt = time.Now()
	result.Err = errors.ErrStageFailed.
		WithMessagef("stage %s failed", outcome.Stage).
		WithCause(cause).
		WithExitCode(errors.GetExitCode(cause))

	p.record(func(r Recorder) error {
		return r.FinishRun(context.WithoutCancel(ctx), result)
	})
	return result, result.Err
}

// record invokes the recorder, logging instead of failing on errors
func (p *Pipeline) record(fn func(Recorder) error) {
	if p.recorder == nil {
		return
	}
	if err := fn(p.recorder); err != nil {
		log.Warn("Failed to record build history", "error", err)
	}
}

// finalArtifacts drops intermediate objects
func finalArtifacts(all []layout.Artifact) []layout.Artifact {
	var out []layout.Artifact
	for _, a := range all {
		if a.Kind != layout.KindObject {
			out = append(out, a)
		}
	}
	return out
}
