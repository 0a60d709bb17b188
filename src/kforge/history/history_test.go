package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/kforge/build"
	"github.com/bitswalk/kforge/src/kforge/layout"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func recordRun(t *testing.T, s *Store, id string, started time.Time, failErr error) *build.Result {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.StartRun(ctx, build.RunInfo{ID: id, Variant: layout.Debug, Workspace: "/ws", StartedAt: started}))

	res := &build.Result{
		RunID:       id,
		Variant:     layout.Debug,
		StartedAt:   started,
		CompletedAt: started.Add(3 * time.Second),
	}
	assemble := build.Outcome{Stage: build.StageAssemble, State: build.StateAssembling, Status: build.StatusCompleted, Duration: 1500 * time.Millisecond}
	res.Outcomes = append(res.Outcomes, assemble)
	require.NoError(t, s.RecordStage(ctx, id, assemble))

	if failErr != nil {
		link := build.Outcome{Stage: build.StageLink, State: build.StateLinking, Status: build.StatusFailed, Err: failErr}
		res.Outcomes = append(res.Outcomes, link)
		require.NoError(t, s.RecordStage(ctx, id, link))
		res.State = build.StateFailed
		res.Err = errors.ErrStageFailed.WithCause(failErr)
	} else {
		res.State = build.StateDone
		res.Done = true
	}
	require.NoError(t, s.FinishRun(ctx, res))
	return res
}

func TestStore_RoundTrip(t *testing.T) {
	s := openStore(t, ":memory:")
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	recordRun(t, s, "run-1", started, nil)

	run, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, build.StateDone, run.State)
	assert.Equal(t, layout.Debug, run.Variant)
	assert.Equal(t, "/ws", run.Workspace)
	assert.Empty(t, run.FailedStage)
	assert.True(t, started.Equal(run.StartedAt))
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, 3*time.Second, run.Duration())

	stages, err := s.Stages(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, build.StageAssemble, stages[0].Stage)
	assert.Equal(t, build.StatusCompleted, stages[0].Status)
	assert.Equal(t, int64(1500), stages[0].DurationMS)
}

func TestStore_FailedRun(t *testing.T) {
	s := openStore(t, ":memory:")
	ctx := context.Background()

	cause := errors.ErrToolInvocation.WithMessage("link: cargo exited with status 101")
	recordRun(t, s, "run-failed", time.Now(), cause)

	run, err := s.Get(ctx, "run-failed")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, build.StateFailed, run.State)
	assert.Equal(t, string(build.StageLink), run.FailedStage)
	assert.Contains(t, run.Error, "status 101")

	stages, err := s.Stages(ctx, "run-failed")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, build.StatusFailed, stages[1].Status)
	assert.Contains(t, stages[1].Message, "cargo exited")
}

func TestStore_Artifacts(t *testing.T) {
	s := openStore(t, ":memory:")
	ctx := context.Background()

	img := filepath.Join(t.TempDir(), "kernel_debug.elf")
	require.NoError(t, os.WriteFile(img, []byte("elfdata"), 0644))

	require.NoError(t, s.StartRun(ctx, build.RunInfo{ID: "run-a", Variant: layout.Debug, Workspace: "/ws", StartedAt: time.Now()}))
	require.NoError(t, s.FinishRun(ctx, &build.Result{
		RunID:       "run-a",
		State:       build.StateDone,
		CompletedAt: time.Now(),
		Artifacts:   []layout.Artifact{{Path: img, Kind: layout.KindLinkedImage, Variant: layout.Debug}},
	}))

	arts, err := s.Artifacts(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, img, arts[0].Path)
	assert.Equal(t, layout.KindLinkedImage, arts[0].Kind)
	assert.Equal(t, int64(7), arts[0].SizeBytes)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := openStore(t, ":memory:")
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		recordRun(t, s, id, base.Add(time.Duration(i)*time.Minute), nil)
	}

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	runs, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestStore_Prune(t *testing.T) {
	s := openStore(t, ":memory:")
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		recordRun(t, s, id, base.Add(time.Duration(i)*time.Minute), nil)
	}

	removed, err := s.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "c", runs[0].ID)

	stages, err := s.Stages(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, stages, "stages cascade with their run")
}

func TestStore_GetMissing(t *testing.T) {
	s := openStore(t, ":memory:")
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, errors.ErrDatabaseQuery))
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build", "history.db")

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	recordRun(t, s, "persisted", time.Now(), nil)
	require.NoError(t, s.Close())

	// reopening applies no migration twice
	reopened := openStore(t, path)
	version, err := schemaVersion(context.Background(), reopened.db)
	require.NoError(t, err)
	assert.Equal(t, len(migrations()), version)

	run, err := reopened.Get(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
}
