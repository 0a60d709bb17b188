// Package history keeps a SQLite ledger of build pipeline runs, their stage
// outcomes and the artifacts they produced.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bitswalk/kforge/src/common/errors"
	"github.com/bitswalk/kforge/src/common/logs"
	"github.com/bitswalk/kforge/src/common/paths"
	"github.com/bitswalk/kforge/src/kforge/build"
	"github.com/bitswalk/kforge/src/kforge/layout"
	_ "github.com/mattn/go-sqlite3"
)

var log = logs.NewDefault()

// SetLogger sets the logger for the history package
func SetLogger(l *logs.Logger) {
	if l != nil {
		log = l
	}
}

// RunStatus is the overall result of a run
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Run is one recorded pipeline run
type Run struct {
	ID          string         `json:"id" yaml:"id"`
	Variant     layout.Variant `json:"variant" yaml:"variant"`
	Workspace   string         `json:"workspace" yaml:"workspace"`
	Status      RunStatus      `json:"status" yaml:"status"`
	State       build.State    `json:"state" yaml:"state"`
	FailedStage string         `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string         `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// Duration returns the run's wall time, or zero while it is running
func (r Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// StageRecord is one recorded stage outcome
type StageRecord struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	Stage      build.StageName `json:"stage" yaml:"stage"`
	State      build.State     `json:"state" yaml:"state"`
	Status     build.Status    `json:"status" yaml:"status"`
	DurationMS int64           `json:"duration_ms" yaml:"duration_ms"`
	Message    string          `json:"message,omitempty" yaml:"message,omitempty"`
}

// ArtifactRecord is one final artifact of a successful run
type ArtifactRecord struct {
	RunID     string              `json:"run_id" yaml:"run_id"`
	Path      string              `json:"path" yaml:"path"`
	Kind      layout.ArtifactKind `json:"kind" yaml:"kind"`
	SizeBytes int64               `json:"size_bytes" yaml:"size_bytes"`
}

// Store is the history database. It implements build.Recorder.
type Store struct {
	db *sql.DB
}

var _ build.Recorder = (*Store)(nil)

// Open opens or creates the history database at path and applies pending
// schema migrations. Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := paths.EnsureDir(path); err != nil {
			return nil, errors.ErrDatabaseQuery.WithMessagef("cannot create directory for %s", path).WithCause(err)
		}
		dsn = "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("failed to open history database").WithCause(err)
	}
	// a single connection keeps ":memory:" stores shared across queries
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, errors.ErrDatabaseQuery.WithMessage("failed to enable foreign keys").WithCause(err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, errors.ErrDatabaseQuery.WithMessage("failed to migrate history database").WithCause(err)
	}

	version, err := schemaVersion(ctx, db)
	if err == nil {
		log.Debug("History database ready", "path", path, "schema_version", version)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records a new running pipeline run
func (s *Store) StartRun(ctx context.Context, run build.RunInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, variant, workspace, status, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, string(run.Variant), run.Workspace, string(StatusRunning), string(build.StateInit), run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}
	return nil
}

// RecordStage records one stage outcome
func (s *Store) RecordStage(ctx context.Context, runID string, o build.Outcome) error {
	message := ""
	if o.Err != nil {
		message = o.Err.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stages (run_id, stage, state, status, duration_ms, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, string(o.Stage), string(o.State), string(o.Status), o.Duration.Milliseconds(), message)
	if err != nil {
		return fmt.Errorf("failed to record stage %s: %w", o.Stage, err)
	}
	return nil
}

// FinishRun records the final state of a run and its artifacts
func (s *Store) FinishRun(ctx context.Context, res *build.Result) error {
	status := StatusSucceeded
	message := ""
	if res.Err != nil {
		status = StatusFailed
		message = res.Err.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, state = ?, failed_stage = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`, string(status), string(res.State), string(res.FailedStage()), message, res.CompletedAt.UTC(), res.RunID)
	if err != nil {
		return fmt.Errorf("failed to record run completion: %w", err)
	}

	for _, a := range res.Artifacts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (run_id, path, kind, size_bytes) VALUES (?, ?, ?, ?)
		`, res.RunID, a.Path, string(a.Kind), paths.Size(a.Path))
		if err != nil {
			return fmt.Errorf("failed to record artifact %s: %w", a.Path, err)
		}
	}
	return tx.Commit()
}

const selectRunsQuery = `
	SELECT id, variant, workspace, status, state, failed_stage, error_message, started_at, completed_at
	FROM runs
`

// List returns the most recent runs first. A limit of 0 or less returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := selectRunsQuery + ` ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("failed to list runs").WithCause(err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Get returns one run by ID
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRunsQuery+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrDatabaseQuery.WithMessagef("run %s not found", id)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var completed sql.NullTime
	err := row.Scan(&run.ID, &run.Variant, &run.Workspace, &run.Status, &run.State,
		&run.FailedStage, &run.Error, &run.StartedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("failed to scan run").WithCause(err)
	}
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

// Stages returns the recorded stages of a run in execution order
func (s *Store) Stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, stage, state, status, duration_ms, message
		FROM stages WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("failed to list stages").WithCause(err)
	}
	defer rows.Close()

	var out []StageRecord
	for rows.Next() {
		var r StageRecord
		if err := rows.Scan(&r.RunID, &r.Stage, &r.State, &r.Status, &r.DurationMS, &r.Message); err != nil {
			return nil, errors.ErrDatabaseQuery.WithMessage("failed to scan stage").WithCause(err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Artifacts returns the artifacts recorded for a run
func (s *Store) Artifacts(ctx context.Context, runID string) ([]ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, path, kind, size_bytes FROM artifacts WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, errors.ErrDatabaseQuery.WithMessage("failed to list artifacts").WithCause(err)
	}
	defer rows.Close()

	var out []ArtifactRecord
	for rows.Next() {
		var a ArtifactRecord
		if err := rows.Scan(&a.RunID, &a.Path, &a.Kind, &a.SizeBytes); err != nil {
			return nil, errors.ErrDatabaseQuery.WithMessage("failed to scan artifact").WithCause(err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and returns how many were removed
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, errors.ErrDatabaseQuery.WithMessage("failed to prune runs").WithCause(err)
	}
	return res.RowsAffected()
}
