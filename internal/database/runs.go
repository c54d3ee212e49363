package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/voxkit/dict-engine/internal/transform"
)

// RunStore persists transformation runs as one row per run, with step runs
// embedded as jsonb. Every mutation rewrites the step_runs document in the
// same single-row UPDATE as the run-level columns, so step and run state
// never diverge in storage. Implements transform.RunStore.
type RunStore struct {
	db *DB
}

// NewRunStore creates the run persistence layer.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// CreateRun inserts a new run in running status with no step runs.
func (s *RunStore) CreateRun(ctx context.Context, input string, recordingID *string, transformationID string) (*transform.Run, error) {
	run := &transform.Run{
		ID:               uuid.NewString(),
		TransformationID: transformationID,
		RecordingID:      recordingID,
		Input:            input,
		Status:           transform.StatusRunning,
		StepRuns:         []transform.StepRun{},
		StartedAt:        time.Now().UTC(),
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO transformation_runs (id, transformation_id, recording_id, input, status, step_runs, started_at)
		VALUES ($1, $2, $3, $4, $5, '[]', $6)
	`, run.ID, run.TransformationID, run.RecordingID, run.Input, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// AppendStepRun adds a new step run in running status and persists the
// updated run. Called before the step executes, so an interrupted step is
// observable as a step run stuck in running.
func (s *RunStore) AppendStepRun(ctx context.Context, run *transform.Run, stepID, input string) (*transform.StepRun, error) {
	sr := transform.StepRun{
		ID:        uuid.NewString(),
		StepID:    stepID,
		Input:     input,
		Status:    transform.StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	run.StepRuns = append(run.StepRuns, sr)

	if err := s.writeStepRuns(ctx, run); err != nil {
		return nil, fmt.Errorf("append step run to run %s: %w", run.ID, err)
	}
	return &sr, nil
}

// CompleteStepRun marks the named step run completed with its output.
func (s *RunStore) CompleteStepRun(ctx context.Context, run *transform.Run, stepRunID, output string) error {
	sr := findStepRun(run, stepRunID)
	if sr == nil {
		return fmt.Errorf("run %s has no step run %s", run.ID, stepRunID)
	}
	now := time.Now().UTC()
	sr.Status = transform.StatusCompleted
	sr.Output = output
	sr.CompletedAt = &now

	if err := s.writeStepRuns(ctx, run); err != nil {
		return fmt.Errorf("complete step run %s (run %s): %w", stepRunID, run.ID, err)
	}
	return nil
}

// FailRun marks the named step run and the run itself failed with the same
// error and timestamp, in one single-row write.
func (s *RunStore) FailRun(ctx context.Context, run *transform.Run, stepRunID, errMsg string) error {
	sr := findStepRun(run, stepRunID)
	if sr == nil {
		return fmt.Errorf("run %s has no step run %s", run.ID, stepRunID)
	}
	now := time.Now().UTC()
	sr.Status = transform.StatusFailed
	sr.Error = errMsg
	sr.CompletedAt = &now
	run.Status = transform.StatusFailed
	run.Error = errMsg
	run.CompletedAt = &now

	stepRuns, err := json.Marshal(run.StepRuns)
	if err != nil {
		return fmt.Errorf("marshal step runs: %w", err)
	}
	_, err = s.db.Pool.Exec(ctx, `
		UPDATE transformation_runs
		SET status = $2, error = $3, completed_at = $4, step_runs = $5
		WHERE id = $1
	`, run.ID, run.Status, run.Error, run.CompletedAt, stepRuns)
	if err != nil {
		return fmt.Errorf("fail run %s at step run %s: %w", run.ID, stepRunID, err)
	}
	return nil
}

// CompleteRun marks the run completed with its final output.
func (s *RunStore) CompleteRun(ctx context.Context, run *transform.Run, output string) error {
	now := time.Now().UTC()
	run.Status = transform.StatusCompleted
	run.Output = output
	run.CompletedAt = &now

	_, err := s.db.Pool.Exec(ctx, `
		UPDATE transformation_runs
		SET status = $2, output = $3, completed_at = $4
		WHERE id = $1
	`, run.ID, run.Status, run.Output, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("complete run %s: %w", run.ID, err)
	}
	return nil
}

func (s *RunStore) writeStepRuns(ctx context.Context, run *transform.Run) error {
	stepRuns, err := json.Marshal(run.StepRuns)
	if err != nil {
		return fmt.Errorf("marshal step runs: %w", err)
	}
	_, err = s.db.Pool.Exec(ctx,
		`UPDATE transformation_runs SET step_runs = $2 WHERE id = $1`,
		run.ID, stepRuns)
	return err
}

func findStepRun(run *transform.Run, stepRunID string) *transform.StepRun {
	for i := range run.StepRuns {
		if run.StepRuns[i].ID == stepRunID {
			return &run.StepRuns[i]
		}
	}
	return nil
}

// ── read accessors ───────────────────────────────────────────────────

const runColumns = `id, transformation_id, recording_id, input, status, output, error, step_runs, started_at, completed_at`

// GetRun returns a run by id.
func (s *RunStore) GetRun(ctx context.Context, id string) (*transform.Run, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM transformation_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRunsByRecording returns runs for a recording, newest first.
func (s *RunStore) ListRunsByRecording(ctx context.Context, recordingID string, limit, offset int) ([]*transform.Run, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+runColumns+` FROM transformation_runs
		WHERE recording_id = $1
		ORDER BY started_at DESC LIMIT $2 OFFSET $3
	`, recordingID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs by recording %s: %w", recordingID, err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

// ListRunsByTransformation returns runs of a transformation, newest first.
func (s *RunStore) ListRunsByTransformation(ctx context.Context, transformationID string, limit, offset int) ([]*transform.Run, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+runColumns+` FROM transformation_runs
		WHERE transformation_id = $1
		ORDER BY started_at DESC LIMIT $2 OFFSET $3
	`, transformationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs by transformation %s: %w", transformationID, err)
	}
	defer rows.Close()
	return collectRuns(rows)
}

func scanRun(row pgx.Row) (*transform.Run, error) {
	var run transform.Run
	var stepRuns []byte
	err := row.Scan(&run.ID, &run.TransformationID, &run.RecordingID, &run.Input,
		&run.Status, &run.Output, &run.Error, &stepRuns, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stepRuns, &run.StepRuns); err != nil {
		return nil, fmt.Errorf("decode step runs for run %s: %w", run.ID, err)
	}
	return &run, nil
}

func collectRuns(rows pgx.Rows) ([]*transform.Run, error) {
	runs := []*transform.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
