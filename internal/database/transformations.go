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

// CreateTransformation inserts a new transformation definition.
func (db *DB) CreateTransformation(ctx context.Context, title, description string, steps []transform.Step) (*transform.Transformation, error) {
	now := time.Now().UTC()
	t := &transform.Transformation{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Steps:       steps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	stepsJSON, err := json.Marshal(t.Steps)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	_, err = db.Pool.Exec(ctx, `
		INSERT INTO transformations (id, title, description, steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, t.ID, t.Title, t.Description, stepsJSON, now)
	if err != nil {
		return nil, fmt.Errorf("insert transformation: %w", err)
	}
	return t, nil
}

// GetTransformation returns a transformation by id.
func (db *DB) GetTransformation(ctx context.Context, id string) (*transform.Transformation, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT id, title, description, steps, created_at, updated_at
		FROM transformations WHERE id = $1
	`, id)
	t, err := scanTransformation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transformation %s: %w", id, ErrNotFound)
	}
	return t, err
}

// ListTransformations returns all transformations, newest first.
func (db *DB) ListTransformations(ctx context.Context, limit, offset int) ([]*transform.Transformation, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, title, description, steps, created_at, updated_at
		FROM transformations
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transformations: %w", err)
	}
	defer rows.Close()

	ts := []*transform.Transformation{}
	for rows.Next() {
		t, err := scanTransformation(rows)
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return ts, rows.Err()
}

// UpdateTransformation replaces a transformation's title, description, and
// steps. Runs already started keep their snapshot of the old steps.
func (db *DB) UpdateTransformation(ctx context.Context, id, title, description string, steps []transform.Step) (*transform.Transformation, error) {
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE transformations
		SET title = $2, description = $3, steps = $4, updated_at = now()
		WHERE id = $1
	`, id, title, description, stepsJSON)
	if err != nil {
		return nil, fmt.Errorf("update transformation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("transformation %s: %w", id, ErrNotFound)
	}
	return db.GetTransformation(ctx, id)
}

// DeleteTransformation removes a transformation definition. Past runs are
// kept; they reference the transformation id only.
func (db *DB) DeleteTransformation(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM transformations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transformation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transformation %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanTransformation(row pgx.Row) (*transform.Transformation, error) {
	var t transform.Transformation
	var steps []byte
	err := row.Scan(&t.ID, &t.Title, &t.Description, &steps, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &t.Steps); err != nil {
		return nil, fmt.Errorf("decode steps for transformation %s: %w", t.ID, err)
	}
	return &t, nil
}
