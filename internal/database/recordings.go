package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/voxkit/dict-engine/internal/transform"
)

// Transcription states of a recording.
const (
	TranscriptionPending      = "pending"
	TranscriptionInProgress   = "transcribing"
	TranscriptionDone         = "transcribed"
	TranscriptionFailedStatus = "failed"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Recording is a stored dictation recording and its transcription state.
type Recording struct {
	ID                  string     `json:"id"`
	Title               string     `json:"title"`
	AudioKey            string     `json:"audio_key,omitempty"`
	TranscribedText     string     `json:"transcribed_text"`
	TranscriptionStatus string     `json:"transcription_status"`
	TranscriptionError  string     `json:"transcription_error,omitempty"`
	Language            string     `json:"language,omitempty"`
	Provider            string     `json:"provider,omitempty"`
	Model               string     `json:"model,omitempty"`
	DurationSeconds     *float64   `json:"duration_seconds,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

const recordingColumns = `id, title, audio_key, transcribed_text, transcription_status,
	transcription_error, language, provider, model, duration_seconds, created_at, updated_at`

// CreateRecording inserts a new recording in pending transcription status
// and returns it with a generated id.
func (db *DB) CreateRecording(ctx context.Context, title, audioKey string) (*Recording, error) {
	now := time.Now().UTC()
	rec := &Recording{
		ID:                  uuid.NewString(),
		Title:               title,
		AudioKey:            audioKey,
		TranscriptionStatus: TranscriptionPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO recordings (id, title, audio_key, transcription_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`, rec.ID, rec.Title, rec.AudioKey, rec.TranscriptionStatus, now)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	return rec, nil
}

// GetRecording returns a recording by id.
func (db *DB) GetRecording(ctx context.Context, id string) (*Recording, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE id = $1`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListRecordings returns recordings, newest first.
func (db *DB) ListRecordings(ctx context.Context, limit, offset int) ([]*Recording, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+recordingColumns+` FROM recordings
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	recs := []*Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DeleteRecording removes a recording row. The caller is responsible for
// the audio blob.
func (db *DB) DeleteRecording(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM recordings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return nil
}

// MarkTranscribing moves a recording into the transcribing state.
func (db *DB) MarkTranscribing(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE recordings
		SET transcription_status = $2, transcription_error = '', updated_at = now()
		WHERE id = $1
	`, id, TranscriptionInProgress)
	if err != nil {
		return fmt.Errorf("mark recording %s transcribing: %w", id, err)
	}
	return nil
}

// SetTranscription stores a successful transcription result.
func (db *DB) SetTranscription(ctx context.Context, id, text, language, provider, model string, durationSeconds *float64) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE recordings
		SET transcribed_text = $2, transcription_status = $3, transcription_error = '',
		    language = $4, provider = $5, model = $6, duration_seconds = COALESCE($7, duration_seconds),
		    updated_at = now()
		WHERE id = $1
	`, id, text, TranscriptionDone, language, provider, model, durationSeconds)
	if err != nil {
		return fmt.Errorf("store transcription for recording %s: %w", id, err)
	}
	return nil
}

// SetTranscriptionFailed records a failed transcription attempt.
func (db *DB) SetTranscriptionFailed(ctx context.Context, id, errMsg string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE recordings
		SET transcription_status = $2, transcription_error = $3, updated_at = now()
		WHERE id = $1
	`, id, TranscriptionFailedStatus, errMsg)
	if err != nil {
		return fmt.Errorf("mark recording %s failed: %w", id, err)
	}
	return nil
}

func scanRecording(row pgx.Row) (*Recording, error) {
	var rec Recording
	err := row.Scan(&rec.ID, &rec.Title, &rec.AudioKey, &rec.TranscribedText,
		&rec.TranscriptionStatus, &rec.TranscriptionError, &rec.Language,
		&rec.Provider, &rec.Model, &rec.DurationSeconds, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordingSource adapts DB to transform.RecordingSource: it exposes only
// the id and transcript the pipeline consumes, translating a missing row
// into transform.ErrRecordingNotFound so callers can tell it apart from a
// database failure.
type RecordingSource struct {
	DB *DB
}

func (s RecordingSource) GetRecording(ctx context.Context, id string) (*transform.Recording, error) {
	rec, err := s.DB.GetRecording(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", transform.ErrRecordingNotFound, id)
		}
		return nil, err
	}
	return &transform.Recording{ID: rec.ID, TranscribedText: rec.TranscribedText}, nil
}
