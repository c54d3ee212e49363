package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrRecordingNotFound is returned when a recording id has no stored recording.
var ErrRecordingNotFound = errors.New("recording not found")

// ErrNoOutput marks a completed run whose output is empty. Distinct from a
// failed run: the pipeline succeeded but produced nothing to deliver.
var ErrNoOutput = errors.New("transformation produced no output")

// RunFailedError surfaces a failed run to callers as a user-facing error.
// The run itself is a valid terminal record; this wrapper only exists so
// entry-point callers can present the failure message.
type RunFailedError struct {
	Run *Run
}

func (e *RunFailedError) Error() string {
	return fmt.Sprintf("transformation failed: %s", e.Run.Error)
}

// RecordingSource looks up stored recordings by id. A missing recording is
// reported with an error wrapping ErrRecordingNotFound; any other error is
// an infrastructure failure.
type RecordingSource interface {
	GetRecording(ctx context.Context, id string) (*Recording, error)
}

// Service is the public entry point for running transformations, either
// over ad hoc text or over a stored recording's transcript.
type Service struct {
	orch       *Orchestrator
	recordings RecordingSource
	log        zerolog.Logger
}

// NewService creates the transformation service.
func NewService(orch *Orchestrator, recordings RecordingSource, log zerolog.Logger) *Service {
	return &Service{orch: orch, recordings: recordings, log: log}
}

// TransformText runs t over arbitrary text and returns the final output.
// A failed run surfaces as *RunFailedError; a completed run with empty
// output surfaces as ErrNoOutput.
func (s *Service) TransformText(ctx context.Context, text string, t *Transformation) (string, error) {
	run, err := s.orch.Run(ctx, text, nil, t)
	if err != nil {
		return "", err
	}
	if run.Status == StatusFailed {
		return "", &RunFailedError{Run: run}
	}
	if run.Output == "" {
		return "", ErrNoOutput
	}
	return run.Output, nil
}

// TransformRecording runs t over a stored recording's transcribed text and
// returns the terminal run. The empty-output check applies here as well:
// a completed run with no output returns the run alongside ErrNoOutput.
func (s *Service) TransformRecording(ctx context.Context, recordingID string, t *Transformation) (*Run, error) {
	rec, err := s.recordings.GetRecording(ctx, recordingID)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("unable to load recording %s: %w", recordingID, err)
	}

	run, err := s.orch.Run(ctx, rec.TranscribedText, &rec.ID, t)
	if err != nil {
		return nil, err
	}
	if run.Status == StatusCompleted && run.Output == "" {
		return run, ErrNoOutput
	}
	return run, nil
}
