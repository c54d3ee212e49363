// Package transform implements the text-transformation pipeline: ordered
// find/replace and LLM prompt steps executed over an input string, with
// every state change persisted through a RunStore.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/metrics"
)

// User-input rejections. These are returned before any run is created.
var (
	ErrEmptyInput = errors.New("empty input")
	ErrNoSteps    = errors.New("no steps configured")
)

// RunStore persists transformation runs. All mutations update the caller's
// *Run in place and write it through; FailRun records the step-run and run
// failure in one atomic write.
type RunStore interface {
	CreateRun(ctx context.Context, input string, recordingID *string, transformationID string) (*Run, error)
	AppendStepRun(ctx context.Context, run *Run, stepID, input string) (*StepRun, error)
	CompleteStepRun(ctx context.Context, run *Run, stepRunID, output string) error
	FailRun(ctx context.Context, run *Run, stepRunID, errMsg string) error
	CompleteRun(ctx context.Context, run *Run, output string) error
}

// Orchestrator drives a Transformation's steps over an input, chaining each
// step's output into the next step's input and persisting after every step.
//
// A step failure is a legitimate terminal outcome: the run is marked failed
// and returned with a nil error. The error return is reserved for
// infrastructure failures where the run's state could not be durably
// recorded.
type Orchestrator struct {
	store    RunStore
	executor *Executor
	log      zerolog.Logger
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(store RunStore, executor *Executor, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{store: store, executor: executor, log: log}
}

// Run executes transformation t over input. recordingID is nil for ad hoc
// text runs. Steps execute strictly in order; there is no retry and no
// cancellation mid-run beyond ctx propagation into persistence and
// completion calls.
func (o *Orchestrator) Run(ctx context.Context, input string, recordingID *string, t *Transformation) (*Run, error) {
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	if len(t.Steps) == 0 {
		return nil, ErrNoSteps
	}

	run, err := o.store.CreateRun(ctx, input, recordingID, t.ID)
	if err != nil {
		return nil, fmt.Errorf("unable to start run for transformation %s: %w", t.ID, err)
	}

	log := o.log.With().Str("run_id", run.ID).Str("transformation_id", t.ID).Logger()
	log.Info().Int("steps", len(t.Steps)).Msg("transformation run started")

	current := input
	for i, step := range t.Steps {
		// Persist the step-run before executing, so a crash mid-step is
		// observable as a step stuck in running.
		stepRun, err := o.store.AppendStepRun(ctx, run, step.ID, current)
		if err != nil {
			return nil, fmt.Errorf("unable to initialize step %d (run %s): %w", i, run.ID, err)
		}

		output, execErr := o.executor.Execute(ctx, step, current)
		if execErr != nil {
			if err := o.store.FailRun(ctx, run, stepRun.ID, execErr.Error()); err != nil {
				return nil, fmt.Errorf("unable to record failure of step %d (run %s): %w", i, run.ID, err)
			}
			metrics.StepsTotal.WithLabelValues(string(step.Type), string(StatusFailed)).Inc()
			metrics.RunsTotal.WithLabelValues(string(StatusFailed)).Inc()
			log.Info().Int("step", i).Str("step_type", string(step.Type)).
				Str("error", execErr.Error()).Msg("transformation run failed")
			return run, nil
		}

		if err := o.store.CompleteStepRun(ctx, run, stepRun.ID, output); err != nil {
			return nil, fmt.Errorf("unable to save completed step %d (run %s): %w", i, run.ID, err)
		}
		metrics.StepsTotal.WithLabelValues(string(step.Type), string(StatusCompleted)).Inc()
		current = output
	}

	if err := o.store.CompleteRun(ctx, run, current); err != nil {
		return nil, fmt.Errorf("unable to save completed run %s: %w", run.ID, err)
	}
	metrics.RunsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	log.Info().Int("output_len", len(current)).Msg("transformation run completed")
	return run, nil
}
