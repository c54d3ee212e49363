package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// memStore implements RunStore in memory with injectable failures.
type memStore struct {
	seq     int
	created int

	failCreate       error
	failAppend       error
	failCompleteStep error
	failFail         error
	failCompleteRun  error
}

func (m *memStore) CreateRun(_ context.Context, input string, recordingID *string, transformationID string) (*Run, error) {
	if m.failCreate != nil {
		return nil, m.failCreate
	}
	m.created++
	m.seq++
	return &Run{
		ID:               fmt.Sprintf("run-%d", m.seq),
		TransformationID: transformationID,
		RecordingID:      recordingID,
		Input:            input,
		Status:           StatusRunning,
		StartedAt:        time.Now(),
	}, nil
}

func (m *memStore) AppendStepRun(_ context.Context, run *Run, stepID, input string) (*StepRun, error) {
	if m.failAppend != nil {
		return nil, m.failAppend
	}
	m.seq++
	sr := StepRun{
		ID:        fmt.Sprintf("step-run-%d", m.seq),
		StepID:    stepID,
		Input:     input,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}
	run.StepRuns = append(run.StepRuns, sr)
	return &sr, nil
}

func (m *memStore) CompleteStepRun(_ context.Context, run *Run, stepRunID, output string) error {
	if m.failCompleteStep != nil {
		return m.failCompleteStep
	}
	now := time.Now()
	for i := range run.StepRuns {
		if run.StepRuns[i].ID == stepRunID {
			run.StepRuns[i].Status = StatusCompleted
			run.StepRuns[i].Output = output
			run.StepRuns[i].CompletedAt = &now
			return nil
		}
	}
	return fmt.Errorf("step run %s not found", stepRunID)
}

func (m *memStore) FailRun(_ context.Context, run *Run, stepRunID, errMsg string) error {
	if m.failFail != nil {
		return m.failFail
	}
	now := time.Now()
	for i := range run.StepRuns {
		if run.StepRuns[i].ID == stepRunID {
			run.StepRuns[i].Status = StatusFailed
			run.StepRuns[i].Error = errMsg
			run.StepRuns[i].CompletedAt = &now
		}
	}
	run.Status = StatusFailed
	run.Error = errMsg
	run.CompletedAt = &now
	return nil
}

func (m *memStore) CompleteRun(_ context.Context, run *Run, output string) error {
	if m.failCompleteRun != nil {
		return m.failCompleteRun
	}
	now := time.Now()
	run.Status = StatusCompleted
	run.Output = output
	run.CompletedAt = &now
	return nil
}

func findReplaceStep(id, find, replace string) Step {
	return Step{
		ID:          id,
		Type:        StepFindReplace,
		FindReplace: &FindReplaceStep{FindText: find, ReplaceText: replace},
	}
}

func newTestOrchestrator(store RunStore) *Orchestrator {
	return NewOrchestrator(store, newTestExecutor(nil, nil), zerolog.Nop())
}

func TestRun_HappyPathTwoSteps(t *testing.T) {
	store := &memStore{}
	orch := newTestOrchestrator(store)
	tr := &Transformation{
		ID: "t1",
		Steps: []Step{
			findReplaceStep("s1", "foo", "bar"),
			findReplaceStep("s2", "bar", "baz"),
		},
	}

	run, err := orch.Run(context.Background(), "foo foo", nil, tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.Status != StatusCompleted {
		t.Errorf("run status = %q, want completed", run.Status)
	}
	if run.Output != "baz baz" {
		t.Errorf("run output = %q, want %q", run.Output, "baz baz")
	}
	if run.CompletedAt == nil {
		t.Error("completed run has nil CompletedAt")
	}
	if len(run.StepRuns) != 2 {
		t.Fatalf("got %d step runs, want 2", len(run.StepRuns))
	}
	for i, sr := range run.StepRuns {
		if sr.Status != StatusCompleted {
			t.Errorf("step run %d status = %q, want completed", i, sr.Status)
		}
	}
	if run.StepRuns[0].Output != "bar bar" {
		t.Errorf("step run 0 output = %q, want %q", run.StepRuns[0].Output, "bar bar")
	}
	if run.StepRuns[1].Input != "bar bar" {
		t.Errorf("step run 1 input = %q, want %q", run.StepRuns[1].Input, "bar bar")
	}
}

func TestRun_MidPipelineFailure(t *testing.T) {
	store := &memStore{}
	orch := newTestOrchestrator(store)
	tr := &Transformation{
		ID: "t1",
		Steps: []Step{
			{ID: "s1", Type: StepFindReplace, FindReplace: &FindReplaceStep{FindText: "[", UseRegex: true}},
			findReplaceStep("s2", "a", "b"),
		},
	}

	run, err := orch.Run(context.Background(), "x", nil, tr)
	if err != nil {
		t.Fatalf("a failed run must be returned as a success value, got error: %v", err)
	}

	if run.Status != StatusFailed {
		t.Errorf("run status = %q, want failed", run.Status)
	}
	if !strings.Contains(run.Error, "invalid regex pattern") {
		t.Errorf("run error %q does not mention the regex compile failure", run.Error)
	}
	if run.CompletedAt == nil {
		t.Error("failed run has nil CompletedAt")
	}
	// Exactly one step run, the failed one; nothing after it.
	if len(run.StepRuns) != 1 {
		t.Fatalf("got %d step runs, want 1", len(run.StepRuns))
	}
	if run.StepRuns[0].Status != StatusFailed {
		t.Errorf("step run status = %q, want failed", run.StepRuns[0].Status)
	}
	if run.StepRuns[0].Error != run.Error {
		t.Errorf("step run error %q != run error %q", run.StepRuns[0].Error, run.Error)
	}
}

func TestRun_ChainingInvariant(t *testing.T) {
	store := &memStore{}
	orch := newTestOrchestrator(store)
	tr := &Transformation{
		ID: "t1",
		Steps: []Step{
			findReplaceStep("s1", "a", "b"),
			findReplaceStep("s2", "b", "c"),
			findReplaceStep("s3", "c", "d"),
		},
	}

	run, err := orch.Run(context.Background(), "aaa", nil, tr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if run.StepRuns[0].Input != run.Input {
		t.Errorf("step 0 input %q != run input %q", run.StepRuns[0].Input, run.Input)
	}
	for i := 1; i < len(run.StepRuns); i++ {
		if run.StepRuns[i].Input != run.StepRuns[i-1].Output {
			t.Errorf("step %d input %q != step %d output %q",
				i, run.StepRuns[i].Input, i-1, run.StepRuns[i-1].Output)
		}
	}
	if run.Output != run.StepRuns[len(run.StepRuns)-1].Output {
		t.Errorf("run output %q != last step output %q",
			run.Output, run.StepRuns[len(run.StepRuns)-1].Output)
	}
}

func TestRun_RejectsBeforeRunCreation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		steps   []Step
		wantErr error
	}{
		{"empty_input", "", []Step{findReplaceStep("s1", "a", "b")}, ErrEmptyInput},
		{"whitespace_input", "  \t\n ", []Step{findReplaceStep("s1", "a", "b")}, ErrEmptyInput},
		{"no_steps", "hello", nil, ErrNoSteps},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			orch := newTestOrchestrator(store)
			_, err := orch.Run(context.Background(), tt.input, nil, &Transformation{ID: "t1", Steps: tt.steps})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
			if store.created != 0 {
				t.Errorf("CreateRun was called %d times; rejection must happen before run creation", store.created)
			}
		})
	}
}

func TestRun_PersistenceFailures(t *testing.T) {
	boom := errors.New("connection refused")
	tests := []struct {
		name    string
		store   *memStore
		wantMsg string
	}{
		{"create_run", &memStore{failCreate: boom}, "unable to start run"},
		{"append_step", &memStore{failAppend: boom}, "unable to initialize step"},
		{"complete_step", &memStore{failCompleteStep: boom}, "unable to save completed step"},
		{"complete_run", &memStore{failCompleteRun: boom}, "unable to save completed run"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := newTestOrchestrator(tt.store)
			tr := &Transformation{ID: "t1", Steps: []Step{findReplaceStep("s1", "a", "b")}}
			_, err := orch.Run(context.Background(), "aaa", nil, tr)
			if err == nil {
				t.Fatal("expected an infrastructure error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
			if !errors.Is(err, boom) {
				t.Errorf("error %v does not wrap the storage cause", err)
			}
		})
	}
}

func TestRun_FailRecordingFailureIsInfrastructure(t *testing.T) {
	// If the step fails AND persisting that failure fails, the caller gets
	// the infrastructure error, not a failed run.
	store := &memStore{failFail: errors.New("disk full")}
	orch := newTestOrchestrator(store)
	tr := &Transformation{
		ID:    "t1",
		Steps: []Step{{ID: "s1", Type: StepFindReplace, FindReplace: &FindReplaceStep{FindText: "[", UseRegex: true}}},
	}

	_, err := orch.Run(context.Background(), "x", nil, tr)
	if err == nil {
		t.Fatal("expected an infrastructure error")
	}
	if !strings.Contains(err.Error(), "unable to record failure") {
		t.Errorf("error %q does not describe the failed failure write", err)
	}
}
