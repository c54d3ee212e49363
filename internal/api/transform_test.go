package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/transform"
)

type mockTransformer struct {
	textOutput string
	textErr    error
	run        *transform.Run
	runErr     error

	gotText        string
	gotSteps       []transform.Step
	gotRecordingID string
}

func (m *mockTransformer) TransformText(ctx context.Context, text string, t *transform.Transformation) (string, error) {
	m.gotText = text
	m.gotSteps = t.Steps
	return m.textOutput, m.textErr
}

func (m *mockTransformer) TransformRecording(ctx context.Context, recordingID string, t *transform.Transformation) (*transform.Run, error) {
	m.gotRecordingID = recordingID
	return m.run, m.runErr
}

type mockTransformations struct {
	t *transform.Transformation
}

func (m *mockTransformations) GetTransformation(ctx context.Context, id string) (*transform.Transformation, error) {
	if m.t == nil || m.t.ID != id {
		return nil, fmt.Errorf("transformation %s: %w", id, database.ErrNotFound)
	}
	return m.t, nil
}

func newTransformRouter(svc Transformer, store TransformationGetter) *chi.Mux {
	h := NewTransformHandler(svc, store, zerolog.Nop())
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return e
}

func storedTransformation() *transform.Transformation {
	return &transform.Transformation{
		ID:    "t-1",
		Title: "cleanup",
		Steps: []transform.Step{{
			ID:   "s-1",
			Type: transform.StepFindReplace,
			FindReplace: &transform.FindReplaceStep{
				FindText: "um", ReplaceText: "",
			},
		}},
	}
}

// ── POST /transform ─────────────────────────────────────────────────────

func TestTransformText_StoredTransformation(t *testing.T) {
	svc := &mockTransformer{textOutput: "clean text"}
	router := newTransformRouter(svc, &mockTransformations{t: storedTransformation()})

	rec := postJSON(t, router, "/transform", `{"input":"raw text","transformation_id":"t-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp transformTextResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Output != "clean text" {
		t.Errorf("output = %q, want %q", resp.Output, "clean text")
	}
	if svc.gotText != "raw text" {
		t.Errorf("service received input %q, want %q", svc.gotText, "raw text")
	}
}

func TestTransformText_InlineSteps(t *testing.T) {
	svc := &mockTransformer{textOutput: "out"}
	router := newTransformRouter(svc, &mockTransformations{})

	body := `{"input":"x","steps":[{"type":"find_replace","find_replace":{"find_text":"a","replace_text":"b"}}]}`
	rec := postJSON(t, router, "/transform", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(svc.gotSteps) != 1 {
		t.Fatalf("service received %d steps, want 1", len(svc.gotSteps))
	}
	if svc.gotSteps[0].ID == "" {
		t.Error("inline step should get a generated id")
	}
}

func TestTransformText_IDAndStepsAreExclusive(t *testing.T) {
	router := newTransformRouter(&mockTransformer{}, &mockTransformations{t: storedTransformation()})

	body := `{"input":"x","transformation_id":"t-1","steps":[{"type":"find_replace","find_replace":{"find_text":"a"}}]}`
	rec := postJSON(t, router, "/transform", body)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTransformText_UnknownTransformation(t *testing.T) {
	router := newTransformRouter(&mockTransformer{}, &mockTransformations{})

	rec := postJSON(t, router, "/transform", `{"input":"x","transformation_id":"nope"}`)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != ErrNotFound {
		t.Errorf("code = %q, want %q", e.Code, ErrNotFound)
	}
}

func TestTransformText_InvalidInlineStep(t *testing.T) {
	router := newTransformRouter(&mockTransformer{}, &mockTransformations{})

	// prompt_transform without its configuration
	rec := postJSON(t, router, "/transform", `{"input":"x","steps":[{"type":"prompt_transform"}]}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTransformText_RejectionErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty_input", transform.ErrEmptyInput, http.StatusBadRequest, ErrBadRequest},
		{"no_steps", transform.ErrNoSteps, http.StatusBadRequest, ErrBadRequest},
		{"no_output", transform.ErrNoOutput, http.StatusUnprocessableEntity, ErrEmptyOutput},
		{"infrastructure", fmt.Errorf("unable to start run: db down"), http.StatusInternalServerError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockTransformer{textErr: tt.err}
			router := newTransformRouter(svc, &mockTransformations{t: storedTransformation()})

			rec := postJSON(t, router, "/transform", `{"input":"x","transformation_id":"t-1"}`)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if e := decodeError(t, rec); e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestTransformText_FailedRun(t *testing.T) {
	failed := &transform.Run{ID: "r-1", Status: transform.StatusFailed, Error: "invalid regex pattern \"[\""}
	svc := &mockTransformer{textErr: &transform.RunFailedError{Run: failed}}
	router := newTransformRouter(svc, &mockTransformations{t: storedTransformation()})

	rec := postJSON(t, router, "/transform", `{"input":"x","transformation_id":"t-1"}`)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Code != ErrRunFailed {
		t.Errorf("code = %q, want %q", e.Code, ErrRunFailed)
	}
	if !strings.Contains(e.Error, "invalid regex pattern") {
		t.Errorf("error = %q, want the step failure message", e.Error)
	}
}

// ── POST /recordings/{id}/transform ─────────────────────────────────────

func TestTransformRecording_ReturnsRun(t *testing.T) {
	run := &transform.Run{ID: "r-1", Status: transform.StatusCompleted, Output: "done"}
	svc := &mockTransformer{run: run}
	router := newTransformRouter(svc, &mockTransformations{t: storedTransformation()})

	rec := postJSON(t, router, "/recordings/rec-1/transform", `{"transformation_id":"t-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp transformRecordingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Run == nil || resp.Run.ID != "r-1" {
		t.Errorf("run = %+v, want r-1", resp.Run)
	}
	if resp.Warning != "" {
		t.Errorf("warning = %q, want empty", resp.Warning)
	}
	if svc.gotRecordingID != "rec-1" {
		t.Errorf("service received recording id %q, want rec-1", svc.gotRecordingID)
	}
}

func TestTransformRecording_FailedRunIsStillOK(t *testing.T) {
	run := &transform.Run{ID: "r-2", Status: transform.StatusFailed, Error: "rate limited by openai; wait a moment and try again"}
	svc := &mockTransformer{run: run}
	router := newTransformRouter(svc, &mockTransformations{t: storedTransformation()})

	rec := postJSON(t, router, "/recordings/rec-1/transform", `{"transformation_id":"t-1"}`)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200: a failed run is a valid terminal record", rec.Code)
	}
}

func TestTransformRecording_EmptyOutputWarning(t *testing.T) {
	run := &transform.Run{ID: "r-3", Status: transform.StatusCompleted, Output: ""}
	svc := &mockTransformer{run: run, runErr: transform.ErrNoOutput}
	router := newTransformRouter(svc, &mockTransformations{t: storedTransformation()})

	rec := postJSON(t, router, "/recordings/rec-1/transform", `{"transformation_id":"t-1"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp transformRecordingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Warning == "" {
		t.Error("expected empty-output warning alongside the run")
	}
}

func TestTransformRecording_NotFound(t *testing.T) {
	svc := &mockTransformer{runErr: fmt.Errorf("%w: rec-404", transform.ErrRecordingNotFound)}
	router := newTransformRouter(svc, &mockTransformations{t: storedTransformation()})

	rec := postJSON(t, router, "/recordings/rec-404/transform", `{"transformation_id":"t-1"}`)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestTransformRecording_RequiresTransformationID(t *testing.T) {
	router := newTransformRouter(&mockTransformer{}, &mockTransformations{})

	rec := postJSON(t, router, "/recordings/rec-1/transform", `{}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
