package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/transform"
)

// Transformer runs transformation pipelines.
type Transformer interface {
	TransformText(ctx context.Context, text string, t *transform.Transformation) (string, error)
	TransformRecording(ctx context.Context, recordingID string, t *transform.Transformation) (*transform.Run, error)
}

// TransformationGetter resolves stored transformation definitions.
type TransformationGetter interface {
	GetTransformation(ctx context.Context, id string) (*transform.Transformation, error)
}

// TransformHandler serves the two pipeline entry points: ad hoc text and
// stored recordings.
type TransformHandler struct {
	svc             Transformer
	transformations TransformationGetter
	log             zerolog.Logger
}

// NewTransformHandler creates a new transform handler.
func NewTransformHandler(svc Transformer, transformations TransformationGetter, log zerolog.Logger) *TransformHandler {
	return &TransformHandler{
		svc:             svc,
		transformations: transformations,
		log:             log.With().Str("handler", "transform").Logger(),
	}
}

// Routes registers the transform endpoints.
func (h *TransformHandler) Routes(r chi.Router) {
	r.Post("/transform", h.TransformText)
	r.Post("/recordings/{id}/transform", h.TransformRecording)
}

// transformTextRequest runs a pipeline over ad hoc text. Either a stored
// transformation id or an inline step list must be given, not both.
type transformTextRequest struct {
	Input            string           `json:"input"`
	TransformationID string           `json:"transformation_id,omitempty"`
	Steps            []transform.Step `json:"steps,omitempty"`
}

type transformTextResponse struct {
	Output string `json:"output"`
}

type transformRecordingRequest struct {
	TransformationID string `json:"transformation_id"`
}

// transformRecordingResponse carries the terminal run. Warning is set when
// the run completed but produced no output.
type transformRecordingResponse struct {
	Run     *transform.Run `json:"run"`
	Warning string         `json:"warning,omitempty"`
}

// resolve returns the transformation named by the request: a stored one by
// id, or an ephemeral one built from inline steps.
func (h *TransformHandler) resolve(r *http.Request, transformationID string, steps []transform.Step) (*transform.Transformation, int, string) {
	if transformationID != "" && len(steps) > 0 {
		return nil, http.StatusBadRequest, "transformation_id and steps are mutually exclusive"
	}
	if transformationID != "" {
		t, err := h.transformations.GetTransformation(r.Context(), transformationID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, http.StatusNotFound, "transformation not found"
			}
			h.log.Error().Err(err).Str("id", transformationID).Msg("failed to get transformation")
			return nil, http.StatusInternalServerError, "failed to get transformation"
		}
		return t, 0, ""
	}

	for i := range steps {
		if steps[i].ID == "" {
			steps[i].ID = uuid.NewString()
		}
		if err := steps[i].Validate(); err != nil {
			return nil, http.StatusBadRequest, err.Error()
		}
	}
	return &transform.Transformation{ID: uuid.NewString(), Title: "ad hoc", Steps: steps}, 0, ""
}

// TransformText handles POST /api/v1/transform.
func (h *TransformHandler) TransformText(w http.ResponseWriter, r *http.Request) {
	var req transformTextRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}

	t, status, msg := h.resolve(r, req.TransformationID, req.Steps)
	if t == nil {
		WriteErrorWithCode(w, status, codeForStatus(status), msg)
		return
	}

	output, err := h.svc.TransformText(r.Context(), req.Input, t)
	if err != nil {
		h.writeTransformError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, transformTextResponse{Output: output})
}

// TransformRecording handles POST /api/v1/recordings/{id}/transform.
// The terminal run is returned even when it failed; only infrastructure
// problems surface as HTTP errors.
func (h *TransformHandler) TransformRecording(w http.ResponseWriter, r *http.Request) {
	recordingID := chi.URLParam(r, "id")

	var req transformRecordingRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if req.TransformationID == "" {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, "transformation_id is required")
		return
	}

	t, status, msg := h.resolve(r, req.TransformationID, nil)
	if t == nil {
		WriteErrorWithCode(w, status, codeForStatus(status), msg)
		return
	}

	run, err := h.svc.TransformRecording(r.Context(), recordingID, t)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, transformRecordingResponse{Run: run})
	case errors.Is(err, transform.ErrNoOutput):
		WriteJSON(w, http.StatusOK, transformRecordingResponse{Run: run, Warning: err.Error()})
	default:
		h.writeTransformError(w, err)
	}
}

// writeTransformError maps pipeline errors onto HTTP responses. Rejections
// and business failures get 4xx codes with user-facing messages; anything
// else is an infrastructure error.
func (h *TransformHandler) writeTransformError(w http.ResponseWriter, err error) {
	var runFailed *transform.RunFailedError
	switch {
	case errors.Is(err, transform.ErrEmptyInput), errors.Is(err, transform.ErrNoSteps):
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, err.Error())
	case errors.Is(err, transform.ErrRecordingNotFound):
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, err.Error())
	case errors.As(err, &runFailed):
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, ErrRunFailed, runFailed.Error())
	case errors.Is(err, transform.ErrNoOutput):
		WriteErrorWithCode(w, http.StatusUnprocessableEntity, ErrEmptyOutput, err.Error())
	default:
		h.log.Error().Err(err).Msg("transformation infrastructure error")
		WriteErrorWithCode(w, http.StatusInternalServerError, ErrInternal, "transformation could not be saved; try again")
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ErrInvalidParameter
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrInternal
	}
}
