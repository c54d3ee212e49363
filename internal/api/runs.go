package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/transform"
)

// RunReader is the database surface the runs handler needs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*transform.Run, error)
	ListRunsByRecording(ctx context.Context, recordingID string, limit, offset int) ([]*transform.Run, error)
	ListRunsByTransformation(ctx context.Context, transformationID string, limit, offset int) ([]*transform.Run, error)
}

// RunsHandler serves read access to transformation runs.
type RunsHandler struct {
	runs RunReader
	log  zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(runs RunReader, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		runs: runs,
		log:  log.With().Str("handler", "runs").Logger(),
	}
}

// Routes registers the run endpoints.
func (h *RunsHandler) Routes(r chi.Router) {
	r.Get("/runs/{id}", h.Get)
	r.Get("/recordings/{id}/runs", h.ListByRecording)
	r.Get("/transformations/{id}/runs", h.ListByTransformation)
}

// Get handles GET /api/v1/runs/{id}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "run not found")
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("failed to get run")
		WriteError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	WriteJSON(w, http.StatusOK, run)
}

// ListByRecording handles GET /api/v1/recordings/{id}/runs.
func (h *RunsHandler) ListByRecording(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.runs.ListRunsByRecording)
}

// ListByTransformation handles GET /api/v1/transformations/{id}/runs.
func (h *RunsHandler) ListByTransformation(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.runs.ListRunsByTransformation)
}

func (h *RunsHandler) list(w http.ResponseWriter, r *http.Request,
	fetch func(ctx context.Context, id string, limit, offset int) ([]*transform.Run, error)) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	runs, err := fetch(r.Context(), id, p.Limit, p.Offset)
	if err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("failed to list runs")
		WriteError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*transform.Run{}
	}
	WriteJSON(w, http.StatusOK, runs)
}
