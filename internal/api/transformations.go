package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/transform"
)

// TransformationStore is the database surface the transformations handler needs.
type TransformationStore interface {
	CreateTransformation(ctx context.Context, title, description string, steps []transform.Step) (*transform.Transformation, error)
	GetTransformation(ctx context.Context, id string) (*transform.Transformation, error)
	ListTransformations(ctx context.Context, limit, offset int) ([]*transform.Transformation, error)
	UpdateTransformation(ctx context.Context, id, title, description string, steps []transform.Step) (*transform.Transformation, error)
	DeleteTransformation(ctx context.Context, id string) error
}

// TransformationsHandler serves CRUD for stored transformation pipelines.
type TransformationsHandler struct {
	store TransformationStore
	log   zerolog.Logger
}

// NewTransformationsHandler creates a new transformations handler.
func NewTransformationsHandler(store TransformationStore, log zerolog.Logger) *TransformationsHandler {
	return &TransformationsHandler{
		store: store,
		log:   log.With().Str("handler", "transformations").Logger(),
	}
}

// Routes registers the transformation endpoints.
func (h *TransformationsHandler) Routes(r chi.Router) {
	r.Post("/transformations", h.Create)
	r.Get("/transformations", h.List)
	r.Get("/transformations/{id}", h.Get)
	r.Put("/transformations/{id}", h.Update)
	r.Delete("/transformations/{id}", h.Delete)
}

// transformationRequest is the create/update request body.
type transformationRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Steps       []transform.Step `json:"steps"`
}

// validate checks the request and assigns ids to steps that lack one.
func (req *transformationRequest) validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return errors.New("title must not be empty")
	}
	for i := range req.Steps {
		if req.Steps[i].ID == "" {
			req.Steps[i].ID = uuid.NewString()
		}
		if err := req.Steps[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Create handles POST /api/v1/transformations.
func (h *TransformationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req transformationRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, err.Error())
		return
	}

	t, err := h.store.CreateTransformation(r.Context(), req.Title, req.Description, req.Steps)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create transformation")
		WriteError(w, http.StatusInternalServerError, "failed to create transformation")
		return
	}
	WriteJSON(w, http.StatusCreated, t)
}

// List handles GET /api/v1/transformations.
func (h *TransformationsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, err.Error())
		return
	}

	ts, err := h.store.ListTransformations(r.Context(), p.Limit, p.Offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list transformations")
		WriteError(w, http.StatusInternalServerError, "failed to list transformations")
		return
	}
	if ts == nil {
		ts = []*transform.Transformation{}
	}
	WriteJSON(w, http.StatusOK, ts)
}

// Get handles GET /api/v1/transformations/{id}.
func (h *TransformationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.store.GetTransformation(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "transformation not found")
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("failed to get transformation")
		WriteError(w, http.StatusInternalServerError, "failed to get transformation")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// Update handles PUT /api/v1/transformations/{id}. Running runs keep the
// step list they started with; the update only affects future runs.
func (h *TransformationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req transformationRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, err.Error())
		return
	}

	t, err := h.store.UpdateTransformation(r.Context(), id, req.Title, req.Description, req.Steps)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "transformation not found")
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("failed to update transformation")
		WriteError(w, http.StatusInternalServerError, "failed to update transformation")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// Delete handles DELETE /api/v1/transformations/{id}. Past runs keep their
// transformation_id; only the definition is removed.
func (h *TransformationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteTransformation(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "transformation not found")
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("failed to delete transformation")
		WriteError(w, http.StatusInternalServerError, "failed to delete transformation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
