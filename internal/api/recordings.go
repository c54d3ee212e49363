package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/ingest"
	"github.com/voxkit/dict-engine/internal/storage"
	"github.com/voxkit/dict-engine/internal/transcribe"
)

// RecordingStore is the database surface the recordings handler needs.
type RecordingStore interface {
	CreateRecording(ctx context.Context, title, audioKey string) (*database.Recording, error)
	GetRecording(ctx context.Context, id string) (*database.Recording, error)
	ListRecordings(ctx context.Context, limit, offset int) ([]*database.Recording, error)
	DeleteRecording(ctx context.Context, id string) error
}

// TranscribeQueue accepts transcription jobs for uploaded recordings.
type TranscribeQueue interface {
	Enqueue(j transcribe.Job) bool
}

// RecordingsHandler serves recording upload, retrieval, and audio playback.
type RecordingsHandler struct {
	store RecordingStore
	blobs storage.BlobStore
	queue TranscribeQueue
	log   zerolog.Logger
}

// NewRecordingsHandler creates a new recordings handler.
func NewRecordingsHandler(store RecordingStore, blobs storage.BlobStore, queue TranscribeQueue, log zerolog.Logger) *RecordingsHandler {
	return &RecordingsHandler{
		store: store,
		blobs: blobs,
		queue: queue,
		log:   log.With().Str("handler", "recordings").Logger(),
	}
}

// Routes registers the recording endpoints.
func (h *RecordingsHandler) Routes(r chi.Router) {
	r.Post("/recordings", h.Upload)
	r.Get("/recordings", h.List)
	r.Get("/recordings/{id}", h.Get)
	r.Delete("/recordings/{id}", h.Delete)
	r.Get("/recordings/{id}/audio", h.Audio)
}

// Upload handles POST /api/v1/recordings.
// Accepts a multipart form with an "audio" file field and an optional
// "title" field. The recording is stored and queued for transcription.
func (h *RecordingsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidBody, `missing "audio" file field`)
		return
	}
	defer file.Close()

	if !ingest.IsAudioFile(header.Filename) {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "unrecognized audio format: "+filepath.Ext(header.Filename))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}
	if len(data) == 0 {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrBadRequest, "audio file is empty")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	key := uuid.NewString() + ext
	if err := h.blobs.Save(r.Context(), key, data, mime.TypeByExtension(ext)); err != nil {
		h.log.Error().Err(err).Str("key", key).Msg("failed to store audio")
		WriteError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	rec, err := h.store.CreateRecording(r.Context(), title, key)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to create recording")
		WriteError(w, http.StatusInternalServerError, "failed to create recording")
		return
	}

	if !h.queue.Enqueue(transcribe.Job{RecordingID: rec.ID, AudioKey: key}) {
		h.log.Warn().Str("recording_id", rec.ID).Msg("transcription queue full; recording left pending")
	}

	WriteJSON(w, http.StatusCreated, rec)
}

// List handles GET /api/v1/recordings.
func (h *RecordingsHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := ParsePagination(r)
	if err != nil {
		WriteErrorWithCode(w, http.StatusBadRequest, ErrInvalidParameter, err.Error())
		return
	}

	recs, err := h.store.ListRecordings(r.Context(), p.Limit, p.Offset)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list recordings")
		WriteError(w, http.StatusInternalServerError, "failed to list recordings")
		return
	}
	if recs == nil {
		recs = []*database.Recording{}
	}
	WriteJSON(w, http.StatusOK, recs)
}

// Get handles GET /api/v1/recordings/{id}.
func (h *RecordingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetRecording(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "recording not found")
			return
		}
		h.log.Error().Err(err).Str("id", id).Msg("failed to get recording")
		WriteError(w, http.StatusInternalServerError, "failed to get recording")
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/recordings/{id}. The audio blob is removed
// after the row; a blob-side failure is logged, not surfaced.
func (h *RecordingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetRecording(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "recording not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to get recording")
		return
	}

	if err := h.store.DeleteRecording(r.Context(), id); err != nil {
		h.log.Error().Err(err).Str("id", id).Msg("failed to delete recording")
		WriteError(w, http.StatusInternalServerError, "failed to delete recording")
		return
	}
	if rec.AudioKey != "" {
		if err := h.blobs.Delete(r.Context(), rec.AudioKey); err != nil {
			h.log.Warn().Err(err).Str("key", rec.AudioKey).Msg("failed to delete audio blob")
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Audio handles GET /api/v1/recordings/{id}/audio and streams the stored
// audio file.
func (h *RecordingsHandler) Audio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetRecording(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "recording not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to get recording")
		return
	}
	if rec.AudioKey == "" {
		WriteErrorWithCode(w, http.StatusNotFound, ErrNotFound, "recording has no audio")
		return
	}

	// Local files get range-request support via ServeFile.
	if path := h.blobs.LocalPath(rec.AudioKey); path != "" {
		http.ServeFile(w, r, path)
		return
	}

	rc, err := h.blobs.Open(r.Context(), rec.AudioKey)
	if err != nil {
		h.log.Error().Err(err).Str("key", rec.AudioKey).Msg("failed to open audio blob")
		WriteError(w, http.StatusInternalServerError, "failed to open audio")
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(filepath.Ext(rec.AudioKey)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	io.Copy(w, rc)
}
