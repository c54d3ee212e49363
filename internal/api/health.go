package api

import (
	"net/http"
	"time"

	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/ingest"
	"github.com/voxkit/dict-engine/internal/transcribe"
)

// QueueStatsSource exposes transcription queue statistics.
type QueueStatsSource interface {
	Stats() transcribe.QueueStats
}

type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Checks        map[string]string      `json:"checks"`
	Storage       string                 `json:"storage"`
	Transcription *transcribe.QueueStats `json:"transcription,omitempty"`
	Watcher       *ingest.WatcherStatus  `json:"watcher,omitempty"`
}

type HealthHandler struct {
	db        *database.DB
	queue     QueueStatsSource
	watcher   *ingest.FileWatcher
	storage   string
	version   string
	startTime time.Time
}

// NewHealthHandler creates the health endpoint. watcher may be nil when no
// drop directory is configured.
func NewHealthHandler(db *database.DB, queue QueueStatsSource, watcher *ingest.FileWatcher, storageType, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		queue:     queue,
		watcher:   watcher,
		storage:   storageType,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
		Storage:       h.storage,
	}

	if h.queue != nil {
		stats := h.queue.Stats()
		resp.Transcription = &stats
		checks["transcription"] = "ok"
	} else {
		checks["transcription"] = "not_configured"
	}

	if h.watcher != nil {
		ws := h.watcher.Status()
		resp.Watcher = ws
		checks["file_watcher"] = ws.Status
	}

	WriteJSON(w, httpStatus, resp)
}
