package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/config"
	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/ingest"
	"github.com/voxkit/dict-engine/internal/storage"
	"github.com/voxkit/dict-engine/internal/transcribe"
	"github.com/voxkit/dict-engine/internal/transform"
)

// Deps are the wired components the HTTP layer serves. Watcher may be nil.
type Deps struct {
	DB      *database.DB
	Runs    *database.RunStore
	Store   storage.BlobStore
	Queue   *transcribe.WorkerPool
	Watcher *ingest.FileWatcher
	Service *transform.Service
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, version string, startTime time.Time, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(Metrics)

	// Prometheus scrape — no auth
	r.Handle("/metrics", promhttp.Handler())

	health := NewHealthHandler(deps.DB, deps.Queue, deps.Watcher, deps.Store.Type(), version, startTime)
	recordings := NewRecordingsHandler(deps.DB, deps.Store, deps.Queue, log)
	transformations := NewTransformationsHandler(deps.DB, log)
	runs := NewRunsHandler(deps.Runs, log)
	transformer := NewTransformHandler(deps.Service, deps.DB, log)

	r.Route("/api/v1", func(r chi.Router) {
		// Health endpoint — no auth
		r.Get("/health", health.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(cfg.AuthToken))
			recordings.Routes(r)
			transformations.Routes(r)
			runs.Routes(r)
			transformer.Routes(r)
		})
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
