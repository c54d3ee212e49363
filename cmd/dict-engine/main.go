package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	dictengine "github.com/voxkit/dict-engine"
	"github.com/voxkit/dict-engine/internal/api"
	"github.com/voxkit/dict-engine/internal/completion"
	"github.com/voxkit/dict-engine/internal/config"
	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/ingest"
	"github.com/voxkit/dict-engine/internal/storage"
	"github.com/voxkit/dict-engine/internal/transcribe"
	"github.com/voxkit/dict-engine/internal/transform"
)

var version = "dev"

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env-file", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "http listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&overrides.DatabaseURL, "database-url", "", "postgres connection string")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "local audio storage directory")
	flag.StringVar(&overrides.WatchDir, "watch-dir", "", "drop directory to watch for audio files")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("dict-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, database.PoolOptions{
		MaxConns:         cfg.DBMaxConns,
		MinConns:         cfg.DBMinConns,
		StatementTimeout: cfg.DBStmtLimit,
	}, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.InitSchema(ctx, dictengine.SchemaSQL); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Audio storage
	store, err := storage.New(cfg.S3, cfg.AudioDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio storage")
	}

	// Transcription
	provider, err := transcribe.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize transcription provider")
	}
	pool := transcribe.NewWorkerPool(transcribe.WorkerPoolOptions{
		Recordings: db,
		Store:      store,
		Provider:   provider,
		Workers:    cfg.TranscribeWorkers,
		QueueSize:  cfg.TranscribeQueue,
		Timeout:    cfg.TranscribeTimeout,
		Language:   cfg.TranscribeLanguage,
		Log:        log.With().Str("component", "transcribe").Logger(),
	})
	pool.Start()

	// Transformation pipeline
	registry := completion.DefaultRegistry(cfg.CompletionTimeout)
	executor := transform.NewExecutor(registry, cfg.CompletionKeys())
	orch := transform.NewOrchestrator(database.NewRunStore(db), executor,
		log.With().Str("component", "transform").Logger())
	svc := transform.NewService(orch, &database.RecordingSource{DB: db},
		log.With().Str("component", "transform").Logger())

	// Optional drop-directory watcher
	var watcher *ingest.FileWatcher
	if cfg.WatchDir != "" {
		watcher = ingest.NewFileWatcher(db, store, pool, cfg.WatchDir,
			log.With().Str("component", "ingest").Logger())
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start file watcher")
		}
	}

	// HTTP Server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, api.Deps{
		DB:      db,
		Runs:    database.NewRunStore(db),
		Store:   store,
		Queue:   pool,
		Watcher: watcher,
		Service: svc,
	}, version, startTime, httpLog)

	// Start HTTP server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
	if watcher != nil {
		watcher.Stop()
	}
	pool.Stop()

	log.Info().Msg("dict-engine stopped")
}
