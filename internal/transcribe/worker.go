package transcribe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/metrics"
	"github.com/voxkit/dict-engine/internal/storage"
)

// Job is a transcription job for one stored recording.
type Job struct {
	RecordingID string
	AudioKey    string
}

// QueueStats reports the current state of the transcription queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// RecordingUpdater is the slice of the database the worker pool writes.
type RecordingUpdater interface {
	MarkTranscribing(ctx context.Context, id string) error
	SetTranscription(ctx context.Context, id, text, language, provider, model string, durationSeconds *float64) error
	SetTranscriptionFailed(ctx context.Context, id, errMsg string) error
}

// WorkerPoolOptions configures the transcription worker pool.
type WorkerPoolOptions struct {
	Recordings RecordingUpdater
	Store      storage.BlobStore
	Provider   Provider
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	Language   string
	Log        zerolog.Logger
}

// WorkerPool manages transcription workers draining a job queue.
type WorkerPool struct {
	jobs     chan Job
	recs     RecordingUpdater
	store    storage.BlobStore
	provider Provider
	opts     WorkerPoolOptions
	log      zerolog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
}

// NewWorkerPool creates a new transcription worker pool.
func NewWorkerPool(opts WorkerPoolOptions) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobs:     make(chan Job, opts.QueueSize),
		recs:     opts.Recordings,
		store:    opts.Store,
		provider: opts.Provider,
		opts:     opts,
		log:      opts.Log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	for i := 0; i < wp.opts.Workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
	wp.log.Info().
		Int("workers", wp.opts.Workers).
		Int("queue_size", wp.opts.QueueSize).
		Str("provider", wp.provider.Name()).
		Str("model", wp.provider.Model()).
		Msg("transcription worker pool started")
}

// Stop signals workers to drain and waits for completion.
func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
	wp.cancel()
	wp.log.Info().
		Int64("completed", wp.completed.Load()).
		Int64("failed", wp.failed.Load()).
		Msg("transcription worker pool stopped")
}

// Enqueue adds a job to the transcription queue. Returns false if the
// queue is full.
func (wp *WorkerPool) Enqueue(j Job) bool {
	select {
	case wp.jobs <- j:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (wp *WorkerPool) Stats() QueueStats {
	return QueueStats{
		Pending:   len(wp.jobs),
		Completed: wp.completed.Load(),
		Failed:    wp.failed.Load(),
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.With().Int("worker", id).Logger()

	for job := range wp.jobs {
		if err := wp.processJob(log, job); err != nil {
			wp.failed.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(wp.provider.Name(), "failed").Inc()
			log.Warn().Err(err).Str("recording_id", job.RecordingID).Msg("transcription failed")
		} else {
			wp.completed.Add(1)
			metrics.TranscriptionsTotal.WithLabelValues(wp.provider.Name(), "completed").Inc()
		}
	}
}

// processJob transcribes one recording and stores the result. A returned
// error has already been recorded on the recording row where possible.
func (wp *WorkerPool) processJob(log zerolog.Logger, job Job) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(wp.ctx, wp.opts.Timeout+10*time.Second)
	defer cancel()

	if err := wp.recs.MarkTranscribing(ctx, job.RecordingID); err != nil {
		return fmt.Errorf("mark transcribing: %w", err)
	}

	audioPath, cleanup, err := wp.resolveAudio(ctx, job.AudioKey)
	if err != nil {
		wp.recordFailure(ctx, job.RecordingID, "audio file unavailable")
		return fmt.Errorf("resolve audio: %w", err)
	}
	defer cleanup()

	resp, err := wp.provider.Transcribe(ctx, audioPath, Opts{Language: wp.opts.Language})
	if err != nil {
		wp.recordFailure(ctx, job.RecordingID, "transcription failed; see server logs")
		return fmt.Errorf("%s: %w", wp.provider.Name(), err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		wp.recordFailure(ctx, job.RecordingID, "no speech detected")
		return fmt.Errorf("%s returned empty text", wp.provider.Name())
	}

	var duration *float64
	if resp.Duration > 0 {
		duration = &resp.Duration
	}
	if err := wp.recs.SetTranscription(ctx, job.RecordingID, text, resp.Language,
		wp.provider.Name(), wp.provider.Model(), duration); err != nil {
		return fmt.Errorf("store transcription: %w", err)
	}

	elapsed := time.Since(start)
	metrics.TranscriptionDuration.WithLabelValues(wp.provider.Name()).Observe(elapsed.Seconds())
	log.Info().
		Str("recording_id", job.RecordingID).
		Int("chars", len(text)).
		Dur("duration_ms", elapsed).
		Msg("recording transcribed")
	return nil
}

// resolveAudio returns a local path for the recording's audio, downloading
// from remote storage into a temp file when necessary.
func (wp *WorkerPool) resolveAudio(ctx context.Context, key string) (string, func(), error) {
	if path := wp.store.LocalPath(key); path != "" {
		return path, func() {}, nil
	}

	r, err := wp.store.Open(ctx, key)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()

	tmp, err := os.CreateTemp("", "dict-audio-*"+filepath.Ext(key))
	if err != nil {
		return "", nil, fmt.Errorf("create temp: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("download audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func (wp *WorkerPool) recordFailure(ctx context.Context, recordingID, msg string) {
	if err := wp.recs.SetTranscriptionFailed(ctx, recordingID, msg); err != nil {
		wp.log.Error().Err(err).Str("recording_id", recordingID).Msg("failed to record transcription failure")
	}
}
