package ingest

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/database"
	"github.com/voxkit/dict-engine/internal/storage"
	"github.com/voxkit/dict-engine/internal/transcribe"
)

// RecordingCreator is the slice of the database the watcher writes.
type RecordingCreator interface {
	CreateRecording(ctx context.Context, title, audioKey string) (*database.Recording, error)
}

// Enqueuer accepts transcription jobs for new recordings.
type Enqueuer interface {
	Enqueue(j transcribe.Job) bool
}

// WatcherStatus is the current watcher state for the health endpoint.
type WatcherStatus struct {
	Status         string `json:"status"`
	WatchDir       string `json:"watch_dir"`
	FilesProcessed int64  `json:"files_processed"`
	FilesSkipped   int64  `json:"files_skipped"`
}

// FileWatcher monitors a drop directory for new audio files. Each file is
// copied into the blob store, registered as a recording, and queued for
// transcription. This lets desktop sync tools (or a plain scp) feed the
// engine without touching the HTTP API.
type FileWatcher struct {
	recs     RecordingCreator
	store    storage.BlobStore
	queue    Enqueuer
	watchDir string
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesProcessed atomic.Int64
	filesSkipped   atomic.Int64
	status         atomic.Value // string: "starting", "watching", "stopped"
}

// NewFileWatcher creates a watcher over the given drop directory.
func NewFileWatcher(recs RecordingCreator, store storage.BlobStore, queue Enqueuer, watchDir string, log zerolog.Logger) *FileWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	fw := &FileWatcher{
		recs:           recs,
		store:          store,
		queue:          queue,
		watchDir:       watchDir,
		log:            log.With().Str("component", "watcher").Logger(),
		ctx:            ctx,
		cancel:         cancel,
		debounceTimers: make(map[string]*time.Timer),
	}
	fw.status.Store("starting")
	return fw
}

// Start initializes the fsnotify watcher and begins watching for new audio
// files. The drop directory is created if it does not exist.
func (fw *FileWatcher) Start() error {
	if err := os.MkdirAll(fw.watchDir, 0o755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	fw.watcher = w

	if err := w.Add(fw.watchDir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", fw.watchDir, err)
	}

	fw.log.Info().Str("watch_dir", fw.watchDir).Msg("file watcher initialized")
	fw.status.Store("watching")
	go fw.watchLoop()
	return nil
}

// Stop closes the fsnotify watcher and cancels in-flight processing.
func (fw *FileWatcher) Stop() {
	fw.status.Store("stopped")
	fw.cancel()
	if fw.watcher != nil {
		fw.watcher.Close()
	}
	fw.log.Info().
		Int64("files_processed", fw.filesProcessed.Load()).
		Int64("files_skipped", fw.filesSkipped.Load()).
		Msg("file watcher stopped")
}

// Status returns the current watcher status for the health endpoint.
func (fw *FileWatcher) Status() *WatcherStatus {
	s, _ := fw.status.Load().(string)
	return &WatcherStatus{
		Status:         s,
		WatchDir:       fw.watchDir,
		FilesProcessed: fw.filesProcessed.Load(),
		FilesSkipped:   fw.filesSkipped.Load(),
	}
}

// watchLoop is the main event loop that processes fsnotify events.
func (fw *FileWatcher) watchLoop() {
	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			if !IsAudioFile(event.Name) {
				fw.filesSkipped.Add(1)
				continue
			}
			fw.scheduleProcess(event.Name)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleProcess debounces file processing by 500ms. This coalesces rapid
// Create+Write events and ensures the file is fully written before reading.
func (fw *FileWatcher) scheduleProcess(path string) {
	fw.debounceMu.Lock()
	defer fw.debounceMu.Unlock()

	if t, ok := fw.debounceTimers[path]; ok {
		t.Reset(500 * time.Millisecond)
		return
	}

	fw.debounceTimers[path] = time.AfterFunc(500*time.Millisecond, func() {
		fw.debounceMu.Lock()
		delete(fw.debounceTimers, path)
		fw.debounceMu.Unlock()

		fw.processAudioFile(path)
	})
}

// processAudioFile stores the dropped file, creates a recording row, and
// queues it for transcription. The original file is removed once stored so
// the drop directory stays clean.
func (fw *FileWatcher) processAudioFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fw.log.Warn().Err(err).Str("path", path).Msg("failed to read audio file")
		return
	}
	if len(data) == 0 {
		fw.filesSkipped.Add(1)
		return
	}

	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	key := uuid.NewString() + ext
	contentType := mime.TypeByExtension(ext)

	if err := fw.store.Save(fw.ctx, key, data, contentType); err != nil {
		fw.log.Error().Err(err).Str("path", path).Msg("failed to store audio")
		return
	}

	title := strings.TrimSuffix(base, filepath.Ext(base))
	rec, err := fw.recs.CreateRecording(fw.ctx, title, key)
	if err != nil {
		fw.log.Error().Err(err).Str("path", path).Msg("failed to create recording")
		return
	}

	if !fw.queue.Enqueue(transcribe.Job{RecordingID: rec.ID, AudioKey: key}) {
		fw.log.Warn().Str("recording_id", rec.ID).Msg("transcription queue full; recording left pending")
	}

	if err := os.Remove(path); err != nil {
		fw.log.Warn().Err(err).Str("path", path).Msg("failed to remove ingested file")
	}

	fw.filesProcessed.Add(1)
	fw.log.Info().
		Str("recording_id", rec.ID).
		Str("file", base).
		Int("bytes", len(data)).
		Msg("recording ingested")
}

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".opus": true,
	".flac": true,
	".webm": true,
}

// IsAudioFile reports whether the path has a recognized audio extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}
