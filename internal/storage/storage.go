package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/voxkit/dict-engine/internal/config"
)

// BlobStore abstracts recording audio storage backends.
type BlobStore interface {
	// Save stores audio data under key, typically {uuid}{ext}.
	Save(ctx context.Context, key string, data []byte, contentType string) error

	// Open returns a reader for the audio file.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// LocalPath returns the local filesystem path if the file exists on
	// disk. Returns "" for remote-only backends.
	LocalPath(key string) string

	// Delete removes the audio file.
	Delete(ctx context.Context, key string) error

	// Exists checks whether the audio file is present.
	Exists(ctx context.Context, key string) bool

	// Type returns "local" or "s3".
	Type() string
}

// New creates a BlobStore based on config. S3 is validated at startup;
// an unreachable bucket is a fatal configuration error.
func New(cfg config.S3Config, audioDir string, log zerolog.Logger) (BlobStore, error) {
	if !cfg.Enabled() {
		return NewLocalStore(audioDir), nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")
	return s3store, nil
}
