package transcribe

import (
	"context"
	"fmt"

	"github.com/voxkit/dict-engine/internal/config"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts Opts) (*Response, error)
	Name() string  // "whisper", "groq", "elevenlabs"
	Model() string // model identifier for DB/logs
}

// Opts are per-request transcription options. Zero-value fields are
// omitted from the request.
type Opts struct {
	Language    string
	Prompt      string // domain vocabulary hint
	Temperature float64
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds
}

// New creates the configured transcription provider.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.TranscribeProvider {
	case "whisper", "openai":
		return NewWhisperClient(cfg.WhisperURL, cfg.OpenAIAPIKey, cfg.TranscribeModel, cfg.TranscribeTimeout), nil
	case "groq":
		return NewGroqClient(cfg.GroqAPIKey, cfg.TranscribeModel, cfg.TranscribeTimeout), nil
	case "elevenlabs":
		return NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.TranscribeModel, cfg.TranscribeTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported transcription provider %q", cfg.TranscribeProvider)
	}
}
