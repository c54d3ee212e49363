package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string        `env:"DATABASE_URL,required"`
	DBMaxConns  int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBStmtLimit time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"30s"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"120s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Recording audio storage.
	AudioDir string   `env:"AUDIO_DIR" envDefault:"./audio"`
	S3       S3Config `envPrefix:"S3_"`

	// Optional drop directory: audio files appearing here become recordings.
	WatchDir string `env:"WATCH_DIR"`

	// Transcription.
	TranscribeProvider string        `env:"TRANSCRIBE_PROVIDER" envDefault:"whisper"`
	TranscribeModel    string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	TranscribeTimeout  time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"120s"`
	WhisperURL         string        `env:"WHISPER_URL" envDefault:"https://api.openai.com/v1/audio/transcriptions"`
	TranscribeWorkers  int           `env:"TRANSCRIBE_WORKERS" envDefault:"2"`
	TranscribeQueue    int           `env:"TRANSCRIBE_QUEUE_SIZE" envDefault:"64"`
	TranscribeLanguage string        `env:"TRANSCRIBE_LANGUAGE"`

	// Completion providers for prompt_transform steps.
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"60s"`
	AnthropicAPIKey   string        `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	GroqAPIKey        string        `env:"GROQ_API_KEY"`
	GoogleAPIKey      string        `env:"GOOGLE_API_KEY"`
	ElevenLabsAPIKey  string        `env:"ELEVENLABS_API_KEY"`
}

// S3Config configures the optional S3 audio backend. Leaving Bucket empty
// keeps audio on the local filesystem.
type S3Config struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"` // non-AWS S3-compatible stores
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX"`
}

// Enabled reports whether S3 storage is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// CompletionKeys returns the per-provider API keys for the step executor.
func (c *Config) CompletionKeys() map[string]string {
	return map[string]string{
		"anthropic": c.AnthropicAPIKey,
		"openai":    c.OpenAIAPIKey,
		"groq":      c.GroqAPIKey,
		"google":    c.GoogleAPIKey,
	}
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	AudioDir    string
	WatchDir    string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}
	if overrides.WatchDir != "" {
		cfg.WatchDir = overrides.WatchDir
	}

	return cfg, nil
}
