// Package config loads service configuration from the environment.
// A .env file in the working directory is applied first when present,
// so local runs need no exported variables.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	pkgerrors "github.com/pkg/errors"

	apperr "laddergen/internal/errors"
)

// Config holds every knob the binaries accept.
type Config struct {
	HTTPPort    int    `envconfig:"HTTP_PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	LLMProvider      string `envconfig:"LLM_PROVIDER" default:"fake"`
	GeminiAPIKey     string `envconfig:"GEMINI_API_KEY"`
	OpenRouterAPIKey string `envconfig:"OPENROUTER_API_KEY"`
	LLMModel         string `envconfig:"LLM_MODEL"`

	EmbedProvider string `envconfig:"EMBED_PROVIDER" default:"fake"`
	EmbedModel    string `envconfig:"EMBED_MODEL"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	// EmbedCacheSize bounds the LRU of reused embeddings; 0 disables it.
	EmbedCacheSize int `envconfig:"EMBED_CACHE_SIZE" default:"1024"`

	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"memory"`
	DatabaseURL      string `envconfig:"DATABASE_URL"`
	ChromaURL        string `envconfig:"CHROMA_URL" default:"http://localhost:8000"`
	ChromaCollection string `envconfig:"CHROMA_COLLECTION" default:"ladder_examples"`

	ArtifactBackend string `envconfig:"ARTIFACT_BACKEND" default:"memory"`
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY"`
	S3Bucket        string `envconfig:"S3_BUCKET" default:"laddergen-artifacts"`
	S3Region        string `envconfig:"S3_REGION"`
	S3UseSSL        bool   `envconfig:"S3_USE_SSL" default:"false"`

	// RPSLimit caps LLM calls per second; 0 disables the limiter.
	RPSLimit      int `envconfig:"RPS_LIMIT" default:"0"`
	GenRetries    int `envconfig:"GEN_RETRIES" default:"2"`
	MaxIterations int `envconfig:"MAX_ITERATIONS" default:"3"`
	RetrievalK    int `envconfig:"RETRIEVAL_K" default:"3"`
	Workers       int `envconfig:"WORKERS" default:"4"`

	// StyleProfilePath is the directory holding <name>.yaml style
	// profiles that generate requests may reference.
	StyleProfilePath string `envconfig:"STYLE_PROFILE_PATH"`
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, pkgerrors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enum fields and backend requirements.
func (c *Config) Validate() error {
	if err := oneOf("LLM_PROVIDER", c.LLMProvider, "gemini", "openrouter", "fake"); err != nil {
		return err
	}
	if err := oneOf("EMBED_PROVIDER", c.EmbedProvider, "gemini", "openai", "fake"); err != nil {
		return err
	}
	if err := oneOf("VECTOR_BACKEND", c.VectorBackend, "memory", "postgres", "chroma"); err != nil {
		return err
	}
	if err := oneOf("ARTIFACT_BACKEND", c.ArtifactBackend, "memory", "postgres", "s3"); err != nil {
		return err
	}
	if (c.VectorBackend == "postgres" || c.ArtifactBackend == "postgres") && strings.TrimSpace(c.DatabaseURL) == "" {
		return pkgerrors.Wrap(apperr.ErrInvalidInput, "DATABASE_URL is required for the postgres backend")
	}
	if c.ArtifactBackend == "s3" && strings.TrimSpace(c.S3Endpoint) == "" {
		return pkgerrors.Wrap(apperr.ErrInvalidInput, "S3_ENDPOINT is required for the s3 backend")
	}
	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return pkgerrors.Wrapf(apperr.ErrInvalidInput, "%s must be one of %s, got %q",
		name, strings.Join(allowed, "|"), value)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

// IsDevelopment selects console logging and other dev conveniences.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}
