package config

import (
	stderrors "errors"
	"os"
	"testing"

	apperr "laddergen/internal/errors"
	"laddergen/internal/tester"
)

// unsetenv clears a variable for the test and restores it afterward.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	unsetenv(t,
		"HTTP_PORT", "LOG_LEVEL", "ENVIRONMENT",
		"LLM_PROVIDER", "GEMINI_API_KEY", "OPENROUTER_API_KEY", "LLM_MODEL",
		"EMBED_PROVIDER", "EMBED_MODEL", "OPENAI_API_KEY", "EMBED_CACHE_SIZE",
		"VECTOR_BACKEND", "DATABASE_URL", "CHROMA_URL", "CHROMA_COLLECTION",
		"ARTIFACT_BACKEND", "S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY",
		"S3_BUCKET", "S3_REGION", "S3_USE_SSL",
		"RPS_LIMIT", "GEN_RETRIES", "MAX_ITERATIONS", "RETRIEVAL_K", "WORKERS",
		"STYLE_PROFILE_PATH",
	)
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	tester.NoErr(t, err)

	tester.Eq(t, cfg.HTTPPort, 8080)
	tester.Eq(t, cfg.LogLevel, "info")
	tester.Eq(t, cfg.Environment, "development")
	tester.Eq(t, cfg.LLMProvider, "fake")
	tester.Eq(t, cfg.EmbedProvider, "fake")
	tester.Eq(t, cfg.EmbedCacheSize, 1024)
	tester.Eq(t, cfg.VectorBackend, "memory")
	tester.Eq(t, cfg.ChromaURL, "http://localhost:8000")
	tester.Eq(t, cfg.ChromaCollection, "ladder_examples")
	tester.Eq(t, cfg.ArtifactBackend, "memory")
	tester.Eq(t, cfg.S3Bucket, "laddergen-artifacts")
	tester.Eq(t, cfg.RPSLimit, 0)
	tester.Eq(t, cfg.GenRetries, 2)
	tester.Eq(t, cfg.MaxIterations, 3)
	tester.Eq(t, cfg.RetrievalK, 3)
	tester.Eq(t, cfg.Workers, 4)
	tester.True(t, cfg.IsDevelopment())
	tester.Eq(t, cfg.Addr(), ":8080")
}

func TestLoadReadsEnvironment(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("VECTOR_BACKEND", "chroma")
	t.Setenv("CHROMA_URL", "http://chroma:8000")
	t.Setenv("ARTIFACT_BACKEND", "s3")
	t.Setenv("S3_ENDPOINT", "minio:9000")
	t.Setenv("S3_ACCESS_KEY", "ak")
	t.Setenv("S3_SECRET_KEY", "sk")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("RPS_LIMIT", "2")
	t.Setenv("WORKERS", "8")

	cfg, err := Load()
	tester.NoErr(t, err)

	tester.Eq(t, cfg.HTTPPort, 9090)
	tester.Eq(t, cfg.Addr(), ":9090")
	tester.False(t, cfg.IsDevelopment())
	tester.Eq(t, cfg.LLMProvider, "gemini")
	tester.Eq(t, cfg.VectorBackend, "chroma")
	tester.Eq(t, cfg.ChromaURL, "http://chroma:8000")
	tester.Eq(t, cfg.ArtifactBackend, "s3")
	tester.True(t, cfg.S3UseSSL)
	tester.Eq(t, cfg.RPSLimit, 2)
	tester.Eq(t, cfg.Workers, 8)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("VECTOR_BACKEND", "bolt")

	_, err := Load()
	tester.Err(t, err)
	tester.True(t, stderrors.Is(err, apperr.ErrInvalidInput), "got %v", err)
	tester.Contains(t, err.Error(), "VECTOR_BACKEND")
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LLM_PROVIDER", "gpt9")

	_, err := Load()
	tester.Err(t, err)
	tester.Contains(t, err.Error(), "LLM_PROVIDER must be one of gemini|openrouter|fake")
}

func TestLoadRequiresDatabaseURLForPostgres(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("VECTOR_BACKEND", "postgres")

	_, err := Load()
	tester.Err(t, err)
	tester.True(t, stderrors.Is(err, apperr.ErrInvalidInput), "got %v", err)
	tester.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRequiresEndpointForS3(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("ARTIFACT_BACKEND", "s3")

	_, err := Load()
	tester.Err(t, err)
	tester.Contains(t, err.Error(), "S3_ENDPOINT")
}
