package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"laddergen/internal/artifact"
	"laddergen/internal/config"
	"laddergen/internal/embed"
	"laddergen/internal/gateway"
	"laddergen/internal/llm"
	"laddergen/internal/metrics"
	"laddergen/internal/prompts"
	"laddergen/internal/retrieve"
	"laddergen/internal/safeio"
	"laddergen/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := newLogger(cfg)

	ctx := context.Background()
	m := metrics.New()

	client, err := newLLMClient(ctx, cfg, log, m)
	if err != nil {
		log.Fatal().Err(err).Msg("build llm client")
	}
	defer client.Close()

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build embedder")
	}
	vectors, err := newVectorStore(cfg, embedder.Dimensions())
	if err != nil {
		log.Fatal().Err(err).Msg("build vector store")
	}
	artifacts, err := newArtifactStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build artifact store")
	}

	var profiles *prompts.Loader
	if cfg.StyleProfilePath != "" {
		sfs, err := safeio.NewSafeFS(cfg.StyleProfilePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.StyleProfilePath).Msg("open style profile dir")
		}
		profiles = prompts.NewLoader(sfs)
	}

	hub := gateway.NewHub()
	svc := &gateway.Service{
		Log:           log,
		Metrics:       m,
		Artifacts:     artifacts,
		LLM:           client,
		Retriever:     retrieve.New(vectors, embedder, cfg.RetrievalK, log),
		Profiles:      profiles,
		Hub:           hub,
		Runs:          gateway.NewRunManager(artifacts, hub, log),
		GenRetries:    cfg.GenRetries,
		MaxIterations: cfg.MaxIterations,
		Workers:       cfg.Workers,
	}

	srv := gateway.NewServer(cfg.Addr(), gateway.NewMux(svc), log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newLLMClient(ctx context.Context, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (llm.Client, error) {
	var (
		client llm.Client
		err    error
	)
	switch cfg.LLMProvider {
	case "gemini":
		client, err = llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	case "openrouter":
		client, err = llm.NewOpenRouterClient(cfg.OpenRouterAPIKey, cfg.LLMModel)
	default:
		client = llm.NewFakeClient()
	}
	if err != nil {
		return nil, err
	}

	// Rate limiting sits innermost so every retry attempt waits its turn.
	mws := []llm.Middleware{
		llm.WithLogging(log),
		llm.Retry(llm.DefaultMaxRetries, llm.DefaultRetryBase),
		llm.WithMetrics(m),
	}
	if cfg.RPSLimit > 0 {
		mws = append(mws, llm.RateLimit(cfg.RPSLimit))
	}
	return llm.Wrap(client, mws...), nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	var (
		e   embed.Embedder
		err error
	)
	switch cfg.EmbedProvider {
	case "gemini":
		e, err = embed.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	case "openai":
		e, err = embed.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbedModel)
	default:
		e = embed.NewFakeEmbedder(0)
	}
	if err != nil {
		return nil, err
	}
	if cfg.EmbedCacheSize > 0 {
		return embed.NewCached(e, cfg.EmbedCacheSize)
	}
	return e, nil
}

func newVectorStore(cfg *config.Config, dims int) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case "postgres":
		return vectorstore.NewPostgres(cfg.DatabaseURL, dims)
	case "chroma":
		return vectorstore.NewChroma(cfg.ChromaURL, cfg.ChromaCollection), nil
	default:
		return vectorstore.NewMemory(dims), nil
	}
}

func newArtifactStore(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	switch cfg.ArtifactBackend {
	case "postgres":
		return artifact.NewPostgres(cfg.DatabaseURL)
	case "s3":
		return artifact.NewS3(ctx, artifact.S3Config{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return artifact.NewMemory(), nil
	}
}
