package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"laddergen/internal/config"
	"laddergen/internal/embed"
	"laddergen/internal/knowledge"
	"laddergen/internal/vectorstore"
)

func main() {
	corpus := flag.String("corpus", "", "path to the example corpus YAML")
	reset := flag.Bool("reset", false, "clear the collection before indexing")
	flag.Parse()
	if *corpus == "" {
		log.Fatal("-corpus is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	entries, err := knowledge.Load(*corpus)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	var embedder embed.Embedder
	switch cfg.EmbedProvider {
	case "gemini":
		embedder, err = embed.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	case "openai":
		embedder, err = embed.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbedModel)
	default:
		embedder = embed.NewFakeEmbedder(0)
	}
	if err != nil {
		log.Fatal(err)
	}

	var store vectorstore.Store
	switch cfg.VectorBackend {
	case "postgres":
		store, err = vectorstore.NewPostgres(cfg.DatabaseURL, embedder.Dimensions())
	case "chroma":
		store = vectorstore.NewChroma(cfg.ChromaURL, cfg.ChromaCollection)
	default:
		store = vectorstore.NewMemory(embedder.Dimensions())
		logger.Warn().Msg("memory vector store does not persist; use postgres or chroma")
	}
	if err != nil {
		log.Fatal(err)
	}

	idx := &knowledge.Indexer{Store: store, Embedder: embedder, Log: logger}
	if *reset {
		if err := idx.Reset(ctx); err != nil {
			log.Fatal(err)
		}
		logger.Info().Msg("collection cleared")
	}
	n, err := idx.Index(ctx, entries)
	if err != nil {
		logger.Error().Err(err).Int("indexed", n).Msg("indexing stopped")
		os.Exit(1)
	}
	logger.Info().Int("indexed", n).Str("backend", cfg.VectorBackend).Msg("corpus indexed")
}
