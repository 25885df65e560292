package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"laddergen/internal/classify"
	"laddergen/internal/config"
	"laddergen/internal/embed"
	"laddergen/internal/llm"
	"laddergen/internal/parser"
	"laddergen/internal/pipeline"
	"laddergen/internal/prompts"
	"laddergen/internal/refine"
	"laddergen/internal/retrieve"
	"laddergen/internal/rungen"
	"laddergen/internal/skeleton"
	"laddergen/internal/util/jsonutil"
	"laddergen/internal/vectorstore"
)

func main() {
	in := flag.String("in", "", "path to the CSV or JSON logic sheet")
	out := flag.String("out", "", "output L5X path (default: input with .l5x extension)")
	report := flag.String("report", "", "optional JSON report path")
	name := flag.String("name", "", "project name (default: derived from the first machine)")
	asJSON := flag.Bool("json", false, "treat the input as a JSON upload")
	useRAG := flag.Bool("rag", false, "retrieve similar examples from the configured vector store")
	style := flag.String("style", "", "path to a style profile YAML")
	workers := flag.Int("workers", 0, "concurrent routine generations (default: config)")
	retries := flag.Int("retries", -1, "contract retries per routine (default: config)")
	iterations := flag.Int("iterations", -1, "refinement iterations (default: config)")
	flag.Parse()
	if *in == "" {
		log.Fatal("-in is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := newLogger(cfg)

	data, err := os.ReadFile(*in)
	if err != nil {
		log.Fatal(err)
	}
	var (
		machines []parser.Machine
		warnings []parser.Warning
	)
	if *asJSON || strings.HasSuffix(*in, ".json") {
		machines, err = parser.ParseJSON(data)
	} else {
		machines, warnings, err = parser.ParseCSV(strings.NewReader(string(data)), *name)
	}
	if err != nil {
		log.Fatal(err)
	}
	for _, w := range warnings {
		logger.Warn().Int("line", w.Line).Msg(w.Message)
	}

	ctx := context.Background()
	client, err := newLLMClient(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	var retriever *retrieve.Retriever
	if *useRAG {
		retriever, err = newRetriever(ctx, cfg, logger)
		if err != nil {
			log.Fatal(err)
		}
	}
	profile, err := prompts.LoadProfile(*style)
	if err != nil {
		log.Fatal(err)
	}

	if *workers <= 0 {
		*workers = cfg.Workers
	}
	if *retries < 0 {
		*retries = cfg.GenRetries
	}
	if *iterations < 0 {
		*iterations = cfg.MaxIterations
	}

	p := &pipeline.Pipeline{
		Classifier: &classify.Classifier{Log: logger},
		Skeleton:   &skeleton.Generator{},
		Generator: &rungen.Generator{
			LLM:        client,
			Retriever:  retriever,
			Profile:    profile,
			MaxRetries: *retries,
			Workers:    *workers,
			Log:        logger,
		},
		Refiner: &refine.Loop{LLM: client, MaxIterations: *iterations, Log: logger},
		Log:     logger,
	}
	res, err := p.Run(ctx, machines, *name)
	if err != nil {
		log.Fatal(err)
	}

	outPath := *out
	if outPath == "" {
		outPath = strings.TrimSuffix(*in, ".csv")
		outPath = strings.TrimSuffix(outPath, ".json") + ".l5x"
	}
	if err := os.WriteFile(outPath, []byte(res.Document), 0o644); err != nil {
		log.Fatal(err)
	}
	if *report != "" {
		b, err := jsonutil.MarshalNoEscapeIndent(res, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*report, b, 0o644); err != nil {
			log.Fatal(err)
		}
	}

	for _, issue := range res.Validation.Issues {
		logger.Warn().Str("code", issue.Code).Str("detail", issue.Detail).Msg(issue.Message)
	}
	logger.Info().
		Int("machines", res.Stats.Machines).
		Int("routines", res.Stats.Routines).
		Int("rungs", res.Stats.Rungs).
		Int("failed", res.Stats.FailedRoutines).
		Bool("valid", res.Validation.Valid).
		Str("out", outPath).
		Msg("document written")
	if !res.Validation.Valid {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newLLMClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (llm.Client, error) {
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
	mws := []llm.Middleware{
		llm.WithLogging(logger),
		llm.Retry(llm.DefaultMaxRetries, llm.DefaultRetryBase),
	}
	if cfg.RPSLimit > 0 {
		mws = append(mws, llm.RateLimit(cfg.RPSLimit))
	}
	return llm.Wrap(client, mws...), nil
}

func newRetriever(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*retrieve.Retriever, error) {
	var (
		embedder embed.Embedder
		err      error
	)
	switch cfg.EmbedProvider {
	case "gemini":
		embedder, err = embed.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, cfg.EmbedModel)
	case "openai":
		embedder, err = embed.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbedModel)
	default:
		embedder = embed.NewFakeEmbedder(0)
	}
	if err != nil {
		return nil, err
	}
	if cfg.EmbedCacheSize > 0 {
		if embedder, err = embed.NewCached(embedder, cfg.EmbedCacheSize); err != nil {
			return nil, err
		}
	}

	var store vectorstore.Store
	switch cfg.VectorBackend {
	case "postgres":
		store, err = vectorstore.NewPostgres(cfg.DatabaseURL, embedder.Dimensions())
	case "chroma":
		store = vectorstore.NewChroma(cfg.ChromaURL, cfg.ChromaCollection)
	default:
		store = vectorstore.NewMemory(embedder.Dimensions())
		fmt.Fprintln(os.Stderr, "warning: memory vector store starts empty; retrieval will degrade")
	}
	if err != nil {
		return nil, err
	}
	return retrieve.New(store, embedder, cfg.RetrievalK, logger), nil
}
