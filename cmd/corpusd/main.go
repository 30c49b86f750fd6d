// Command corpusd ingests documents into a knowledge base and answers
// context retrieval queries against it.
//
// Usage:
//
//	corpusd ingest <file> [file...]
//	corpusd query <question>
//	corpusd validate [source-id]
//	corpusd sources
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	corpus "github.com/solumlabs/corpus"
	"github.com/solumlabs/corpus/ingest"
	"github.com/solumlabs/corpus/internal/config"
	"github.com/solumlabs/corpus/loader"
	"github.com/solumlabs/corpus/observer"
	"github.com/solumlabs/corpus/provider/openaicompat"
	"github.com/solumlabs/corpus/store/postgres"
	"github.com/solumlabs/corpus/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.Load(os.Getenv("CORPUS_CONFIG"))
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	// Observability is opt-in; everything else works without it.
	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		var err error
		inst, shutdown, err = observer.Init(ctx)
		if err != nil {
			log.Fatalf("observer init: %v", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	app, err := build(ctx, cfg, logger, inst)
	if err != nil {
		log.Fatal(err)
	}
	defer app.store.Close()
	defer app.cache.Close() // before the store it backs onto

	switch os.Args[1] {
	case "ingest":
		err = app.cmdIngest(ctx, os.Args[2:], inst)
	case "query":
		err = app.cmdQuery(ctx, os.Args[2:])
	case "validate":
		err = app.cmdValidate(ctx, os.Args[2:])
	case "sources":
		err = app.cmdSources(ctx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: corpusd <ingest|query|validate|sources> [args]")
}

type app struct {
	store        corpus.VectorStore
	cache        *corpus.EmbeddingCache
	orchestrator *ingest.Orchestrator
	retriever    corpus.ContextRetriever
	validator    *corpus.Validator
}

// build wires the full pipeline from config: provider with retry and rate
// limiting, store, two-tier cache, chunker, embedder, orchestrator, and
// retriever.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger, inst *observer.Instruments) (*app, error) {
	var provider corpus.EmbeddingProvider = openaicompat.NewEmbedding(
		cfg.Embedding.BaseURL, cfg.Embedding.APIKey,
		cfg.Embedding.Model, cfg.Embedding.Dimensions)
	if inst != nil {
		provider = observer.WrapEmbedding(provider, inst)
	}
	if cfg.Embedding.RequestsPerMinute > 0 {
		provider = corpus.WithEmbeddingRateLimit(provider,
			corpus.RequestsPerMinute(cfg.Embedding.RequestsPerMinute))
	}
	provider = corpus.WithEmbeddingRetry(provider,
		corpus.RetryMaxAttempts(cfg.Embedding.MaxRetries),
		corpus.RetryLogger(logger))

	var store corpus.VectorStore
	var cacheStore corpus.CacheStore
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		pg := postgres.New(pool, postgres.WithEmbeddingDimension(cfg.Embedding.Dimensions))
		store, cacheStore = pg, pg
	default:
		sq := sqlite.New(cfg.Store.Path, sqlite.WithLogger(logger))
		store, cacheStore = sq, sq
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	cacheOpts := []corpus.CacheOption{corpus.WithCacheCapacity(cfg.Cache.Capacity)}
	if cfg.Cache.TTLSeconds > 0 {
		cacheOpts = append(cacheOpts, corpus.WithCacheTTL(time.Duration(cfg.Cache.TTLSeconds)*time.Second))
	}
	if cfg.Cache.Persistent {
		cacheOpts = append(cacheOpts, corpus.WithCacheBacking(cacheStore))
	}
	cache := corpus.NewEmbeddingCache(cacheOpts...)

	chunkerOpts := []ingest.ChunkerOption{
		ingest.WithStrategy(ingest.Strategy(cfg.Chunking.Strategy)),
		ingest.WithMaxTokens(cfg.Chunking.MaxTokens),
		ingest.WithMinTokens(cfg.Chunking.MinTokens),
		ingest.WithOverlapTokens(cfg.Chunking.OverlapTokens),
		ingest.WithSimilarityThreshold(cfg.Chunking.SimilarityThreshold),
		ingest.WithEmbed(provider.Embed),
		ingest.WithChunkerLogger(logger),
	}
	if cfg.Chunking.SentenceScale {
		chunkerOpts = append(chunkerOpts, ingest.WithSentenceScale())
	}
	chunker := ingest.NewChunker(chunkerOpts...)

	embedder, err := ingest.NewEmbedder(provider,
		ingest.WithCache(cache),
		ingest.WithDomainKeywords(cfg.Ingest.Keywords...),
		ingest.WithEmbedderLogger(logger))
	if err != nil {
		return nil, err
	}

	validator := corpus.NewValidator(store,
		corpus.WithEmbeddingDimensions(cfg.Embedding.Dimensions),
		corpus.WithValidatorLogger(logger))

	orchOpts := []ingest.OrchestratorOption{
		ingest.WithWorkers(cfg.Ingest.Workers),
		ingest.WithValidator(validator),
		ingest.WithOrchestratorLogger(logger),
	}
	if cfg.Ingest.QualityGate > 0 {
		orchOpts = append(orchOpts, ingest.WithQualityGate(cfg.Ingest.QualityGate))
	}
	orchestrator, err := ingest.NewOrchestrator(chunker, embedder, store, orchOpts...)
	if err != nil {
		return nil, err
	}

	var retriever corpus.ContextRetriever = corpus.NewRetriever(store, provider,
		corpus.WithRetrieverLogger(logger),
		corpus.WithRetrieveDefaults(retrieveDefaults(cfg.Retrieval)))
	if inst != nil {
		retriever = observer.WrapRetriever(retriever, inst)
	}

	return &app{
		store:        store,
		cache:        cache,
		orchestrator: orchestrator,
		retriever:    retriever,
		validator:    validator,
	}, nil
}

func retrieveDefaults(rc config.RetrievalConfig) corpus.RetrieveConfig {
	cfg := corpus.RetrieveConfig{
		MaxChunks:      rc.MaxChunks,
		DedupThreshold: rc.DedupThreshold,
		KeywordWeight:  float32(rc.KeywordWeight),
		ExpandParents:  rc.ExpandParents,
		ExpandSiblings: rc.ExpandSiblings,
		ExpandTemporal: rc.ExpandTemporal,
	}
	switch rc.Strategy {
	case "vector":
		cfg.Strategy = corpus.StrategyVector
	case "hybrid":
		cfg.Strategy = corpus.StrategyHybrid
	case "multi_scale", "multiscale":
		cfg.Strategy = corpus.StrategyMultiScale
	case "contextual":
		cfg.Strategy = corpus.StrategyContextual
	}
	return cfg
}

func (a *app) cmdIngest(ctx context.Context, args []string, inst *observer.Instruments) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("ingest: at least one file required")
	}

	inputs := make([]corpus.SourceInput, 0, fs.NArg())
	for _, path := range fs.Args() {
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		in, err := loader.Load(path, id)
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
	}

	start := time.Now()
	results, err := a.orchestrator.IngestAll(ctx, inputs)
	for _, res := range results {
		if inst != nil {
			observer.RecordIngest(ctx, inst, res.SourceID, string(res.Status), res.ChunksCreated, time.Since(start))
		}
		fmt.Printf("%-24s %-10s chunks=%d embeddings=%d", res.SourceID, res.Status, res.ChunksCreated, res.EmbeddingsGenerated)
		if res.QualityReport != nil {
			fmt.Printf(" quality=%.3f (%s)", res.QualityReport.Score, res.QualityReport.Grade)
		}
		fmt.Println()
		for _, f := range res.EmbeddingFailures {
			fmt.Printf("  embed failed: chunk=%s type=%s: %v\n", f.ChunkID, f.Type, f.Err)
		}
	}
	return err
}

func (a *app) cmdQuery(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	maxChunks := fs.Int("n", 0, "max context chunks (0 = configured default)")
	fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("query: question required")
	}
	query := strings.Join(fs.Args(), " ")

	cfg := corpus.RetrieveConfig{MaxChunks: *maxChunks}
	result, err := a.retriever.Retrieve(ctx, query, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("strategy: %s, items: %d\n", result.Strategy, len(result.Items))
	for i, item := range result.Items {
		tag := ""
		if item.Expansion != corpus.ExpansionNone {
			tag = " [" + string(item.Expansion) + "]"
		}
		fmt.Printf("--- %d. %s score=%.4f%s\n%s\n", i+1, item.Chunk.ID, item.Score, tag, item.Chunk.Content)
	}
	return nil
}

func (a *app) cmdValidate(ctx context.Context, args []string) error {
	var reports []corpus.ValidationReport
	if len(args) > 0 {
		report, err := a.validator.ValidateSource(ctx, args[0])
		if err != nil {
			return err
		}
		reports = append(reports, report)
	} else {
		var err error
		reports, err = a.validator.ValidateAll(ctx)
		if err != nil {
			return err
		}
	}

	for _, r := range reports {
		fmt.Printf("%-24s score=%.3f grade=%s chunks=%d violations=%d\n",
			r.SourceID, r.Score, r.Grade, r.ChunksChecked, len(r.Violations))
		for _, v := range r.Violations {
			fmt.Printf("  %s\n", v)
		}
	}
	return nil
}

func (a *app) cmdSources(ctx context.Context) error {
	sources, err := a.store.ListSources(ctx)
	if err != nil {
		return err
	}
	for _, src := range sources {
		fmt.Printf("%-24s v%-3d %-10s pages=%-4d %s\n",
			src.ID, src.Version, src.Status, src.TotalPages, src.Filename)
	}
	return nil
}
