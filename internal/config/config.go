// Package config loads corpusd configuration: defaults, then a TOML file,
// then CORPUS_* environment variables (env wins).
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Embedding EmbeddingConfig `toml:"embedding"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Cache     CacheConfig     `toml:"cache"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Store     StoreConfig     `toml:"store"`
	Ingest    IngestConfig    `toml:"ingest"`
	Observer  ObserverConfig  `toml:"observer"`
}

type EmbeddingConfig struct {
	BaseURL           string `toml:"base_url"`
	APIKey            string `toml:"api_key"`
	Model             string `toml:"model"`
	Dimensions        int    `toml:"dimensions"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	MaxRetries        int    `toml:"max_retries"`
}

type ChunkingConfig struct {
	Strategy            string  `toml:"strategy"`
	MaxTokens           int     `toml:"max_tokens"`
	MinTokens           int     `toml:"min_tokens"`
	OverlapTokens       int     `toml:"overlap_tokens"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	SentenceScale       bool    `toml:"sentence_scale"`
}

type CacheConfig struct {
	Capacity   int  `toml:"capacity"`
	TTLSeconds int  `toml:"ttl_seconds"`
	Persistent bool `toml:"persistent"`
}

type RetrievalConfig struct {
	MaxChunks      int     `toml:"max_chunks"`
	Strategy       string  `toml:"strategy"`
	DedupThreshold float64 `toml:"dedup_threshold"`
	KeywordWeight  float64 `toml:"keyword_weight"`
	ExpandParents  bool    `toml:"expand_parents"`
	ExpandSiblings bool    `toml:"expand_siblings"`
	ExpandTemporal bool    `toml:"expand_temporal"`
}

type StoreConfig struct {
	Driver      string `toml:"driver"` // "sqlite" or "postgres"
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
}

type IngestConfig struct {
	Workers     int      `toml:"workers"`
	QualityGate float64  `toml:"quality_gate"`
	Keywords    []string `toml:"keywords"`
}

type ObserverConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Embedding: EmbeddingConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
			MaxRetries: 3,
		},
		Chunking: ChunkingConfig{
			Strategy:            "semantic",
			MaxTokens:           512,
			MinTokens:           32,
			OverlapTokens:       48,
			SimilarityThreshold: 0.25,
		},
		Cache:     CacheConfig{Capacity: 4096, Persistent: true},
		Retrieval: RetrievalConfig{MaxChunks: 8, Strategy: "auto", DedupThreshold: 0.9, KeywordWeight: 0.3},
		Store:     StoreConfig{Driver: "sqlite", Path: "corpus.db"},
		Ingest:    IngestConfig{Workers: 4},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "corpus.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides. Malformed numeric values are ignored, keeping the
	// TOML or default value.
	envStr("CORPUS_EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	envStr("CORPUS_EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	envStr("CORPUS_EMBEDDING_MODEL", &cfg.Embedding.Model)
	envInt("CORPUS_EMBEDDING_DIMENSIONS", &cfg.Embedding.Dimensions)
	envInt("CORPUS_EMBEDDING_REQUESTS_PER_MINUTE", &cfg.Embedding.RequestsPerMinute)
	envInt("CORPUS_EMBEDDING_MAX_RETRIES", &cfg.Embedding.MaxRetries)

	envStr("CORPUS_CHUNKING_STRATEGY", &cfg.Chunking.Strategy)
	envInt("CORPUS_CHUNKING_MAX_TOKENS", &cfg.Chunking.MaxTokens)
	envInt("CORPUS_CHUNKING_MIN_TOKENS", &cfg.Chunking.MinTokens)
	envInt("CORPUS_CHUNKING_OVERLAP_TOKENS", &cfg.Chunking.OverlapTokens)
	envFloat("CORPUS_CHUNKING_SIMILARITY_THRESHOLD", &cfg.Chunking.SimilarityThreshold)
	envBool("CORPUS_CHUNKING_SENTENCE_SCALE", &cfg.Chunking.SentenceScale)

	envInt("CORPUS_CACHE_CAPACITY", &cfg.Cache.Capacity)
	envInt("CORPUS_CACHE_TTL_SECONDS", &cfg.Cache.TTLSeconds)
	envBool("CORPUS_CACHE_PERSISTENT", &cfg.Cache.Persistent)

	envInt("CORPUS_RETRIEVAL_MAX_CHUNKS", &cfg.Retrieval.MaxChunks)
	envStr("CORPUS_RETRIEVAL_STRATEGY", &cfg.Retrieval.Strategy)
	envFloat("CORPUS_RETRIEVAL_DEDUP_THRESHOLD", &cfg.Retrieval.DedupThreshold)
	envFloat("CORPUS_RETRIEVAL_KEYWORD_WEIGHT", &cfg.Retrieval.KeywordWeight)
	envBool("CORPUS_RETRIEVAL_EXPAND_PARENTS", &cfg.Retrieval.ExpandParents)
	envBool("CORPUS_RETRIEVAL_EXPAND_SIBLINGS", &cfg.Retrieval.ExpandSiblings)
	envBool("CORPUS_RETRIEVAL_EXPAND_TEMPORAL", &cfg.Retrieval.ExpandTemporal)

	envInt("CORPUS_INGEST_WORKERS", &cfg.Ingest.Workers)
	envFloat("CORPUS_INGEST_QUALITY_GATE", &cfg.Ingest.QualityGate)

	envStr("CORPUS_STORE_PATH", &cfg.Store.Path)
	if v := os.Getenv("CORPUS_POSTGRES_URL"); v != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.PostgresURL = v
	}
	if v := os.Getenv("CORPUS_OBSERVER_ENDPOINT"); v != "" {
		cfg.Observer.Enabled = true
		cfg.Observer.Endpoint = v
	}
	envBool("CORPUS_OBSERVER_ENABLED", &cfg.Observer.Enabled)

	return cfg
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	switch os.Getenv(key) {
	case "true", "1":
		*dst = true
	case "false", "0":
		*dst = false
	}
}
