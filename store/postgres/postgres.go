// Package postgres implements corpus.VectorStore using PostgreSQL with
// pgvector for native vector similarity search and tsvector for full-text
// keyword search.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	corpus "github.com/solumlabs/corpus"
)

// Store implements corpus.VectorStore backed by PostgreSQL with pgvector.
// Vector search uses HNSW indexes with cosine distance, one partial index
// per embedding type.
type Store struct {
	pool *pgxpool.Pool
	cfg  pgConfig
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	embeddingDimension int // 0 = untyped vector
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithEmbeddingDimension sets the vector column dimension (e.g. 1536, 768).
// When set, CREATE TABLE uses vector(N) instead of untyped vector, enabling
// better index optimization and catching dimension mismatches at insert time.
// Only affects new table creation (no ALTER on existing tables).
func WithEmbeddingDimension(dim int) Option {
	return func(c *pgConfig) { c.embeddingDimension = dim }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Higher values improve recall at the cost of memory. Default: pgvector's 16.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size). Higher values improve index quality at the cost of
// slower builds. Default: pgvector's 64.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate list
// size). Higher values improve recall at the cost of latency. Default:
// pgvector's 40. Applied via SET during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

var _ corpus.VectorStore = (*Store)(nil)
var _ corpus.KeywordSearcher = (*Store)(nil)
var _ corpus.CacheStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	var cfg pgConfig
	for _, o := range opts {
		o(&cfg)
	}
	return &Store{pool: pool, cfg: cfg}
}

// vectorType returns "vector" or "vector(N)" depending on config.
func (s *Store) vectorType() string {
	if s.cfg.embeddingDimension > 0 {
		return fmt.Sprintf("vector(%d)", s.cfg.embeddingDimension)
	}
	return "vector"
}

// hnswWithClause returns the WITH (...) clause for HNSW index creation,
// or an empty string if no tuning params are set.
func (s *Store) hnswWithClause() string {
	var parts []string
	if s.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", s.cfg.hnswM))
	}
	if s.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", s.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, all required tables, and indexes.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	vtype := s.vectorType()
	hnswWith := s.hnswWithClause()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			hash TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			total_pages INTEGER NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			sequence_order INTEGER NOT NULL,
			scale TEXT NOT NULL,
			hierarchy_level INTEGER NOT NULL,
			parent_id TEXT,
			child_ids JSONB,
			sibling_ids JSONB,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			quality_score REAL NOT NULL,
			coherence_score REAL NOT NULL,
			boundaries JSONB,
			content_hash TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_source_idx ON chunks(source_id)`,
		`CREATE INDEX IF NOT EXISTS chunks_fts_idx ON chunks USING gin(to_tsvector('english', content))`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_embeddings (
			chunk_id TEXT NOT NULL,
			type TEXT NOT NULL,
			embedding %s NOT NULL,
			PRIMARY KEY (chunk_id, type)
		)`, vtype),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS chunk_embeddings_hnsw_idx
			ON chunk_embeddings USING hnsw (embedding vector_cosine_ops)%s`, hnswWith),

		`CREATE TABLE IF NOT EXISTS embedding_cache (
			key TEXT PRIMARY KEY,
			vector JSONB NOT NULL,
			created_at BIGINT NOT NULL,
			access_count BIGINT NOT NULL DEFAULT 0
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}

	if s.cfg.hnswEFSearch > 0 {
		if _, err := s.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", s.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("postgres: set ef_search: %w", err)
		}
	}

	return nil
}

// Close is a no-op: the pool is caller-owned.
func (s *Store) Close() error { return nil }

// --- Sources ---

// UpsertSource inserts or replaces a source record.
func (s *Store) UpsertSource(ctx context.Context, src corpus.Source) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sources (id, hash, version, status, filename, total_pages, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   hash = EXCLUDED.hash,
		   version = EXCLUDED.version,
		   status = EXCLUDED.status,
		   filename = EXCLUDED.filename,
		   total_pages = EXCLUDED.total_pages,
		   updated_at = EXCLUDED.updated_at`,
		src.ID, src.Hash, src.Version, string(src.Status), src.Filename,
		src.TotalPages, src.CreatedAt, src.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert source: %w", err)
	}
	return nil
}

// GetSource returns a source by ID, or corpus.ErrSourceNotFound.
func (s *Store) GetSource(ctx context.Context, id string) (corpus.Source, error) {
	var src corpus.Source
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, hash, version, status, filename, total_pages, created_at, updated_at
		 FROM sources WHERE id = $1`, id).
		Scan(&src.ID, &src.Hash, &src.Version, &status, &src.Filename,
			&src.TotalPages, &src.CreatedAt, &src.UpdatedAt)
	if err == pgx.ErrNoRows {
		return corpus.Source{}, corpus.ErrSourceNotFound
	}
	if err != nil {
		return corpus.Source{}, fmt.Errorf("postgres: get source: %w", err)
	}
	src.Status = corpus.SourceStatus(status)
	return src, nil
}

// ListSources returns all sources ordered by creation time.
func (s *Store) ListSources(ctx context.Context) ([]corpus.Source, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, hash, version, status, filename, total_pages, created_at, updated_at
		 FROM sources ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sources: %w", err)
	}
	defer rows.Close()

	var out []corpus.Source
	for rows.Next() {
		var src corpus.Source
		var status string
		if err := rows.Scan(&src.ID, &src.Hash, &src.Version, &status, &src.Filename,
			&src.TotalPages, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		src.Status = corpus.SourceStatus(status)
		out = append(out, src)
	}
	return out, rows.Err()
}

// DeleteSource removes a source, its chunks, and their embeddings.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := deleteChunksTx(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sources WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete source: %w", err)
	}
	return tx.Commit(ctx)
}

func deleteChunksTx(ctx context.Context, tx pgx.Tx, sourceID string) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM chunk_embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE source_id = $1)`, sourceID)
	if err != nil {
		return fmt.Errorf("postgres: delete chunk embeddings: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE source_id = $1`, sourceID); err != nil {
		return fmt.Errorf("postgres: delete chunks: %w", err)
	}
	return nil
}

// --- Chunks ---

// ReplaceChunks atomically swaps the full chunk set of a source.
func (s *Store) ReplaceChunks(ctx context.Context, sourceID string, chunks []corpus.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := deleteChunksTx(ctx, tx, sourceID); err != nil {
		return err
	}

	for i := range chunks {
		c := &chunks[i]
		childIDs, _ := json.Marshal(c.ChildIDs)
		siblingIDs, _ := json.Marshal(c.SiblingIDs)
		boundaries, _ := json.Marshal(c.Boundaries)
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, source_id, sequence_order, scale, hierarchy_level, parent_id,
				child_ids, sibling_ids, content, token_count, quality_score, coherence_score,
				boundaries, content_hash, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			c.ID, c.SourceID, c.SequenceOrder, string(c.Scale), c.HierarchyLevel,
			nullable(c.ParentID), string(childIDs), string(siblingIDs), c.Content,
			c.TokenCount, c.QualityScore, c.CoherenceScore, string(boundaries),
			c.ContentHash, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("postgres: insert chunk: %w", err)
		}

		for t, vec := range c.Embeddings {
			if len(vec) == 0 {
				continue
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO chunk_embeddings (chunk_id, type, embedding)
				 VALUES ($1, $2, $3::vector)
				 ON CONFLICT (chunk_id, type) DO UPDATE SET embedding = EXCLUDED.embedding`,
				c.ID, string(t), serializeEmbedding(vec))
			if err != nil {
				return fmt.Errorf("postgres: insert chunk embedding: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

const chunkColumns = `id, source_id, sequence_order, scale, hierarchy_level, parent_id,
	child_ids, sibling_ids, content, token_count, quality_score, coherence_score,
	boundaries, content_hash, created_at`

// GetChunksByIDs returns the chunks for the given IDs, with embeddings.
// Unknown IDs are silently absent from the result.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]corpus.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: get chunks by ids: %w", err)
	}
	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachEmbeddings(ctx, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunksBySource returns all chunks of a source in hierarchy-then-sequence
// order, with embeddings.
func (s *Store) GetChunksBySource(ctx context.Context, sourceID string) ([]corpus.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE source_id = $1
		 ORDER BY hierarchy_level, sequence_order`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("postgres: get chunks by source: %w", err)
	}
	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachEmbeddings(ctx, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func scanChunks(rows pgx.Rows) ([]corpus.Chunk, error) {
	defer rows.Close()
	var chunks []corpus.Chunk
	for rows.Next() {
		var c corpus.Chunk
		var scale string
		var parentID *string
		var childIDs, siblingIDs, boundaries []byte
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SequenceOrder, &scale, &c.HierarchyLevel,
			&parentID, &childIDs, &siblingIDs, &c.Content, &c.TokenCount,
			&c.QualityScore, &c.CoherenceScore, &boundaries, &c.ContentHash, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan chunk: %w", err)
		}
		c.Scale = corpus.ScaleType(scale)
		if parentID != nil {
			c.ParentID = *parentID
		}
		_ = json.Unmarshal(childIDs, &c.ChildIDs)
		_ = json.Unmarshal(siblingIDs, &c.SiblingIDs)
		_ = json.Unmarshal(boundaries, &c.Boundaries)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// attachEmbeddings loads every stored vector for the given chunks.
func (s *Store) attachEmbeddings(ctx context.Context, chunks []corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	byID := make(map[string]*corpus.Chunk, len(chunks))
	ids := make([]string, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
		ids[i] = chunks[i].ID
	}

	rows, err := s.pool.Query(ctx,
		`SELECT chunk_id, type, embedding::text FROM chunk_embeddings WHERE chunk_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("postgres: get chunk embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chunkID, typ, vecStr string
		if err := rows.Scan(&chunkID, &typ, &vecStr); err != nil {
			return fmt.Errorf("postgres: scan chunk embedding: %w", err)
		}
		c, ok := byID[chunkID]
		if !ok {
			continue
		}
		vec, err := deserializeEmbedding(vecStr)
		if err != nil {
			continue
		}
		if c.Embeddings == nil {
			c.Embeddings = make(map[corpus.EmbeddingType][]float32)
		}
		c.Embeddings[corpus.EmbeddingType(typ)] = vec
	}
	return rows.Err()
}

// buildChunkFilters translates ChunkFilter values into SQL WHERE clauses
// with positional placeholders starting at nextArg.
func buildChunkFilters(filters []corpus.ChunkFilter, nextArg int) (string, []any) {
	var clauses []string
	var args []any
	add := func(expr string, val any) {
		clauses = append(clauses, fmt.Sprintf(expr, nextArg))
		args = append(args, val)
		nextArg++
	}
	for _, f := range filters {
		if f.SourceID != "" {
			add("c.source_id = $%d", f.SourceID)
		}
		if f.MinQuality > 0 {
			add("c.quality_score >= $%d", f.MinQuality)
		}
		if f.MaxQuality > 0 {
			add("c.quality_score <= $%d", f.MaxQuality)
		}
		if f.After > 0 {
			add("c.created_at >= $%d", f.After)
		}
		if f.Before > 0 {
			add("c.created_at < $%d", f.Before)
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// SearchChunks performs vector similarity search over one embedding type
// using pgvector's cosine distance operator with HNSW index.
func (s *Store) SearchChunks(ctx context.Context, t corpus.EmbeddingType, vector []float32, topK int, filters ...corpus.ChunkFilter) ([]corpus.ScoredChunk, error) {
	whereExtra, filterArgs := buildChunkFilters(filters, 4)
	embStr := serializeEmbedding(vector)

	q := `SELECT c.id, c.source_id, c.sequence_order, c.scale, c.hierarchy_level, c.parent_id,
			c.child_ids, c.sibling_ids, c.content, c.token_count, c.quality_score, c.coherence_score,
			c.boundaries, c.content_hash, c.created_at,
			1 - (e.embedding <=> $1::vector) AS score
		 FROM chunk_embeddings e
		 JOIN chunks c ON c.id = e.chunk_id
		 WHERE e.type = $2` + whereExtra + `
		 ORDER BY e.embedding <=> $1::vector
		 LIMIT $3`
	args := append([]any{embStr, string(t), topK}, filterArgs...)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search chunks: %w", err)
	}
	defer rows.Close()

	var results []corpus.ScoredChunk
	for rows.Next() {
		c, score, err := scanScoredChunk(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, corpus.ScoredChunk{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

// SearchChunksKeyword performs full-text keyword search over chunks using
// PostgreSQL tsvector ranking.
func (s *Store) SearchChunksKeyword(ctx context.Context, query string, topK int, filters ...corpus.ChunkFilter) ([]corpus.ScoredChunk, error) {
	whereExtra, filterArgs := buildChunkFilters(filters, 3)

	q := `SELECT c.id, c.source_id, c.sequence_order, c.scale, c.hierarchy_level, c.parent_id,
			c.child_ids, c.sibling_ids, c.content, c.token_count, c.quality_score, c.coherence_score,
			c.boundaries, c.content_hash, c.created_at,
			ts_rank(to_tsvector('english', c.content), plainto_tsquery('english', $1)) AS score
		 FROM chunks c
		 WHERE to_tsvector('english', c.content) @@ plainto_tsquery('english', $1)` + whereExtra + `
		 ORDER BY score DESC
		 LIMIT $2`
	args := append([]any{query, topK}, filterArgs...)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: keyword search: %w", err)
	}
	defer rows.Close()

	var results []corpus.ScoredChunk
	for rows.Next() {
		c, score, err := scanScoredChunk(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, corpus.ScoredChunk{Chunk: c, Score: score})
	}
	return results, rows.Err()
}

func scanScoredChunk(rows pgx.Rows) (corpus.Chunk, float32, error) {
	var c corpus.Chunk
	var scale string
	var parentID *string
	var childIDs, siblingIDs, boundaries []byte
	var score float32
	if err := rows.Scan(&c.ID, &c.SourceID, &c.SequenceOrder, &scale, &c.HierarchyLevel,
		&parentID, &childIDs, &siblingIDs, &c.Content, &c.TokenCount,
		&c.QualityScore, &c.CoherenceScore, &boundaries, &c.ContentHash, &c.CreatedAt,
		&score); err != nil {
		return c, 0, fmt.Errorf("postgres: scan chunk: %w", err)
	}
	c.Scale = corpus.ScaleType(scale)
	if parentID != nil {
		c.ParentID = *parentID
	}
	_ = json.Unmarshal(childIDs, &c.ChildIDs)
	_ = json.Unmarshal(siblingIDs, &c.SiblingIDs)
	_ = json.Unmarshal(boundaries, &c.Boundaries)
	return c, score, nil
}

// --- Embedding cache tier ---

// GetEmbedding returns a cached vector by key and bumps its access count.
func (s *Store) GetEmbedding(ctx context.Context, key string) (corpus.CacheEntry, bool, error) {
	var entry corpus.CacheEntry
	var vecJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT key, vector, created_at, access_count FROM embedding_cache WHERE key = $1`, key).
		Scan(&entry.Key, &vecJSON, &entry.CreatedAt, &entry.AccessCount)
	if err == pgx.ErrNoRows {
		return corpus.CacheEntry{}, false, nil
	}
	if err != nil {
		return corpus.CacheEntry{}, false, fmt.Errorf("postgres: get embedding: %w", err)
	}
	if err := json.Unmarshal(vecJSON, &entry.Vector); err != nil {
		return corpus.CacheEntry{}, false, fmt.Errorf("postgres: deserialize embedding: %w", err)
	}
	_, _ = s.pool.Exec(ctx,
		`UPDATE embedding_cache SET access_count = access_count + 1 WHERE key = $1`, key)
	return entry, true, nil
}

// PutEmbedding stores a cache entry. Duplicate keys overwrite idempotently.
func (s *Store) PutEmbedding(ctx context.Context, entry corpus.CacheEntry) error {
	vecJSON, err := json.Marshal(entry.Vector)
	if err != nil {
		return fmt.Errorf("postgres: serialize embedding: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO embedding_cache (key, vector, created_at, access_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET
		   vector = EXCLUDED.vector,
		   created_at = EXCLUDED.created_at`,
		entry.Key, string(vecJSON), entry.CreatedAt, entry.AccessCount)
	if err != nil {
		return fmt.Errorf("postgres: put embedding: %w", err)
	}
	return nil
}

// DeleteEmbeddingsBefore removes entries created before the cutoff and
// returns how many were deleted.
func (s *Store) DeleteEmbeddingsBefore(ctx context.Context, cutoff int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM embedding_cache WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete embeddings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// serializeEmbedding renders a vector in pgvector text format.
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// deserializeEmbedding parses pgvector text format back into a vector.
func deserializeEmbedding(s string) ([]float32, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component: %w", err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
