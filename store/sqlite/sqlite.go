// Package sqlite implements corpus.VectorStore using pure-Go SQLite
// with in-process brute-force vector search. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	corpus "github.com/solumlabs/corpus"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements corpus.VectorStore backed by a local SQLite file.
// Embedding vectors are stored as JSON text per (chunk, type) pair and
// similarity search is done in-process using brute-force cosine similarity.
// It also serves as the persistent tier of the embedding cache.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ corpus.VectorStore = (*Store)(nil)
var _ corpus.KeywordSearcher = (*Store)(nil)
var _ corpus.CacheStore = (*Store)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	tables := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			hash TEXT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			status TEXT NOT NULL,
			filename TEXT,
			total_pages INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			sequence_order INTEGER NOT NULL,
			scale TEXT NOT NULL,
			hierarchy_level INTEGER NOT NULL,
			parent_id TEXT,
			child_ids TEXT,
			sibling_ids TEXT,
			content TEXT NOT NULL,
			token_count INTEGER NOT NULL,
			quality_score REAL NOT NULL,
			coherence_score REAL NOT NULL,
			boundaries TEXT,
			content_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunk_embeddings (
			chunk_id TEXT NOT NULL,
			type TEXT NOT NULL,
			vector TEXT NOT NULL,
			PRIMARY KEY (chunk_id, type)
		)`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			key TEXT PRIMARY KEY,
			vector TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id)`,
	}

	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	// FTS5 full-text index for keyword search over chunks.
	_, _ = s.db.ExecContext(ctx, `CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(chunk_id UNINDEXED, content)`)

	s.logger.Debug("sqlite: init ok", "duration", time.Since(start))
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	s.logger.Debug("sqlite: store closed")
	return s.db.Close()
}

// --- Sources ---

// UpsertSource inserts or replaces a source record.
func (s *Store) UpsertSource(ctx context.Context, src corpus.Source) error {
	start := time.Now()
	s.logger.Debug("sqlite: upsert source", "id", src.ID, "status", string(src.Status))

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sources (id, hash, version, status, filename, total_pages, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Hash, src.Version, string(src.Status), src.Filename,
		src.TotalPages, src.CreatedAt, src.UpdatedAt)
	if err != nil {
		s.logger.Error("sqlite: upsert source failed", "id", src.ID, "error", err)
		return fmt.Errorf("upsert source: %w", err)
	}
	s.logger.Debug("sqlite: upsert source ok", "id", src.ID, "duration", time.Since(start))
	return nil
}

// GetSource returns a source by ID, or corpus.ErrSourceNotFound.
func (s *Store) GetSource(ctx context.Context, id string) (corpus.Source, error) {
	start := time.Now()
	s.logger.Debug("sqlite: get source", "id", id)

	var src corpus.Source
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, hash, version, status, filename, total_pages, created_at, updated_at
		 FROM sources WHERE id = ?`, id).
		Scan(&src.ID, &src.Hash, &src.Version, &status, &src.Filename,
			&src.TotalPages, &src.CreatedAt, &src.UpdatedAt)
	if err == sql.ErrNoRows {
		s.logger.Debug("sqlite: get source not found", "id", id, "duration", time.Since(start))
		return corpus.Source{}, corpus.ErrSourceNotFound
	}
	if err != nil {
		s.logger.Error("sqlite: get source failed", "id", id, "error", err)
		return corpus.Source{}, fmt.Errorf("get source: %w", err)
	}
	src.Status = corpus.SourceStatus(status)
	s.logger.Debug("sqlite: get source ok", "id", id, "duration", time.Since(start))
	return src, nil
}

// ListSources returns all sources ordered by creation time.
func (s *Store) ListSources(ctx context.Context) ([]corpus.Source, error) {
	start := time.Now()
	s.logger.Debug("sqlite: list sources")

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, hash, version, status, filename, total_pages, created_at, updated_at
		 FROM sources ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []corpus.Source
	for rows.Next() {
		var src corpus.Source
		var status string
		if err := rows.Scan(&src.ID, &src.Hash, &src.Version, &status, &src.Filename,
			&src.TotalPages, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Status = corpus.SourceStatus(status)
		out = append(out, src)
	}
	s.logger.Debug("sqlite: list sources ok", "count", len(out), "duration", time.Since(start))
	return out, rows.Err()
}

// DeleteSource removes a source, its chunks, embeddings, and FTS entries.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	start := time.Now()
	s.logger.Debug("sqlite: delete source", "id", id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete source: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChunksTx(ctx, tx, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: delete source commit failed", "id", id, "error", err)
		return err
	}
	s.logger.Debug("sqlite: delete source ok", "id", id, "duration", time.Since(start))
	return nil
}

func deleteChunksTx(ctx context.Context, tx *sql.Tx, sourceID string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM chunk_embeddings WHERE chunk_id IN (SELECT id FROM chunks WHERE source_id = ?)`, sourceID)
	if err != nil {
		return fmt.Errorf("delete chunk embeddings: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`DELETE FROM chunks_fts WHERE chunk_id IN (SELECT id FROM chunks WHERE source_id = ?)`, sourceID)
	if err != nil {
		return fmt.Errorf("delete chunk fts: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = ?`, sourceID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// --- Chunks ---

// ReplaceChunks atomically swaps the full chunk set of a source.
func (s *Store) ReplaceChunks(ctx context.Context, sourceID string, chunks []corpus.Chunk) error {
	start := time.Now()
	s.logger.Debug("sqlite: replace chunks", "source_id", sourceID, "count", len(chunks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace chunks: %w", err)
	}
	defer tx.Rollback()

	if err := deleteChunksTx(ctx, tx, sourceID); err != nil {
		return err
	}

	for i := range chunks {
		c := &chunks[i]
		childIDs, _ := json.Marshal(c.ChildIDs)
		siblingIDs, _ := json.Marshal(c.SiblingIDs)
		boundaries, _ := json.Marshal(c.Boundaries)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, source_id, sequence_order, scale, hierarchy_level, parent_id,
				child_ids, sibling_ids, content, token_count, quality_score, coherence_score,
				boundaries, content_hash, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.SourceID, c.SequenceOrder, string(c.Scale), c.HierarchyLevel,
			nullable(c.ParentID), string(childIDs), string(siblingIDs), c.Content,
			c.TokenCount, c.QualityScore, c.CoherenceScore, string(boundaries),
			c.ContentHash, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}

		for t, vec := range c.Embeddings {
			if len(vec) == 0 {
				continue
			}
			vecJSON, err := json.Marshal(vec)
			if err != nil {
				return fmt.Errorf("serialize embedding: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO chunk_embeddings (chunk_id, type, vector) VALUES (?, ?, ?)`,
				c.ID, string(t), string(vecJSON))
			if err != nil {
				return fmt.Errorf("insert chunk embedding: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks_fts(chunk_id, content) VALUES (?, ?)`, c.ID, c.Content); err != nil {
			return fmt.Errorf("insert chunk fts: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("sqlite: replace chunks commit failed", "source_id", sourceID, "error", err)
		return err
	}
	s.logger.Debug("sqlite: replace chunks ok", "source_id", sourceID, "count", len(chunks), "duration", time.Since(start))
	return nil
}

const chunkColumns = `id, source_id, sequence_order, scale, hierarchy_level, parent_id,
	child_ids, sibling_ids, content, token_count, quality_score, coherence_score,
	boundaries, content_hash, created_at`

// GetChunksByIDs returns the chunks for the given IDs, with embeddings.
// Unknown IDs are silently absent from the result.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []string) ([]corpus.Chunk, error) {
	start := time.Now()
	s.logger.Debug("sqlite: get chunks by ids", "count", len(ids))
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks by ids: %w", err)
	}
	chunks, err := s.scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachEmbeddings(ctx, chunks); err != nil {
		return nil, err
	}
	s.logger.Debug("sqlite: get chunks by ids ok", "returned", len(chunks), "duration", time.Since(start))
	return chunks, nil
}

// GetChunksBySource returns all chunks of a source in hierarchy-then-sequence
// order, with embeddings.
func (s *Store) GetChunksBySource(ctx context.Context, sourceID string) ([]corpus.Chunk, error) {
	start := time.Now()
	s.logger.Debug("sqlite: get chunks by source", "source_id", sourceID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE source_id = ?
		 ORDER BY hierarchy_level, sequence_order`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get chunks by source: %w", err)
	}
	chunks, err := s.scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachEmbeddings(ctx, chunks); err != nil {
		return nil, err
	}
	s.logger.Debug("sqlite: get chunks by source ok", "source_id", sourceID, "returned", len(chunks), "duration", time.Since(start))
	return chunks, nil
}

func (s *Store) scanChunks(rows *sql.Rows) ([]corpus.Chunk, error) {
	defer rows.Close()
	var chunks []corpus.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func scanChunk(rows *sql.Rows) (corpus.Chunk, error) {
	var c corpus.Chunk
	var scale string
	var parentID sql.NullString
	var childIDs, siblingIDs, boundaries sql.NullString
	if err := rows.Scan(&c.ID, &c.SourceID, &c.SequenceOrder, &scale, &c.HierarchyLevel,
		&parentID, &childIDs, &siblingIDs, &c.Content, &c.TokenCount,
		&c.QualityScore, &c.CoherenceScore, &boundaries, &c.ContentHash, &c.CreatedAt); err != nil {
		return c, fmt.Errorf("scan chunk: %w", err)
	}
	c.Scale = corpus.ScaleType(scale)
	if parentID.Valid {
		c.ParentID = parentID.String
	}
	if childIDs.Valid {
		_ = json.Unmarshal([]byte(childIDs.String), &c.ChildIDs)
	}
	if siblingIDs.Valid {
		_ = json.Unmarshal([]byte(siblingIDs.String), &c.SiblingIDs)
	}
	if boundaries.Valid {
		_ = json.Unmarshal([]byte(boundaries.String), &c.Boundaries)
	}
	return c, nil
}

// attachEmbeddings loads every stored vector for the given chunks.
func (s *Store) attachEmbeddings(ctx context.Context, chunks []corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	byID := make(map[string]*corpus.Chunk, len(chunks))
	placeholders := make([]string, len(chunks))
	args := make([]any, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
		placeholders[i] = "?"
		args[i] = chunks[i].ID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, type, vector FROM chunk_embeddings
		 WHERE chunk_id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return fmt.Errorf("get chunk embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chunkID, typ, vecJSON string
		if err := rows.Scan(&chunkID, &typ, &vecJSON); err != nil {
			return fmt.Errorf("scan chunk embedding: %w", err)
		}
		c, ok := byID[chunkID]
		if !ok {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			continue
		}
		if c.Embeddings == nil {
			c.Embeddings = make(map[corpus.EmbeddingType][]float32)
		}
		c.Embeddings[corpus.EmbeddingType(typ)] = vec
	}
	return rows.Err()
}

// buildChunkFilters translates ChunkFilter values into SQL WHERE clauses.
// The returned clause includes a leading " AND ..." for each filter.
func buildChunkFilters(filters []corpus.ChunkFilter) (string, []any) {
	var clauses []string
	var args []any
	for _, f := range filters {
		if f.SourceID != "" {
			clauses = append(clauses, "c.source_id = ?")
			args = append(args, f.SourceID)
		}
		if f.MinQuality > 0 {
			clauses = append(clauses, "c.quality_score >= ?")
			args = append(args, f.MinQuality)
		}
		if f.MaxQuality > 0 {
			clauses = append(clauses, "c.quality_score <= ?")
			args = append(args, f.MaxQuality)
		}
		if f.After > 0 {
			clauses = append(clauses, "c.created_at >= ?")
			args = append(args, f.After)
		}
		if f.Before > 0 {
			clauses = append(clauses, "c.created_at < ?")
			args = append(args, f.Before)
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

// SearchChunks performs brute-force cosine similarity search over the
// stored vectors of one embedding type.
func (s *Store) SearchChunks(ctx context.Context, t corpus.EmbeddingType, vector []float32, topK int, filters ...corpus.ChunkFilter) ([]corpus.ScoredChunk, error) {
	start := time.Now()
	s.logger.Debug("sqlite: search chunks", "type", string(t), "top_k", topK, "dim", len(vector), "filters", len(filters))

	whereExtra, filterArgs := buildChunkFilters(filters)
	args := append([]any{string(t)}, filterArgs...)

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.source_id, c.sequence_order, c.scale, c.hierarchy_level, c.parent_id,
			c.child_ids, c.sibling_ids, c.content, c.token_count, c.quality_score, c.coherence_score,
			c.boundaries, c.content_hash, c.created_at, e.vector
		 FROM chunk_embeddings e
		 JOIN chunks c ON c.id = e.chunk_id
		 WHERE e.type = ?`+whereExtra, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var results []corpus.ScoredChunk
	scanned := 0
	for rows.Next() {
		var c corpus.Chunk
		var scale string
		var parentID sql.NullString
		var childIDs, siblingIDs, boundaries sql.NullString
		var vecJSON string
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SequenceOrder, &scale, &c.HierarchyLevel,
			&parentID, &childIDs, &siblingIDs, &c.Content, &c.TokenCount,
			&c.QualityScore, &c.CoherenceScore, &boundaries, &c.ContentHash, &c.CreatedAt,
			&vecJSON); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		scanned++
		c.Scale = corpus.ScaleType(scale)
		if parentID.Valid {
			c.ParentID = parentID.String
		}
		if childIDs.Valid {
			_ = json.Unmarshal([]byte(childIDs.String), &c.ChildIDs)
		}
		if siblingIDs.Valid {
			_ = json.Unmarshal([]byte(siblingIDs.String), &c.SiblingIDs)
		}
		if boundaries.Valid {
			_ = json.Unmarshal([]byte(boundaries.String), &c.Boundaries)
		}
		var stored []float32
		if err := json.Unmarshal([]byte(vecJSON), &stored); err != nil {
			continue
		}
		results = append(results, corpus.ScoredChunk{Chunk: c, Score: corpus.CosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	s.logger.Debug("sqlite: search chunks ok", "scanned", scanned, "returned", len(results), "duration", time.Since(start))
	return results, nil
}

// SearchChunksKeyword performs full-text keyword search over chunks using
// SQLite FTS5. Results are sorted by relevance (FTS5 rank).
func (s *Store) SearchChunksKeyword(ctx context.Context, query string, topK int, filters ...corpus.ChunkFilter) ([]corpus.ScoredChunk, error) {
	start := time.Now()
	s.logger.Debug("sqlite: search chunks keyword", "query", query, "top_k", topK, "filters", len(filters))

	whereExtra, filterArgs := buildChunkFilters(filters)
	args := append([]any{query}, filterArgs...)
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, c.source_id, c.sequence_order, c.scale, c.hierarchy_level, c.parent_id,
			c.child_ids, c.sibling_ids, c.content, c.token_count, c.quality_score, c.coherence_score,
			c.boundaries, c.content_hash, c.created_at, f.rank
		 FROM chunks_fts f
		 JOIN chunks c ON c.id = f.chunk_id
		 WHERE chunks_fts MATCH ?`+whereExtra+`
		 ORDER BY f.rank LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	var results []corpus.ScoredChunk
	for rows.Next() {
		var c corpus.Chunk
		var scale string
		var parentID sql.NullString
		var childIDs, siblingIDs, boundaries sql.NullString
		var rank float64
		if err := rows.Scan(&c.ID, &c.SourceID, &c.SequenceOrder, &scale, &c.HierarchyLevel,
			&parentID, &childIDs, &siblingIDs, &c.Content, &c.TokenCount,
			&c.QualityScore, &c.CoherenceScore, &boundaries, &c.ContentHash, &c.CreatedAt,
			&rank); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Scale = corpus.ScaleType(scale)
		if parentID.Valid {
			c.ParentID = parentID.String
		}
		if childIDs.Valid {
			_ = json.Unmarshal([]byte(childIDs.String), &c.ChildIDs)
		}
		if siblingIDs.Valid {
			_ = json.Unmarshal([]byte(siblingIDs.String), &c.SiblingIDs)
		}
		if boundaries.Valid {
			_ = json.Unmarshal([]byte(boundaries.String), &c.Boundaries)
		}
		// FTS5 rank is negative (closer to 0 = better). Use -rank as score.
		score := float32(-rank)
		if score < 0 {
			score = 0
		}
		results = append(results, corpus.ScoredChunk{Chunk: c, Score: score})
	}
	s.logger.Debug("sqlite: search chunks keyword ok", "returned", len(results), "duration", time.Since(start))
	return results, rows.Err()
}

// --- Embedding cache tier ---

// GetEmbedding returns a cached vector by key and bumps its access count.
func (s *Store) GetEmbedding(ctx context.Context, key string) (corpus.CacheEntry, bool, error) {
	start := time.Now()

	var entry corpus.CacheEntry
	var vecJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT key, vector, created_at, access_count FROM embedding_cache WHERE key = ?`, key).
		Scan(&entry.Key, &vecJSON, &entry.CreatedAt, &entry.AccessCount)
	if err == sql.ErrNoRows {
		return corpus.CacheEntry{}, false, nil
	}
	if err != nil {
		return corpus.CacheEntry{}, false, fmt.Errorf("get embedding: %w", err)
	}
	if err := json.Unmarshal([]byte(vecJSON), &entry.Vector); err != nil {
		return corpus.CacheEntry{}, false, fmt.Errorf("deserialize embedding: %w", err)
	}
	_, _ = s.db.ExecContext(ctx,
		`UPDATE embedding_cache SET access_count = access_count + 1 WHERE key = ?`, key)
	s.logger.Debug("sqlite: cache hit", "key", key, "duration", time.Since(start))
	return entry, true, nil
}

// PutEmbedding stores a cache entry. Duplicate keys overwrite idempotently.
func (s *Store) PutEmbedding(ctx context.Context, entry corpus.CacheEntry) error {
	vecJSON, err := json.Marshal(entry.Vector)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO embedding_cache (key, vector, created_at, access_count)
		 VALUES (?, ?, ?, ?)`,
		entry.Key, string(vecJSON), entry.CreatedAt, entry.AccessCount)
	if err != nil {
		return fmt.Errorf("put embedding: %w", err)
	}
	return nil
}

// DeleteEmbeddingsBefore removes entries created before the cutoff and
// returns how many were deleted.
func (s *Store) DeleteEmbeddingsBefore(ctx context.Context, cutoff int64) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM embedding_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	n, _ := res.RowsAffected()
	s.logger.Debug("sqlite: cache purge", "cutoff", cutoff, "deleted", n)
	return int(n), nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
