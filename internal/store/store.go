// Package store persists book passages and their embeddings in
// PostgreSQL with pgvector, and serves the similarity searches the
// retrieval pipeline runs against them.
package store

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/libram-ai/libram/internal/log"
	"github.com/libram-ai/libram/internal/rag"
)

// Querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
// Interfaces are defined by the consumer, not the provider.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Chunk is one embedded slice of a page, ready for persistence.
type Chunk struct {
	URL        string
	Title      string
	Content    string
	ChunkIndex int
	Embedding  []float32
}

// Passages manages the passages table.
//
// Passages is safe for concurrent use by multiple goroutines.
type Passages struct {
	db     Querier
	logger log.Logger
}

// New creates a passage store over db.
func New(db Querier, logger log.Logger) *Passages {
	return &Passages{db: db, logger: logger}
}

const searchSQL = `SELECT url, title, content, 1 - (embedding <=> $1) AS similarity
FROM passages
ORDER BY embedding <=> $1
LIMIT $2`

// Search returns up to limit passages by descending cosine similarity.
// No threshold is applied here; the retriever filters client-side.
//
// Rows failing the schema contract (empty content, non-finite score) are
// logged and skipped rather than propagated.
func (p *Passages) Search(ctx context.Context, vector []float32, limit int) ([]rag.Passage, error) {
	rows, err := p.db.Query(ctx, searchSQL, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	results := make([]rag.Passage, 0, limit)
	for rows.Next() {
		var (
			url, title, content string
			similarity          float64
		)
		if err := rows.Scan(&url, &title, &content, &similarity); err != nil {
			return nil, fmt.Errorf("scanning passage row: %w", err)
		}

		passage, ok := validatePassage(url, title, content, similarity)
		if !ok {
			p.logger.Warn("skipping malformed passage row", "url", url, "score", similarity)
			continue
		}
		results = append(results, passage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading passage rows: %w", err)
	}

	return results, nil
}

// validatePassage enforces the row schema at the store boundary:
// non-empty url and content, score clamped into [0,1].
func validatePassage(url, title, content string, similarity float64) (rag.Passage, bool) {
	if url == "" || content == "" {
		return rag.Passage{}, false
	}
	if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
		return rag.Passage{}, false
	}
	// Cosine similarity of normalized embeddings lands in [-1,1];
	// scores below zero carry no grounding value.
	score := max(0.0, min(1.0, similarity))

	return rag.Passage{URL: url, Title: title, Content: content, Score: score}, true
}

const upsertSQL = `INSERT INTO passages (url, title, content, chunk_index, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (url, chunk_index) DO UPDATE
SET title = EXCLUDED.title,
    content = EXCLUDED.content,
    embedding = EXCLUDED.embedding,
    updated_at = now()`

// Upsert inserts or refreshes one chunk, keyed by (url, chunk_index).
func (p *Passages) Upsert(ctx context.Context, chunk Chunk) error {
	if chunk.URL == "" || chunk.Content == "" {
		return fmt.Errorf("chunk for %q missing url or content", chunk.URL)
	}
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("chunk %q#%d has no embedding", chunk.URL, chunk.ChunkIndex)
	}

	_, err := p.db.Exec(ctx, upsertSQL,
		chunk.URL, chunk.Title, chunk.Content, chunk.ChunkIndex, pgvector.NewVector(chunk.Embedding))
	if err != nil {
		return fmt.Errorf("upserting chunk %q#%d: %w", chunk.URL, chunk.ChunkIndex, err)
	}
	return nil
}

// DeleteStaleChunks removes chunks of url at or beyond fromIndex.
// Called after re-ingesting a page that now yields fewer chunks.
func (p *Passages) DeleteStaleChunks(ctx context.Context, url string, fromIndex int) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM passages WHERE url = $1 AND chunk_index >= $2`, url, fromIndex)
	if err != nil {
		return 0, fmt.Errorf("deleting stale chunks for %q: %w", url, err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the total number of stored passages.
func (p *Passages) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := p.db.QueryRow(ctx, `SELECT count(*) FROM passages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting passages: %w", err)
	}
	return count, nil
}

// EmbeddingWidth reports the declared dimension of the embedding column.
// pgvector stores the dimension as the column's type modifier.
func (p *Passages) EmbeddingWidth(ctx context.Context) (int, error) {
	var width int
	err := p.db.QueryRow(ctx,
		`SELECT atttypmod FROM pg_attribute WHERE attrelid = 'passages'::regclass AND attname = 'embedding'`,
	).Scan(&width)
	if err != nil {
		return 0, fmt.Errorf("reading embedding column width: %w", err)
	}
	if width < 1 {
		return 0, fmt.Errorf("embedding column has no declared dimension")
	}
	return width, nil
}
