// Package ingest builds the passage store from a book site: it discovers
// pages through the sitemap or a bounded crawl, extracts readable text,
// chunks it, embeds the chunks, and upserts them into Postgres.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/flock"

	"github.com/libram-ai/libram/internal/log"
	"github.com/libram-ai/libram/internal/rag"
	"github.com/libram-ai/libram/internal/store"
)

// ErrAlreadyRunning is returned when another ingest run holds the lock.
var ErrAlreadyRunning = errors.New("another ingest run is already in progress")

// Source produces the pages to ingest.
type Source interface {
	Crawl(ctx context.Context) ([]Page, error)
}

// Store persists embedded chunks.
type Store interface {
	Upsert(ctx context.Context, chunk store.Chunk) error
	DeleteStaleChunks(ctx context.Context, url string, fromIndex int) (int64, error)
}

// Stats summarizes an ingest run.
type Stats struct {
	Pages   int
	Chunks  int
	Skipped int
}

// Ingester runs the full ingestion pipeline. A file lock serializes runs
// so two processes cannot write the same pages concurrently.
type Ingester struct {
	source       Source
	embedder     rag.Embedder
	retry        *rag.RetryPolicy
	store        Store
	chunkSize    int
	chunkOverlap int
	lockPath     string
	logger       log.Logger
}

func New(source Source, embedder rag.Embedder, retry *rag.RetryPolicy, st Store, chunkSize, chunkOverlap int, lockPath string, logger log.Logger) *Ingester {
	return &Ingester{
		source:       source,
		embedder:     embedder,
		retry:        retry,
		store:        st,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		lockPath:     lockPath,
		logger:       logger,
	}
}

// Run crawls the site and ingests every page. Individual page failures are
// logged and counted in Stats.Skipped; only crawl and lock failures abort
// the run.
func (in *Ingester) Run(ctx context.Context) (Stats, error) {
	lock := flock.New(in.lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return Stats{}, fmt.Errorf("acquire ingest lock %s: %w", in.lockPath, err)
	}
	if !locked {
		return Stats{}, ErrAlreadyRunning
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			in.logger.Warn("failed to release ingest lock", "path", in.lockPath, "error", err)
		}
	}()

	pages, err := in.source.Crawl(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("crawl site: %w", err)
	}

	var stats Stats
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		n, err := in.ingestPage(ctx, page)
		if err != nil {
			in.logger.Warn("skipping page", "url", page.URL, "error", err)
			stats.Skipped++
			continue
		}
		stats.Pages++
		stats.Chunks += n
	}

	in.logger.Info("ingest finished",
		"pages", stats.Pages,
		"chunks", stats.Chunks,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// ingestPage chunks, embeds, and upserts one page, then prunes chunks left
// over from a previous, longer version of the same page.
func (in *Ingester) ingestPage(ctx context.Context, page Page) (int, error) {
	chunks := SplitText(page.Text, in.chunkSize, in.chunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text after chunking")
	}

	vectors, err := in.embedChunks(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}

	for i, content := range chunks {
		chunk := store.Chunk{
			URL:        page.URL,
			Title:      page.Title,
			Content:    content,
			ChunkIndex: i,
			Embedding:  vectors[i],
		}
		if err := in.store.Upsert(ctx, chunk); err != nil {
			return 0, fmt.Errorf("upsert chunk %d: %w", i, err)
		}
	}

	stale, err := in.store.DeleteStaleChunks(ctx, page.URL, len(chunks))
	if err != nil {
		in.logger.Warn("failed to prune stale chunks", "url", page.URL, "error", err)
	} else if stale > 0 {
		in.logger.Info("pruned stale chunks", "url", page.URL, "count", stale)
	}
	return len(chunks), nil
}

func (in *Ingester) embedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	var vectors [][]float32
	err := in.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = in.embedder.Embed(ctx, chunks, rag.InputTypeDocument)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}
