package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libram-ai/libram/db"
	"github.com/libram-ai/libram/internal/config"
	"github.com/libram-ai/libram/internal/ingest"
	"github.com/libram-ai/libram/internal/log"
	"github.com/libram-ai/libram/internal/observability"
	"github.com/libram-ai/libram/internal/provider"
	"github.com/libram-ai/libram/internal/rag"
	"github.com/libram-ai/libram/internal/store"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before provider.New so Genkit's
	// TracerProvider is ready when Genkit creates its first spans.
	a.otelCleanup = provideOtelShutdown(ctx, cfg)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.Pool = pool

	a.Passages = store.New(pool, logger)

	width, err := a.Passages.EmbeddingWidth(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading passages schema: %w", err)
	}
	if err := matchEmbedderDimension(width, cfg.EmbedderDimension); err != nil {
		return nil, err
	}

	prov, err := provider.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing AI provider: %w", err)
	}
	a.Provider = prov

	a.Pipeline = providePipeline(cfg, prov, a.Passages, logger)

	return a, nil
}

// provideOtelShutdown registers OTLP trace export with Genkit's
// TracerProvider and returns the teardown hook.
func provideOtelShutdown(ctx context.Context, cfg *config.Config) func() {
	shutdown, err := observability.SetupTracing(ctx, observability.Config{
		AgentHost:   cfg.Tracing.AgentHost,
		Environment: cfg.Tracing.Environment,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil || shutdown == nil {
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// matchEmbedderDimension guards against config/schema drift: pgvector
// rejects vectors whose length differs from the column's declared
// dimension, which would fail every upsert and search at runtime.
func matchEmbedderDimension(schemaWidth, configured int) error {
	if schemaWidth != configured {
		return fmt.Errorf("%w: embedder_dimension %d does not match passages embedding column vector(%d)",
			config.ErrInvalidEmbedderDimension, configured, schemaWidth)
	}
	return nil
}

// providePipeline assembles the answer pipeline from configuration.
func providePipeline(cfg *config.Config, prov *provider.Provider, passages *store.Passages, logger log.Logger) *rag.Pipeline {
	retry := rag.NewRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	cache := rag.NewTTLCache(cfg.CacheTTL)

	embedder := rag.NewQueryEmbedder(prov.Embedder(), cache, retry, cfg.EmbedTimeout, logger)
	retriever := rag.NewRetriever(passages, cfg.TopKResults, cfg.ScoreThreshold, cfg.SearchTimeout, logger)
	generator := rag.NewAnswerGenerator(prov.ChatModel(), retry, cfg.GenerateTimeout, logger)

	return rag.NewPipeline(embedder, retriever, generator, logger)
}

// Ingester builds the site ingestion pipeline from the app's components.
func (a *App) Ingester() (*ingest.Ingester, error) {
	crawler, err := ingest.NewCrawler(crawlConfigFrom(a.Config), a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating crawler: %w", err)
	}

	lockPath, err := ingestLockPath()
	if err != nil {
		return nil, err
	}

	retry := rag.NewRetryPolicy(a.Config.MaxRetries, a.Config.RetryBaseDelay, a.Config.RetryMaxDelay)
	return ingest.New(crawler, a.Provider.Embedder(), retry, a.Passages,
		a.Config.ChunkSize, a.Config.ChunkOverlap, lockPath, a.Logger), nil
}

// crawlConfigFrom translates configuration knobs into crawl limits.
func crawlConfigFrom(cfg *config.Config) ingest.CrawlConfig {
	return ingest.CrawlConfig{
		BaseURL:     cfg.SiteBaseURL,
		SitemapURL:  cfg.SitemapURL,
		Parallelism: cfg.Crawler.Parallelism,
		Delay:       time.Duration(cfg.Crawler.DelayMs) * time.Millisecond,
		Timeout:     time.Duration(cfg.Crawler.TimeoutMs) * time.Millisecond,
		MaxPages:    cfg.Crawler.MaxPages,
	}
}

// ingestLockPath returns the cross-process ingest lock file, creating its
// directory if needed.
func ingestLockPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".libram")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return filepath.Join(dir, "ingest.lock"), nil
}
