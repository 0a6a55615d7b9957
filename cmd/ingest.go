package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/libram-ai/libram/internal/app"
	"github.com/libram-ai/libram/internal/config"
	"github.com/libram-ai/libram/internal/ingest"
)

// runIngest crawls the configured site and rebuilds the passage store.
// An optional positional URL overrides the configured site: sitemap URLs
// (*.xml) set sitemap_url, anything else sets site_base_url.
func runIngest() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	applyIngestArgs(cfg, os.Args[2:])
	if cfg.SiteBaseURL == "" {
		return errors.New("site_base_url must be configured for ingestion")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting ingestion", "site", cfg.SiteBaseURL)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	ing, err := a.Ingester()
	if err != nil {
		return fmt.Errorf("creating ingester: %w", err)
	}

	stats, err := ing.Run(ctx)
	if err != nil {
		if errors.Is(err, ingest.ErrAlreadyRunning) {
			return errors.New("another ingest run is in progress, try again later")
		}
		return fmt.Errorf("ingesting site: %w", err)
	}

	fmt.Printf("Ingested %d pages (%d chunks, %d skipped)\n",
		stats.Pages, stats.Chunks, stats.Skipped)
	return nil
}

// applyIngestArgs folds a positional URL into the crawl configuration.
func applyIngestArgs(cfg *config.Config, args []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return
	}
	raw := args[0]
	if strings.HasSuffix(raw, ".xml") {
		cfg.SitemapURL = raw
		if cfg.SiteBaseURL == "" {
			if u, err := url.Parse(raw); err == nil {
				cfg.SiteBaseURL = u.Scheme + "://" + u.Host
			}
		}
		return
	}
	cfg.SiteBaseURL = raw
}
