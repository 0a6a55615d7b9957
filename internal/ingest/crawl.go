package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/libram-ai/libram/internal/log"
)

const crawlerUserAgent = "libram-ingest/1.0"

// CrawlConfig carries the crawl limits resolved from configuration.
type CrawlConfig struct {
	BaseURL     string
	SitemapURL  string
	Parallelism int
	Delay       time.Duration
	Timeout     time.Duration
	MaxPages    int
}

// Crawler fetches site pages and reduces them to readable text. Page URLs
// come from the sitemap when one is configured and reachable; otherwise it
// falls back to a bounded same-host link crawl from the base URL.
type Crawler struct {
	cfg    CrawlConfig
	base   *url.URL
	logger log.Logger
}

func NewCrawler(cfg CrawlConfig, logger log.Logger) (*Crawler, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Hostname() == "" {
		return nil, fmt.Errorf("invalid crawl base URL %q", cfg.BaseURL)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 1
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}
	return &Crawler{cfg: cfg, base: base, logger: logger}, nil
}

// Crawl fetches up to MaxPages pages and returns their extracted text.
// Pages that fail to fetch or yield no content are logged and skipped.
func (c *Crawler) Crawl(ctx context.Context) ([]Page, error) {
	urls := c.sitemapURLs(ctx)

	col := colly.NewCollector(
		colly.AllowedDomains(c.base.Hostname()),
		colly.Async(true),
		colly.MaxDepth(3),
		colly.UserAgent(crawlerUserAgent),
	)
	if c.cfg.Timeout > 0 {
		col.SetRequestTimeout(c.cfg.Timeout)
	}
	if err := col.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: c.cfg.Parallelism,
		Delay:       c.cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("configure crawl limits: %w", err)
	}

	var (
		mu        sync.Mutex
		pages     []Page
		scheduled atomic.Int64
	)

	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if scheduled.Add(1) > int64(c.cfg.MaxPages) {
			r.Abort()
		}
	})

	col.OnResponse(func(r *colly.Response) {
		if !isHTML(r.Headers.Get("Content-Type")) {
			return
		}
		page, err := Extract(r.Body, r.Request.URL)
		if err != nil {
			c.logger.Warn("page extraction failed", "url", r.Request.URL.String(), "error", err)
			return
		}
		mu.Lock()
		pages = append(pages, page)
		mu.Unlock()
	})

	col.OnError(func(r *colly.Response, err error) {
		c.logger.Warn("page fetch failed", "url", r.Request.URL.String(), "error", err)
	})

	if len(urls) == 0 {
		c.logger.Info("no sitemap URLs, falling back to link crawl", "base", c.base.String())
		col.OnHTML("a[href]", func(e *colly.HTMLElement) {
			if link := e.Request.AbsoluteURL(e.Attr("href")); link != "" {
				// Already-visited and off-host links are rejected by the
				// collector itself.
				_ = e.Request.Visit(link)
			}
		})
		urls = []string{c.base.String()}
	} else if len(urls) > c.cfg.MaxPages {
		urls = urls[:c.cfg.MaxPages]
	}

	for _, u := range urls {
		if err := col.Visit(u); err != nil {
			c.logger.Warn("skipping page", "url", u, "error", err)
		}
	}
	col.Wait()

	if err := ctx.Err(); err != nil {
		return pages, err
	}
	c.logger.Info("crawl finished", "pages", len(pages))
	return pages, nil
}

// sitemapURLs returns the sitemap page list, or nil when no sitemap is
// configured or it cannot be read.
func (c *Crawler) sitemapURLs(ctx context.Context) []string {
	if c.cfg.SitemapURL == "" {
		return nil
	}
	sm := NewSitemap(&http.Client{Timeout: c.cfg.Timeout}, c.base, c.logger)
	urls, err := sm.URLs(ctx, c.cfg.SitemapURL)
	if err != nil {
		c.logger.Warn("sitemap unavailable", "url", c.cfg.SitemapURL, "error", err)
		return nil
	}
	return urls
}

func isHTML(contentType string) bool {
	return contentType == "" || strings.Contains(contentType, "text/html")
}
