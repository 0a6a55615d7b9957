package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/libram-ai/libram/internal/log"
)

// maxSitemapDepth bounds recursion through nested sitemap index files.
const maxSitemapDepth = 3

// maxSitemapBytes bounds how much of a sitemap response is read.
const maxSitemapBytes = 10 << 20

type sitemapFile struct {
	XMLName  xml.Name
	URLs     []sitemapEntry `xml:"url"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// Sitemap fetches and parses XML sitemaps, following sitemap index files
// and keeping only page URLs on the same host as the site base URL.
type Sitemap struct {
	client *http.Client
	base   *url.URL
	logger log.Logger
}

func NewSitemap(client *http.Client, base *url.URL, logger log.Logger) *Sitemap {
	if client == nil {
		client = http.DefaultClient
	}
	return &Sitemap{client: client, base: base, logger: logger}
}

// URLs returns the page URLs listed by the sitemap at sitemapURL.
// Off-host entries are dropped with a warning.
func (s *Sitemap) URLs(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.collect(ctx, sitemapURL, 0)
}

func (s *Sitemap) collect(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	if depth > maxSitemapDepth {
		return nil, fmt.Errorf("sitemap nesting exceeds %d levels at %s", maxSitemapDepth, sitemapURL)
	}

	file, err := s.fetch(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	var urls []string
	for _, entry := range file.URLs {
		loc, ok := s.sameHost(entry.Loc)
		if !ok {
			s.logger.Warn("skipping off-host sitemap entry", "url", entry.Loc)
			continue
		}
		urls = append(urls, loc)
	}
	for _, entry := range file.Sitemaps {
		loc, ok := s.sameHost(entry.Loc)
		if !ok {
			s.logger.Warn("skipping off-host nested sitemap", "url", entry.Loc)
			continue
		}
		nested, err := s.collect(ctx, loc, depth+1)
		if err != nil {
			s.logger.Warn("nested sitemap failed", "url", loc, "error", err)
			continue
		}
		urls = append(urls, nested...)
	}
	return urls, nil
}

func (s *Sitemap) fetch(ctx context.Context, sitemapURL string) (*sitemapFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sitemap request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch sitemap %s: status %d", sitemapURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read sitemap %s: %w", sitemapURL, err)
	}

	var file sitemapFile
	if err := xml.Unmarshal(body, &file); err != nil {
		return nil, fmt.Errorf("parse sitemap %s: %w", sitemapURL, err)
	}
	return &file, nil
}

// sameHost returns the cleaned URL and whether it shares the base host.
func (s *Sitemap) sameHost(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if u.Hostname() != s.base.Hostname() {
		return "", false
	}
	return u.String(), true
}
