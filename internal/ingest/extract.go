package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// ErrNoContent is returned when a page yields no extractable text.
var ErrNoContent = errors.New("no extractable content in page")

// Page is a crawled page reduced to its readable text.
type Page struct {
	URL   string
	Title string
	Text  string
}

// contentSelectors are tried in order when readability extraction comes up
// empty. They cover Docusaurus and similar documentation site layouts.
var contentSelectors = []string{
	"article",
	".theme-doc-markdown",
	".markdown",
	"main",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extract reduces raw page HTML to a Page. It runs readability first and
// falls back to known content-container selectors, then the whole body.
func Extract(body []byte, pageURL *url.URL) (Page, error) {
	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		if text := normalizeWhitespace(article.TextContent); text != "" {
			return Page{
				URL:   pageURL.String(),
				Title: strings.TrimSpace(article.Title),
				Text:  text,
			}, nil
		}
	}
	return extractWithSelectors(body, pageURL)
}

func extractWithSelectors(body []byte, pageURL *url.URL) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parse page %s: %w", pageURL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	for _, sel := range contentSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := normalizeWhitespace(node.Text()); text != "" {
			return Page{URL: pageURL.String(), Title: title, Text: text}, nil
		}
	}

	if text := normalizeWhitespace(doc.Find("body").Text()); text != "" {
		return Page{URL: pageURL.String(), Title: title, Text: text}, nil
	}
	return Page{}, fmt.Errorf("%s: %w", pageURL, ErrNoContent)
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
