package crawl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deskwise/deskwise/internal/ingestion/parser"
)

// fetchResult is the built-in single-page extractor's output (spec §4.4):
// {url, url_hash, title, content_markdown, content_length, content_hash,
// meta_description, http_status_code, links}. The page's depth is tracked
// by the caller, not here.
type fetchResult struct {
	URL             string
	URLHash         string
	Title           string
	ContentMarkdown string
	ContentLength   int
	ContentHash     string
	MetaDescription string
	HTTPStatusCode  int
	Links           []string
}

func urlHash(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:])
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// fetchPage retrieves one page and extracts markdown, metadata and
// same-origin links, the way WebCrawlerService._build_crawled_page does
// for crawl4ai results, minus the headless-browser rendering step.
func fetchPage(ctx context.Context, client *http.Client, rawURL string) (*fetchResult, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "deskwise-crawler/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	html := string(body)

	markdown, title, err := parser.ExtractMarkdownFromReader(html)
	if err != nil {
		return nil, fmt.Errorf("extract markdown from %s: %w", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	metaDescription, _ := doc.Find(`meta[name="description"]`).Attr("content")

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if link, ok := normalizeLink(base, href); ok {
			links = append(links, link)
		}
	})
	links = append(links, extractLinksFromMarkdown(base, markdown)...)
	links = dedupLinks(links)

	return &fetchResult{
		URL:             rawURL,
		URLHash:         urlHash(rawURL),
		Title:           title,
		ContentMarkdown: markdown,
		ContentLength:   len(markdown),
		ContentHash:     contentHash(markdown),
		MetaDescription: strings.TrimSpace(metaDescription),
		HTTPStatusCode:  resp.StatusCode,
		Links:           links,
	}, nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}
