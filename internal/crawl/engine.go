// Package crawl implements the C4 Crawl Engine: a breadth-first, same-origin
// crawl rooted at a WebsiteCrawlJob's start URL that hands each page's
// extracted markdown to the C3 Document Pipeline through a synthetic File
// row (spec §4.4).
package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deskwise/deskwise/internal/ingestion"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

type queueItem struct {
	url   string
	depth int
}

// Engine runs crawl jobs and the ad-hoc add-page / crawl-deeper operations.
type Engine struct {
	store     store.Store
	pipeline  *ingestion.Pipeline
	uploadDir string
	client    *http.Client
}

func NewEngine(s store.Store, pipeline *ingestion.Pipeline, uploadDir string) *Engine {
	return &Engine{store: s, pipeline: pipeline, uploadDir: uploadDir, client: defaultHTTPClient()}
}

// RunCrawlJob drives the full BFS crawl for one job: pending → crawling →
// completed (or cancelled/failed), per spec §4.4's numbered flow.
func (e *Engine) RunCrawlJob(ctx context.Context, projectID, jobID string) (err error) {
	job, err := e.store.GetCrawlJob(ctx, projectID, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.CrawlStatusPending {
		return fmt.Errorf("crawl job %s is not pending (status=%s)", jobID, job.Status)
	}

	job.Status = models.CrawlStatusCrawling
	if err := e.store.UpdateCrawlJob(ctx, job); err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if j, gerr := e.store.GetCrawlJob(ctx, projectID, jobID); gerr == nil && j.Status == models.CrawlStatusCrawling {
			j.Status = models.CrawlStatusFailed
			j.ErrorMessage = err.Error()
			j.UpdatedAt = time.Now()
			_ = e.store.UpdateCrawlJob(ctx, j)
		}
	}()

	queue := []queueItem{{url: job.StartURL, depth: 0}}
	job.PagesDiscovered = 1
	visited := map[string]bool{}

	for len(queue) > 0 && job.PagesCrawled < job.MaxPages {
		job, err = e.store.GetCrawlJob(ctx, projectID, jobID)
		if err != nil {
			return err
		}
		if job.Status == models.CrawlStatusCancelled {
			log.Info().Str("crawl_job_id", jobID).Msg("crawl: cancellation observed, stopping")
			return nil
		}

		item := queue[0]
		queue = queue[1:]

		if visited[item.url] {
			continue
		}
		visited[item.url] = true

		if item.depth > job.MaxDepth {
			continue
		}
		if !matchesPatterns(item.url, job.IncludePatterns, job.ExcludePatterns) {
			continue
		}
		if existing, err := e.store.GetWebsitePageByURLHash(ctx, jobID, urlHash(item.url)); err == nil && existing != nil {
			continue
		}

		page, newLinks, processErr := e.crawlOnePage(ctx, job, item.url, item.depth)
		job.PagesCrawled++
		if processErr != nil {
			log.Warn().Err(processErr).Str("url", item.url).Msg("crawl: page fetch failed")
		} else {
			if page.Status == models.PageStatusFailed {
				job.PagesFailed++
			} else {
				job.PagesProcessed++
			}
			for _, link := range newLinks {
				if !visited[link] {
					queue = append(queue, queueItem{url: link, depth: item.depth + 1})
					job.PagesDiscovered++
				}
			}
		}

		if err := e.store.UpdateCrawlJob(ctx, job); err != nil {
			return err
		}
	}

	job, err = e.store.GetCrawlJob(ctx, projectID, jobID)
	if err != nil {
		return err
	}
	if job.Status == models.CrawlStatusCancelled {
		return nil
	}
	job.Status = models.CrawlStatusCompleted
	job.UpdatedAt = time.Now()
	return e.store.UpdateCrawlJob(ctx, job)
}

// crawlOnePage fetches a single URL, writes its WebsitePage row, and — if
// content was extracted — hands it to the document pipeline via a
// synthetic File row (spec §4.4 step 2).
func (e *Engine) crawlOnePage(ctx context.Context, job *models.WebsiteCrawlJob, rawURL string, depth int) (*models.WebsitePage, []string, error) {
	result, err := fetchPage(ctx, e.client, rawURL)
	if err != nil {
		return nil, nil, err
	}

	page := &models.WebsitePage{
		ID:              uuid.NewString(),
		CrawlJobID:      job.ID,
		CollectionID:    job.CollectionID,
		ProjectID:       job.ProjectID,
		URL:             result.URL,
		URLHash:         result.URLHash,
		Title:           result.Title,
		Depth:           depth,
		ContentMarkdown: result.ContentMarkdown,
		ContentLength:   result.ContentLength,
		ContentHash:     result.ContentHash,
		MetaDescription: result.MetaDescription,
		PageMetadata:    map[string]any{"links": result.Links},
		HTTPStatusCode:  result.HTTPStatusCode,
		Status:          models.PageStatusFetched,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if result.ContentLength == 0 {
		page.Status = models.PageStatusFailed
		page.ErrorMessage = "no content extracted"
		if err := e.store.CreateWebsitePage(ctx, page); err != nil {
			return nil, nil, err
		}
		return page, nil, nil
	}

	filePath, err := e.writeMarkdownFile(job.ProjectID, page.ID, result.ContentMarkdown)
	if err != nil {
		page.Status = models.PageStatusFailed
		page.ErrorMessage = err.Error()
		_ = e.store.CreateWebsitePage(ctx, page)
		return page, nil, err
	}

	f := &models.File{
		ID:               uuid.NewString(),
		ProjectID:        job.ProjectID,
		CollectionID:     job.CollectionID,
		OriginalFilename: filepath.Base(filePath),
		ContentType:      "text/markdown",
		StorageProvider:  "local",
		StoragePath:      filePath,
		StorageMetadata: map[string]any{
			"source_url": page.URL,
			"page_id":    page.ID,
		},
		Status:    models.FileStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := e.store.CreateFile(ctx, f); err != nil {
		page.Status = models.PageStatusFailed
		page.ErrorMessage = err.Error()
		_ = e.store.CreateWebsitePage(ctx, page)
		return page, nil, err
	}
	page.FileID = f.ID

	if err := e.store.CreateWebsitePage(ctx, page); err != nil {
		return nil, nil, err
	}

	if err := e.pipeline.ProcessFile(ctx, job.ProjectID, f.ID, filePath); err != nil {
		page.Status = models.PageStatusFailed
		page.ErrorMessage = err.Error()
		_ = e.store.UpdateWebsitePage(ctx, page)
		return page, result.Links, nil
	}

	page.Status = models.PageStatusProcessed
	page.UpdatedAt = time.Now()
	if err := e.store.UpdateWebsitePage(ctx, page); err != nil {
		return nil, nil, err
	}
	return page, result.Links, nil
}

func (e *Engine) writeMarkdownFile(projectID, pageID, content string) (string, error) {
	dir := filepath.Join(e.uploadDir, projectID, "crawl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crawl storage dir: %w", err)
	}
	path := filepath.Join(dir, pageID+".md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write crawl page content: %w", err)
	}
	return path, nil
}

// AddPage adds a single page to an existing job, deduping on
// (collection_id, url_hash); a URL already present in a non-terminal page
// status is refused idempotently by returning the existing row (spec
// §4.4 "Add a single page").
func (e *Engine) AddPage(ctx context.Context, projectID, jobID, rawURL string) (*models.WebsitePage, error) {
	job, err := e.store.GetCrawlJob(ctx, projectID, jobID)
	if err != nil {
		return nil, err
	}

	hash := urlHash(rawURL)
	if known, err := e.store.ListWebsitePagesByCollection(ctx, job.CollectionID); err == nil {
		for i := range known {
			if known[i].URLHash == hash && known[i].Status != models.PageStatusFailed {
				return &known[i], nil
			}
		}
	}

	page := &models.WebsitePage{
		ID:           uuid.NewString(),
		CrawlJobID:   jobID,
		CollectionID: job.CollectionID,
		ProjectID:    projectID,
		URL:          rawURL,
		URLHash:      hash,
		Depth:        0,
		Status:       models.PageStatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := e.store.CreateWebsitePage(ctx, page); err != nil {
		if _, ok := err.(*store.ErrDuplicateMessage); ok {
			if existing, gerr := e.store.GetWebsitePageByURLHash(ctx, jobID, hash); gerr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return page, nil
}

// CrawlDeeperRequest overrides a job's patterns for one crawl-deeper call
// (spec §4.4: "request overrides job").
type CrawlDeeperRequest struct {
	MaxDepth        int
	IncludePatterns []string
	ExcludePatterns []string
}

// CrawlDeeperResult reports what crawl-deeper found and did.
type CrawlDeeperResult struct {
	LinksFound   int
	PagesAdded   int
	PagesSkipped int
}

// CrawlDeeper re-parses a page's stored links (markdown links in
// content_markdown, plus page_metadata.links, which the crawl fills with
// the hrefs of the fetched HTML), normalizes and dedupes them against the
// collection, and enqueues new pending WebsitePage rows one level deeper
// (spec §4.4 "Crawl deeper from page P"). HTML href attributes inside
// content_markdown are not parsed.
func (e *Engine) CrawlDeeper(ctx context.Context, projectID, pageID string, req CrawlDeeperRequest) (*CrawlDeeperResult, error) {
	page, err := e.store.GetWebsitePage(ctx, projectID, pageID)
	if err != nil {
		return nil, err
	}
	job, err := e.store.GetCrawlJob(ctx, projectID, page.CrawlJobID)
	if err != nil {
		return nil, err
	}

	include, exclude := req.IncludePatterns, req.ExcludePatterns
	if include == nil {
		include = job.IncludePatterns
	}
	if exclude == nil {
		exclude = job.ExcludePatterns
	}
	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		return &CrawlDeeperResult{}, nil
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	var links []string
	links = append(links, extractLinksFromMarkdown(base, page.ContentMarkdown)...)
	if stored, ok := page.PageMetadata["links"]; ok {
		links = append(links, toStringSlice(stored)...)
	}
	links = dedupLinks(links)

	known := map[string]bool{}
	if pages, err := e.store.ListWebsitePagesByCollection(ctx, page.CollectionID); err == nil {
		for _, p := range pages {
			known[p.URLHash] = true
		}
	}

	result := &CrawlDeeperResult{LinksFound: len(links)}
	for _, link := range links {
		if !matchesPatterns(link, include, exclude) {
			result.PagesSkipped++
			continue
		}
		if known[urlHash(link)] {
			result.PagesSkipped++
			continue
		}

		newPage := &models.WebsitePage{
			ID:           uuid.NewString(),
			CrawlJobID:   page.CrawlJobID,
			CollectionID: page.CollectionID,
			ProjectID:    projectID,
			URL:          link,
			URLHash:      urlHash(link),
			Depth:        page.Depth + 1,
			Status:       models.PageStatusPending,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := e.store.CreateWebsitePage(ctx, newPage); err != nil {
			result.PagesSkipped++
			continue
		}
		result.PagesAdded++
	}
	return result, nil
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
