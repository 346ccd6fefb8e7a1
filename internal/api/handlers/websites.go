package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apimw "github.com/deskwise/deskwise/internal/api/middleware"
	"github.com/deskwise/deskwise/internal/crawl"
	"github.com/deskwise/deskwise/pkg/models"
)

type createCrawlJobRequest struct {
	CollectionID    string   `json:"collection_id"`
	StartURL        string   `json:"start_url"`
	MaxPages        int      `json:"max_pages"`
	MaxDepth        int      `json:"max_depth"`
	IncludePatterns []string `json:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns"`
}

// CreateCrawlJob handles POST /v1/websites/crawl?project_id=… — creates a
// pending WebsiteCrawlJob and runs it in the background (spec §4.4, §6).
func (h *Handlers) CreateCrawlJob(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	var req createCrawlJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.CollectionID == "" || req.StartURL == "" {
		badRequest(w, "collection_id and start_url are required")
		return
	}
	if req.MaxPages <= 0 {
		req.MaxPages = 100
	}
	if req.MaxDepth <= 0 {
		req.MaxDepth = 3
	}

	now := time.Now()
	job := &models.WebsiteCrawlJob{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		CollectionID:    req.CollectionID,
		StartURL:        req.StartURL,
		MaxPages:        req.MaxPages,
		MaxDepth:        req.MaxDepth,
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
		Status:          models.CrawlStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.Store.CreateCrawlJob(r.Context(), job); err != nil {
		writeError(w, err)
		return
	}

	go func(projectID, jobID string) {
		if err := h.Crawl.RunCrawlJob(backgroundContext(), projectID, jobID); err != nil {
			logCrawlFailure(projectID, jobID, err)
		}
	}(projectID, job.ID)

	writeJSON(w, http.StatusCreated, job)
}

// GetCrawlJob handles GET /v1/websites/crawl/{job_id}?project_id=….
func (h *Handlers) GetCrawlJob(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "job_id")
	job, err := h.Store.GetCrawlJob(r.Context(), projectID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelCrawlJob handles POST /v1/websites/crawl/{job_id}/cancel?project_id=….
// The crawl loop observes the request between pages (spec §5).
func (h *Handlers) CancelCrawlJob(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "job_id")
	job, err := h.Store.GetCrawlJob(r.Context(), projectID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	job.RequestCancel()
	job.Status = models.CrawlStatusCancelled
	job.UpdatedAt = time.Now()
	if err := h.Store.UpdateCrawlJob(r.Context(), job); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type addPageRequest struct {
	URL string `json:"url"`
}

// AddCrawlPage handles POST /v1/websites/crawl/{job_id}/pages?project_id=….
func (h *Handlers) AddCrawlPage(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	jobID := chi.URLParam(r, "job_id")
	var req addPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		badRequest(w, "url is required")
		return
	}
	page, err := h.Crawl.AddPage(r.Context(), projectID, jobID, req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, page)
}

type crawlDeeperRequest struct {
	MaxDepth        int      `json:"max_depth"`
	IncludePatterns []string `json:"include_patterns"`
	ExcludePatterns []string `json:"exclude_patterns"`
}

// CrawlDeeper handles POST /v1/websites/pages/{page_id}/crawl-deeper?project_id=….
func (h *Handlers) CrawlDeeper(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	pageID := chi.URLParam(r, "page_id")
	var req crawlDeeperRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.MaxDepth <= 0 {
		req.MaxDepth = 1
	}
	result, err := h.Crawl.CrawlDeeper(r.Context(), projectID, pageID, crawl.CrawlDeeperRequest{
		MaxDepth:        req.MaxDepth,
		IncludePatterns: req.IncludePatterns,
		ExcludePatterns: req.ExcludePatterns,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ListCrawlPages handles GET /v1/websites/pages?collection_id=….
func (h *Handlers) ListCrawlPages(w http.ResponseWriter, r *http.Request) {
	collectionID := r.URL.Query().Get("collection_id")
	if collectionID == "" {
		badRequest(w, "collection_id is required")
		return
	}
	pages, err := h.Store.ListWebsitePagesByCollection(r.Context(), collectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}
