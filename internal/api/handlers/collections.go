package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apimw "github.com/deskwise/deskwise/internal/api/middleware"
	"github.com/deskwise/deskwise/internal/store"
	"github.com/deskwise/deskwise/pkg/models"
)

func parseListFilter(r *http.Request, projectID string) store.ListFilter {
	q := r.URL.Query()
	f := store.ListFilter{ProjectID: projectID}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Offset = n
		}
	}
	return f
}

// ListCollections handles GET /v1/collections?project_id=… (spec §6): a
// paginated list with each row's file_count joined in.
func (h *Handlers) ListCollections(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	if projectID == "" {
		badRequest(w, "project_id is required")
		return
	}
	filter := parseListFilter(r, projectID)
	cols, err := h.Store.ListCollections(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	for i := range cols {
		files, err := h.Store.ListFiles(r.Context(), store.ListFilter{ProjectID: projectID}, cols[i].ID)
		if err == nil {
			cols[i].FileCount = len(files)
		}
	}
	writeJSON(w, http.StatusOK, cols)
}

type createCollectionRequest struct {
	DisplayName string                 `json:"display_name"`
	Type        models.CollectionType  `json:"collection_type"`
	Description string                 `json:"description"`
	Metadata    map[string]any         `json:"metadata"`
	Tags        []string               `json:"tags"`
	CrawlConfig map[string]any         `json:"crawl_config"`
}

// CreateCollection handles POST /v1/collections?project_id=… (spec §6).
func (h *Handlers) CreateCollection(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	if projectID == "" {
		badRequest(w, "project_id is required")
		return
	}
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.DisplayName == "" {
		badRequest(w, "display_name is required")
		return
	}
	if req.Type == "" {
		req.Type = models.CollectionFile
	}

	now := time.Now()
	c := &models.Collection{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Type:        req.Type,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Metadata:    req.Metadata,
		Tags:        req.Tags,
		CrawlConfig: req.CrawlConfig,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Store.CreateCollection(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCollection handles PUT /v1/collections/{id}?project_id=….
func (h *Handlers) UpdateCollection(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "id")
	c, err := h.Store.GetCollection(r.Context(), projectID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.DisplayName != "" {
		c.DisplayName = req.DisplayName
	}
	if req.Description != "" {
		c.Description = req.Description
	}
	if req.Metadata != nil {
		c.Metadata = req.Metadata
	}
	if req.Tags != nil {
		c.Tags = req.Tags
	}
	if req.CrawlConfig != nil {
		c.CrawlConfig = req.CrawlConfig
	}
	c.UpdatedAt = time.Now()
	if err := h.Store.UpdateCollection(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCollection handles DELETE /v1/collections/{id}?project_id=….
func (h *Handlers) DeleteCollection(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteCollection(r.Context(), projectID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requireProjectID(w http.ResponseWriter, r *http.Request) (string, bool) {
	projectID := apimw.GetProjectID(r)
	if projectID == "" {
		badRequest(w, "project_id is required")
		return "", false
	}
	return projectID, true
}
