package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/pkg/models"
)

const requiredEmbeddingDimensions = 1536

type embeddingConfigRequest struct {
	Provider   models.EmbeddingProvider `json:"provider"`
	Model      string                   `json:"model"`
	Dimensions int                      `json:"dimensions"`
	BatchSize  int                      `json:"batch_size"`
	APIKey     string                   `json:"api_key"`
	BaseURL    string                   `json:"base_url"`
}

// BatchSyncEmbeddingConfig handles POST /v1/embedding-configs/batch-sync —
// upserts the single active config for a project and invalidates the
// resolver's cached client so the next request picks it up (spec §4.1).
func (h *Handlers) BatchSyncEmbeddingConfig(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	var req embeddingConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Provider == "" || req.Model == "" {
		badRequest(w, "provider and model are required")
		return
	}
	if req.Dimensions == 0 {
		req.Dimensions = requiredEmbeddingDimensions
	}
	if req.Dimensions != requiredEmbeddingDimensions {
		writeError(w, errs.Newf(errs.InvalidPayload, "dimensions must be %d", requiredEmbeddingDimensions))
		return
	}
	if req.BatchSize <= 0 {
		req.BatchSize = 64
	}

	cfg := &models.EmbeddingConfigRow{
		ProjectID:  projectID,
		Provider:   req.Provider,
		Model:      req.Model,
		Dimensions: req.Dimensions,
		BatchSize:  req.BatchSize,
		APIKey:     req.APIKey,
		BaseURL:    req.BaseURL,
		IsActive:   true,
	}
	if err := h.Store.UpsertEmbeddingConfig(r.Context(), cfg); err != nil {
		writeError(w, err)
		return
	}
	h.Resolver.Invalidate(projectID)
	writeJSON(w, http.StatusOK, cfg)
}

// GetEmbeddingConfig handles GET /v1/embedding-configs/{project_id}.
func (h *Handlers) GetEmbeddingConfig(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	cfg, err := h.Store.GetActiveEmbeddingConfig(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
