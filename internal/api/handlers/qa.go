package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apimw "github.com/deskwise/deskwise/internal/api/middleware"
	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/pkg/models"
)

const maxQAImportBatch = 1000

func questionHash(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])
}

type qaPairRequest struct {
	CollectionID string         `json:"collection_id"`
	Question     string         `json:"question"`
	Answer       string         `json:"answer"`
	Category     string         `json:"category"`
	Subcategory  string         `json:"subcategory"`
	Tags         []string       `json:"tags"`
	Metadata     map[string]any `json:"qa_metadata"`
	Priority     int            `json:"priority"`
}

func (h *Handlers) newQAPair(projectID string, req qaPairRequest) *models.QAPair {
	now := time.Now()
	return &models.QAPair{
		ID:           uuid.NewString(),
		ProjectID:    projectID,
		CollectionID: req.CollectionID,
		Question:     req.Question,
		Answer:       req.Answer,
		QuestionHash: questionHash(req.Question),
		Category:     req.Category,
		Subcategory:  req.Subcategory,
		Tags:         req.Tags,
		QAMetadata:   req.Metadata,
		SourceType:   "manual",
		Status:       models.QAStatusPending,
		Priority:     req.Priority,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// createAndProcessQAPair inserts the pending row then runs the C5
// pipeline synchronously — Q/A ingestion skips chunking and embeds a
// single document, so it is cheap enough to not need the worker pool
// (spec §4.5).
func (h *Handlers) createAndProcessQAPair(r *http.Request, qa *models.QAPair) error {
	if existing, err := h.Store.GetQAPairByHash(r.Context(), qa.CollectionID, qa.QuestionHash); err == nil && existing != nil {
		return errs.Newf(errs.Conflict, "a QA pair with this question already exists in the collection").WithDetails(map[string]any{"existing_id": existing.ID})
	}
	if err := h.Store.CreateQAPair(r.Context(), qa); err != nil {
		return err
	}
	return h.Pipeline.ProcessQAPair(r.Context(), qa)
}

// ListQAPairs handles GET /v1/qa-pairs?project_id=…&collection_id=….
func (h *Handlers) ListQAPairs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	filter := parseListFilter(r, projectID)
	pairs, err := h.Store.ListQAPairs(r.Context(), filter, r.URL.Query().Get("collection_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pairs)
}

// GetQAPair handles GET /v1/qa-pairs/{id}?project_id=….
func (h *Handlers) GetQAPair(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "id")
	qa, err := h.Store.GetQAPair(r.Context(), projectID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qa)
}

// CreateQAPair handles POST /v1/qa-pairs?project_id=….
func (h *Handlers) CreateQAPair(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	var req qaPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.CollectionID == "" || req.Question == "" || req.Answer == "" {
		badRequest(w, "collection_id, question and answer are required")
		return
	}
	qa := h.newQAPair(projectID, req)
	if err := h.createAndProcessQAPair(r, qa); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, qa)
}

// BatchCreateQAPairs handles POST /v1/qa-pairs/batch?project_id=….
func (h *Handlers) BatchCreateQAPairs(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	var reqs []qaPairRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if len(reqs) > maxQAImportBatch {
		badRequest(w, "batch exceeds maximum of 1000 QA pairs")
		return
	}

	type batchResult struct {
		Question string        `json:"question"`
		QAPair   *models.QAPair `json:"qa_pair,omitempty"`
		Error    string        `json:"error,omitempty"`
	}
	results := make([]batchResult, 0, len(reqs))
	for _, req := range reqs {
		res := batchResult{Question: req.Question}
		if req.CollectionID == "" || req.Question == "" || req.Answer == "" {
			res.Error = "collection_id, question and answer are required"
			results = append(results, res)
			continue
		}
		qa := h.newQAPair(projectID, req)
		if err := h.createAndProcessQAPair(r, qa); err != nil {
			res.Error = err.Error()
		} else {
			res.QAPair = qa
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// ImportQAPairs handles POST /v1/qa-pairs/import?project_id=… — the same
// shape as batch-create, named separately to match spec §6's "import"
// verb for bulk CSV/JSON-derived uploads (parsing CSV into qaPairRequest
// rows is left to the caller's JSON body; spec §4.5 caps a single import
// at 1000 rows).
func (h *Handlers) ImportQAPairs(w http.ResponseWriter, r *http.Request) {
	h.BatchCreateQAPairs(w, r)
}

// UpdateQAPair handles PUT /v1/qa-pairs/{id}?project_id=….
func (h *Handlers) UpdateQAPair(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "id")
	qa, err := h.Store.GetQAPair(r.Context(), projectID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	var req qaPairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	questionChanged := req.Question != "" && req.Question != qa.Question
	if req.Question != "" {
		qa.Question = req.Question
	}
	if req.Answer != "" {
		qa.Answer = req.Answer
	}
	if req.Category != "" {
		qa.Category = req.Category
	}
	if req.Subcategory != "" {
		qa.Subcategory = req.Subcategory
	}
	if req.Tags != nil {
		qa.Tags = req.Tags
	}
	if req.Metadata != nil {
		qa.QAMetadata = req.Metadata
	}
	if req.Priority != 0 {
		qa.Priority = req.Priority
	}
	qa.UpdatedAt = time.Now()

	if questionChanged {
		qa.QuestionHash = questionHash(qa.Question)
		if err := h.Store.UpdateQAPair(r.Context(), qa); err != nil {
			writeError(w, err)
			return
		}
		if err := h.Pipeline.ProcessQAPair(r.Context(), qa); err != nil {
			writeError(w, err)
			return
		}
	} else if err := h.Store.UpdateQAPair(r.Context(), qa); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, qa)
}

// DeleteQAPair handles DELETE /v1/qa-pairs/{id}?project_id=… — removes
// the vector row by document id, then the FileDocument row, then the
// QAPair row itself (spec §4.5 "Delete").
func (h *Handlers) DeleteQAPair(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "id")
	qa, err := h.Store.GetQAPair(r.Context(), projectID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	if qa.DocumentID != "" {
		if err := h.Vectors.Delete(r.Context(), projectID, []string{qa.DocumentID}); err != nil {
			writeError(w, errs.Wrap(errs.UpstreamFailure, "delete vector row", err))
			return
		}
		if err := h.Store.DeleteFileDocument(r.Context(), projectID, qa.DocumentID); err != nil {
			if !errs.Is(err, errs.NotFound) {
				writeError(w, err)
				return
			}
		}
	}

	if err := h.Store.DeleteQAPair(r.Context(), projectID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
