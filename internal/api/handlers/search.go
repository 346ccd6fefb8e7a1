package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/internal/retrieval"
)

type searchRequest struct {
	CollectionID string         `json:"collection_id"`
	Query        string         `json:"query"`
	SearchType   string         `json:"search_type"`
	Limit        int            `json:"limit"`
	MinScore     float64        `json:"min_score"`
	Filters      map[string]any `json:"filters"`
}

// SearchDocuments handles POST /v1/documents/search?project_id=… — picks
// one of the three C6 operations by search_type, defaulting to hybrid
// (spec §4.6, §6).
func (h *Handlers) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.Query == "" {
		badRequest(w, "query is required")
		return
	}

	searchReq := retrieval.Request{
		ProjectID:    projectID,
		CollectionID: req.CollectionID,
		Query:        req.Query,
		Limit:        req.Limit,
		MinScore:     req.MinScore,
		Filters:      req.Filters,
	}

	var (
		results []retrieval.SearchResult
		meta    retrieval.SearchMetadata
		err     error
	)
	switch retrieval.SearchType(req.SearchType) {
	case retrieval.SearchTypeSemantic:
		results, meta, err = h.Retrieval.Semantic(r.Context(), searchReq)
	case retrieval.SearchTypeLexical:
		results, meta, err = h.Retrieval.Lexical(r.Context(), searchReq)
	case "", retrieval.SearchTypeHybrid:
		results, meta, err = h.Retrieval.Hybrid(r.Context(), searchReq)
	default:
		writeError(w, errs.Newf(errs.InvalidPayload, "unknown search_type %q", req.SearchType))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":  results,
		"metadata": meta,
	})
}
