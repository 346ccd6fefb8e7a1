package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apimw "github.com/deskwise/deskwise/internal/api/middleware"
	"github.com/deskwise/deskwise/internal/assignment"
	"github.com/deskwise/deskwise/pkg/models"
)

type transferRequest struct {
	VisitorID        string `json:"visitor_id"`
	Source           string `json:"source"`
	VisitorMessage   string `json:"visitor_message"`
	AssignedByStaff  string `json:"assigned_by_staff"`
	TargetStaffID    string `json:"target_staff_id"`
	PlatformID       string `json:"platform_id"`
	Notes            string `json:"notes"`
	AllowQueue       bool   `json:"allow_queue"`
	SendNotification bool   `json:"send_notification"`
}

// TransferToStaff handles POST /v1/routing/transfer?project_id=… — the
// HTTP entry point for "transfer this visitor to a human" (spec §4.8,
// triggered by a transfer-to-human action from the widget or an agent
// tool call).
func (h *Handlers) TransferToStaff(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if req.VisitorID == "" {
		badRequest(w, "visitor_id is required")
		return
	}

	opts := assignment.TransferOptions{
		Source:           models.AssignmentSource(req.Source),
		VisitorMessage:   req.VisitorMessage,
		AssignedByStaff:  req.AssignedByStaff,
		TargetStaffID:    req.TargetStaffID,
		PlatformID:       req.PlatformID,
		Notes:            req.Notes,
		AllowQueue:       req.AllowQueue,
		SendNotification: req.SendNotification,
	}
	result, err := h.Assignment.TransferToStaff(r.Context(), projectID, req.VisitorID, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CancelQueuedVisitor handles POST /v1/routing/queue/{visitor_id}/cancel?project_id=….
func (h *Handlers) CancelQueuedVisitor(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	visitorID := chi.URLParam(r, "visitor_id")
	if err := h.Assignment.CancelVisitorFromQueue(r.Context(), projectID, visitorID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignFromQueue handles POST /v1/routing/staff/{staff_id}/assign-next?project_id=…
// — pulls the next eligible waiting-queue entry onto a staff member who
// just freed up (spec §4.8 "Assign from waiting queue").
func (h *Handlers) AssignFromQueue(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	staffID := chi.URLParam(r, "staff_id")
	result, err := h.Assignment.AssignFromWaitingQueue(r.Context(), projectID, staffID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
