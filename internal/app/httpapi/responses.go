package httpapi

import (
	"net/http"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/response"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage"
)

func (h *Handler) handleResponses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !requireRole(w, r, user.RoleResponder, user.RoleCoordinator, user.RoleAdmin) {
			return
		}
		var resp response.DeliveryResponse
		if err := decodeJSON(r, &resp); err != nil {
			writeError(w, err)
			return
		}
		callerID, _ := identity(r)
		resp.ResponderID = callerID
		created, err := h.app.Responses.Plan(r.Context(), resp)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "response.planned", created.ID, "")
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		q := r.URL.Query()
		filter := storage.ResponseFilter{
			EntityID:           q.Get("entity_id"),
			IncidentID:         q.Get("incident_id"),
			ResponderID:        q.Get("responder_id"),
			Status:             response.Status(q.Get("status")),
			VerificationStatus: assessment.VerificationStatus(q.Get("verification_status")),
		}
		if since := q.Get("since"); since != "" {
			if t, err := time.Parse(time.RFC3339, since); err == nil {
				filter.Since = t
			}
		}
		list, err := h.app.Responses.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		methodNotAllowed(w)
	}
}

func (h *Handler) handleResponseByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/responses/")
	if len(parts) == 0 {
		notFound(w)
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		resp, err := h.app.Responses.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	callerID, _ := identity(r)

	switch parts[1] {
	case "status":
		if !requireRole(w, r, user.RoleResponder, user.RoleCoordinator, user.RoleAdmin) {
			return
		}
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		updated, err := h.app.Responses.UpdateStatus(r.Context(), id, response.Status(req.Status), callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "response.status_changed", id, req.Status)
		writeJSON(w, http.StatusOK, updated)

	case "verify":
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		updated, err := h.app.Responses.Verify(r.Context(), id, callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "response.verified", id, "")
		writeJSON(w, http.StatusOK, updated)

	case "reject":
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		var req rejectRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		updated, err := h.app.Responses.Reject(r.Context(), id, callerID, req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "response.rejected", id, req.Reason)
		writeJSON(w, http.StatusOK, updated)

	default:
		notFound(w)
	}
}
