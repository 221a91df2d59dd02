package httpapi

import (
	"net/http"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/commitment"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage"
	"github.com/aidgrid/platform/internal/errors"
)

func (h *Handler) handleCommitments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !requireRole(w, r, user.RoleDonor, user.RoleCoordinator, user.RoleAdmin) {
			return
		}
		var c commitment.DonorCommitment
		if err := decodeJSON(r, &c); err != nil {
			writeError(w, err)
			return
		}
		callerID, callerRole := identity(r)
		// Donors always pledge for themselves.
		if callerRole == user.RoleDonor || c.DonorID == "" {
			c.DonorID = callerID
		}
		created, err := h.app.Commitments.Pledge(r.Context(), c)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "commitment.pledged", created.ID, "")
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		q := r.URL.Query()
		filter := storage.CommitmentFilter{
			DonorID:    q.Get("donor_id"),
			EntityID:   q.Get("entity_id"),
			IncidentID: q.Get("incident_id"),
			Status:     commitment.Status(q.Get("status")),
		}
		if since := q.Get("since"); since != "" {
			if t, err := time.Parse(time.RFC3339, since); err == nil {
				filter.Since = t
			}
		}
		list, err := h.app.Commitments.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		methodNotAllowed(w)
	}
}

type convertRequest struct {
	ResponderID string `json:"responder_id,omitempty"`
}

func (h *Handler) handleCommitmentByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/commitments/")
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
		c, err := h.app.Commitments.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	callerID, callerRole := identity(r)

	switch parts[1] {
	case "status":
		if !requireRole(w, r, user.RoleDonor, user.RoleCoordinator, user.RoleAdmin) {
			return
		}
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		// Donors may only move their own pledges.
		if callerRole == user.RoleDonor {
			c, err := h.app.Commitments.Get(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			if c.DonorID != callerID {
				writeError(w, errors.Forbidden("commitment belongs to another donor"))
				return
			}
		}
		updated, err := h.app.Commitments.UpdateStatus(r.Context(), id, commitment.Status(req.Status), callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "commitment.status_changed", id, req.Status)
		writeJSON(w, http.StatusOK, updated)

	case "convert":
		if !requireRole(w, r, user.RoleResponder, user.RoleCoordinator, user.RoleAdmin) {
			return
		}
		var req convertRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		responderID := req.ResponderID
		if responderID == "" {
			responderID = callerID
		}
		resp, err := h.app.Commitments.ConvertToResponse(r.Context(), id, responderID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "commitment.converted", id, resp.ID)
		writeJSON(w, http.StatusCreated, resp)

	default:
		notFound(w)
	}
}
