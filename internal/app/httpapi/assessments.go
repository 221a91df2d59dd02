package httpapi

import (
	"net/http"
	"time"

	"github.com/aidgrid/platform/internal/app/domain/assessment"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/app/storage"
)

func (h *Handler) handleAssessments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !requireRole(w, r, user.RoleAssessor, user.RoleCoordinator, user.RoleAdmin) {
			return
		}
		var a assessment.RapidAssessment
		if err := decodeJSON(r, &a); err != nil {
			writeError(w, err)
			return
		}
		callerID, _ := identity(r)
		a.AssessorID = callerID
		created, duplicate, err := h.app.Assessments.Submit(r.Context(), a)
		if err != nil {
			writeError(w, err)
			return
		}
		if duplicate {
			writeJSON(w, http.StatusOK, created)
			return
		}
		h.recordAudit(r, "assessment.submitted", created.ID, string(created.Sector))
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		q := r.URL.Query()
		filter := storage.AssessmentFilter{
			EntityID:   q.Get("entity_id"),
			IncidentID: q.Get("incident_id"),
			AssessorID: q.Get("assessor_id"),
			Status:     assessment.VerificationStatus(q.Get("status")),
			Sector:     assessment.Sector(q.Get("sector")),
		}
		if since := q.Get("since"); since != "" {
			if t, err := time.Parse(time.RFC3339, since); err == nil {
				filter.Since = t
			}
		}
		list, err := h.app.Assessments.List(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		methodNotAllowed(w)
	}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleAssessmentByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/assessments/")
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
		a, err := h.app.Assessments.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
		return
	}
	callerID, _ := identity(r)

	switch parts[1] {
	case "verify":
		a, err := h.app.Assessments.Verify(r.Context(), id, callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "assessment.verified", id, "")
		writeJSON(w, http.StatusOK, a)

	case "reject":
		var req rejectRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		a, err := h.app.Assessments.Reject(r.Context(), id, callerID, req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "assessment.rejected", id, req.Reason)
		writeJSON(w, http.StatusOK, a)

	default:
		notFound(w)
	}
}
