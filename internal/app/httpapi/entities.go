package httpapi

import (
	"net/http"

	"github.com/aidgrid/platform/internal/app/domain/entity"
	"github.com/aidgrid/platform/internal/app/domain/user"
)

func (h *Handler) handleEntities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		var e entity.Entity
		if err := decodeJSON(r, &e); err != nil {
			writeError(w, err)
			return
		}
		created, err := h.app.Entities.Create(r.Context(), e)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "entity.created", created.ID, created.Name)
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		list, err := h.app.Entities.List(r.Context(), entity.Type(r.URL.Query().Get("type")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		methodNotAllowed(w)
	}
}

type assignRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) handleEntityByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/entities/")
	if len(parts) == 0 {
		notFound(w)
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			e, err := h.app.Entities.Get(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, e)

		case http.MethodPatch:
			if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
				return
			}
			var e entity.Entity
			if err := decodeJSON(r, &e); err != nil {
				writeError(w, err)
				return
			}
			e.ID = id
			updated, err := h.app.Entities.Update(r.Context(), e)
			if err != nil {
				writeError(w, err)
				return
			}
			h.recordAudit(r, "entity.updated", id, "")
			writeJSON(w, http.StatusOK, updated)

		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "assignments":
		h.handleEntityAssignments(w, r, id, parts)
	case "gaps":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		report, err := h.app.Gaps.EntityReport(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	case "matches":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator, user.RoleDonor) {
			return
		}
		matches, err := h.app.Gaps.MatchDonors(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	default:
		notFound(w)
	}
}

func (h *Handler) handleEntityAssignments(w http.ResponseWriter, r *http.Request, id string, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		assignments, err := h.app.Entities.Assignments(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, assignments)

	case len(parts) == 2 && r.Method == http.MethodPost:
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		var req assignRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		callerID, _ := identity(r)
		a, err := h.app.Entities.Assign(r.Context(), id, req.UserID, callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "entity.assigned", id, req.UserID)
		writeJSON(w, http.StatusCreated, a)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		if err := h.app.Entities.Unassign(r.Context(), id, parts[2]); err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "entity.unassigned", id, parts[2])
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w)
	}
}
