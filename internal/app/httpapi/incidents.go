package httpapi

import (
	"net/http"

	"github.com/aidgrid/platform/internal/app/domain/incident"
	"github.com/aidgrid/platform/internal/app/domain/user"
)

func (h *Handler) handleIncidents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		var inc incident.Incident
		if err := decodeJSON(r, &inc); err != nil {
			writeError(w, err)
			return
		}
		callerID, _ := identity(r)
		inc.DeclaredBy = callerID
		created, err := h.app.Incidents.Declare(r.Context(), inc)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "incident.declared", created.ID, created.Name)
		writeJSON(w, http.StatusCreated, created)

	case http.MethodGet:
		q := r.URL.Query()
		list, err := h.app.Incidents.List(r.Context(), incident.Status(q.Get("status")), incident.Type(q.Get("type")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		methodNotAllowed(w)
	}
}

type updateIncidentRequest struct {
	Severity    string  `json:"severity,omitempty"`
	SubType     *string `json:"sub_type,omitempty"`
	Source      *string `json:"source,omitempty"`
	Description *string `json:"description,omitempty"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type linkEntityRequest struct {
	EntityID string `json:"entity_id"`
}

func (h *Handler) handleIncidentByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/incidents/")
	if len(parts) == 0 {
		notFound(w)
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			inc, err := h.app.Incidents.Get(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, inc)

		case http.MethodPatch:
			if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
				return
			}
			var req updateIncidentRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, err)
				return
			}
			updated, err := h.app.Incidents.Update(r.Context(), id, incident.Severity(req.Severity), req.SubType, req.Source, req.Description)
			if err != nil {
				writeError(w, err)
				return
			}
			h.recordAudit(r, "incident.updated", id, "")
			writeJSON(w, http.StatusOK, updated)

		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "status":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		callerID, _ := identity(r)
		updated, err := h.app.Incidents.Transition(r.Context(), id, incident.Status(req.Status), callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "incident.status_changed", id, req.Status)
		writeJSON(w, http.StatusOK, updated)

	case "entities":
		h.handleIncidentEntities(w, r, id, parts)

	case "gaps":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		reports, err := h.app.Gaps.ComputeIncident(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reports)

	default:
		notFound(w)
	}
}

func (h *Handler) handleIncidentEntities(w http.ResponseWriter, r *http.Request, id string, parts []string) {
	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		links, err := h.app.Incidents.Entities(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, links)

	case len(parts) == 2 && r.Method == http.MethodPost:
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		var req linkEntityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		callerID, _ := identity(r)
		link, err := h.app.Incidents.LinkEntity(r.Context(), id, req.EntityID, callerID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "incident.entity_linked", id, req.EntityID)
		writeJSON(w, http.StatusCreated, link)

	case len(parts) == 3 && r.Method == http.MethodDelete:
		if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
			return
		}
		if err := h.app.Incidents.UnlinkEntity(r.Context(), id, parts[2]); err != nil {
			writeError(w, err)
			return
		}
		h.recordAudit(r, "incident.entity_unlinked", id, parts[2])
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w)
	}
}
