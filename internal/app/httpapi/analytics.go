package httpapi

import (
	"net/http"
	"strconv"

	"github.com/aidgrid/platform/internal/app/domain/user"
	syncsvc "github.com/aidgrid/platform/internal/app/services/sync"
)

type syncBatchRequest struct {
	Items []syncsvc.BatchItem `json:"items"`
}

func (h *Handler) handleSyncAssessments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !requireRole(w, r, user.RoleAssessor, user.RoleCoordinator, user.RoleAdmin) {
		return
	}
	var req syncBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	callerID, _ := identity(r)
	result := h.app.Sync.ProcessBatch(r.Context(), callerID, req.Items)
	h.recordAudit(r, "sync.batch", "", strconv.Itoa(len(req.Items))+" items")
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	entries, err := h.app.Analytics.Leaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	points, err := h.app.Analytics.Trends(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !requireRole(w, r, user.RoleAdmin) {
		return
	}
	if h.audit == nil {
		writeJSON(w, http.StatusOK, []AuditEntry{})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, h.audit.Recent(limit))
}
