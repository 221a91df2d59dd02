// Package httpapi exposes the platform services over a JSON HTTP API.
package httpapi

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aidgrid/platform/internal/app"
	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/errors"
	"github.com/aidgrid/platform/internal/middleware"
	"github.com/aidgrid/platform/pkg/logger"
)

// Handler serves the versioned JSON API.
type Handler struct {
	app   *app.Application
	audit *AuditLog
	log   *logger.Logger
}

// New creates the API handler. audit may be nil to disable the trail.
func New(application *app.Application, audit *AuditLog, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{app: application, audit: audit, log: log}
}

// Routes registers all API routes on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/v1/auth/register", h.handleRegister)
	mux.HandleFunc("/v1/auth/login", h.handleLogin)
	mux.HandleFunc("/v1/users", h.handleUsers)
	mux.HandleFunc("/v1/users/", h.handleUserByID)
	mux.HandleFunc("/v1/entities", h.handleEntities)
	mux.HandleFunc("/v1/entities/", h.handleEntityByID)
	mux.HandleFunc("/v1/incidents", h.handleIncidents)
	mux.HandleFunc("/v1/incidents/", h.handleIncidentByID)
	mux.HandleFunc("/v1/assessments", h.handleAssessments)
	mux.HandleFunc("/v1/assessments/", h.handleAssessmentByID)
	mux.HandleFunc("/v1/responses", h.handleResponses)
	mux.HandleFunc("/v1/responses/", h.handleResponseByID)
	mux.HandleFunc("/v1/commitments", h.handleCommitments)
	mux.HandleFunc("/v1/commitments/", h.handleCommitmentByID)
	mux.HandleFunc("/v1/sync/assessments", h.handleSyncAssessments)
	mux.HandleFunc("/v1/analytics/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/v1/analytics/trends", h.handleTrends)
	mux.HandleFunc("/v1/audit", h.handleAudit)
	mux.HandleFunc("/v1/events", h.handleEvents)
	return mux
}

// PublicPaths lists routes that bypass authentication.
func PublicPaths() []string {
	return []string{"/health", "/metrics", "/v1/auth/register", "/v1/auth/login"}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.InvalidInput("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathParts splits the request path after the given prefix.
func pathParts(r *http.Request, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	svcErr := errors.GetServiceError(err)
	if svcErr == nil {
		// Service validation errors surface as 400s; store lookups as 404s.
		msg := err.Error()
		switch {
		case stderrors.Is(err, sql.ErrNoRows):
			svcErr = errors.NotFound("record not found")
		case strings.Contains(msg, "not found"):
			svcErr = errors.NotFound(msg)
		default:
			svcErr = errors.InvalidInput(msg)
		}
	}
	body := map[string]interface{}{"error": svcErr.Message, "code": svcErr.Code}
	if len(svcErr.Details) > 0 {
		body["details"] = svcErr.Details
	}
	writeJSON(w, svcErr.HTTPStatus, body)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// identity pulls the caller from the request context.
func identity(r *http.Request) (string, user.Role) {
	return middleware.GetUserID(r.Context()), user.Role(middleware.GetUserRole(r.Context()))
}

// requireRole enforces that the caller holds one of the given roles. It
// writes a 403 and returns false otherwise.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...user.Role) bool {
	_, role := identity(r)
	for _, allowed := range roles {
		if role == allowed {
			return true
		}
	}
	writeError(w, errors.Forbidden(fmt.Sprintf("role %q cannot perform this action", role)))
	return false
}

func (h *Handler) recordAudit(r *http.Request, action, resource, detail string) {
	if h.audit == nil {
		return
	}
	userID, role := identity(r)
	h.audit.Record(userID, string(role), action, resource, detail)
}
