package httpapi

import (
	"net/http"

	"github.com/aidgrid/platform/internal/app/domain/user"
	"github.com/aidgrid/platform/internal/errors"
)

type registerRequest struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Organization string `json:"organization"`
	Password     string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	u, err := h.app.Users.Register(r.Context(), req.Email, req.Name, user.Role(req.Role), req.Organization, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, u, err := h.app.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, errors.Unauthorized(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"token": token, "user": u})
}

func (h *Handler) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !requireRole(w, r, user.RoleAdmin, user.RoleCoordinator) {
		return
	}
	list, err := h.app.Users.List(r.Context(), user.Role(r.URL.Query().Get("role")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type updateUserRequest struct {
	Name         *string `json:"name,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Role         *string `json:"role,omitempty"`
	Active       *bool   `json:"active,omitempty"`
}

func (h *Handler) handleUserByID(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r, "/v1/users/")
	if len(parts) != 1 {
		notFound(w)
		return
	}
	id := parts[0]
	callerID, callerRole := identity(r)

	switch r.Method {
	case http.MethodGet:
		if id != callerID && callerRole != user.RoleAdmin && callerRole != user.RoleCoordinator {
			writeError(w, errors.Forbidden("cannot view other users"))
			return
		}
		u, err := h.app.Users.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, u)

	case http.MethodPatch:
		var req updateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}

		if req.Role != nil || req.Active != nil {
			if callerRole != user.RoleAdmin {
				writeError(w, errors.Forbidden("only admins can change roles or account state"))
				return
			}
		} else if id != callerID && callerRole != user.RoleAdmin {
			writeError(w, errors.Forbidden("cannot edit other users"))
			return
		}

		var u user.User
		var err error
		if req.Name != nil || req.Organization != nil {
			u, err = h.app.Users.UpdateProfile(r.Context(), id, req.Name, req.Organization)
			if err != nil {
				writeError(w, err)
				return
			}
		}
		if req.Role != nil {
			u, err = h.app.Users.ChangeRole(r.Context(), id, user.Role(*req.Role))
			if err != nil {
				writeError(w, err)
				return
			}
			h.recordAudit(r, "user.role_changed", id, *req.Role)
		}
		if req.Active != nil {
			u, err = h.app.Users.SetActive(r.Context(), id, *req.Active)
			if err != nil {
				writeError(w, err)
				return
			}
			h.recordAudit(r, "user.active_changed", id, "")
		}
		if u.ID == "" {
			u, err = h.app.Users.Get(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, u)

	default:
		methodNotAllowed(w)
	}
}
