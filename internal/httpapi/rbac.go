package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hotelly/hotelly/internal/apperr"
	"github.com/hotelly/hotelly/internal/authz"
)

type rbacHandlers struct {
	deps *Deps
}

func newRBACHandlers(deps *Deps) *rbacHandlers {
	return &rbacHandlers{deps: deps}
}

type rbacUserDTO struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// handleListUsers implements GET /rbac/users: every user holding a
// role on this property, owner down to viewer.
func (h *rbacHandlers) handleListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.deps.Store.Pool.Query(r.Context(), `
		SELECT u.id, u.email, pr.role
		FROM property_roles pr
		JOIN users u ON u.id = pr.user_id
		WHERE pr.property_id = $1
		ORDER BY CASE pr.role WHEN 'owner' THEN 4 WHEN 'manager' THEN 3 WHEN 'staff' THEN 2 WHEN 'governance' THEN 1 ELSE 0 END DESC, u.email`,
		propertyID(r))
	if err != nil {
		writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rbac users query failed", err))
		return
	}
	defer rows.Close()

	out := make([]rbacUserDTO, 0)
	for rows.Next() {
		var d rbacUserDTO
		if err := rows.Scan(&d.UserID, &d.Email, &d.Role); err != nil {
			writeError(w, apperr.Transient(apperr.CodeTransientFailure, "rbac users scan failed", err))
			return
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, out)
}

type grantRoleRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// handleGrantRole implements POST /rbac/users: only an owner can
// grant governance or owner itself, enforced by the route's minimum
// role, not by this handler.
func (h *rbacHandlers) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	var req grantRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	role := authz.Role(req.Role)
	if authz.Level(role) < 0 {
		writeError(w, apperr.Validation(apperr.CodeInvalidInput, "unknown role "+req.Role))
		return
	}
	if err := h.deps.AuthzStore.GrantRole(r.Context(), req.UserID, propertyID(r), role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleRevokeRole implements DELETE /rbac/users/{id}. The store
// itself enforces the last-owner-remove protection, returning a
// validation error rather than letting a property go ownerless.
func (h *rbacHandlers) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if err := h.deps.AuthzStore.RevokeRole(r.Context(), userID, propertyID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type meHandlers struct {
	deps *Deps
}

func newMeHandlers(deps *Deps) *meHandlers {
	return &meHandlers{deps: deps}
}

// handleMe implements GET /me: the identity and role a dashboard
// client resolved to for this property, so it can render role-gated
// UI without separately decoding its own bearer token.
func (h *meHandlers) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     authz.UserID(r.Context()),
		"property_id": propertyID(r),
		"role":        authz.RoleFromContext(r.Context()),
	})
}
