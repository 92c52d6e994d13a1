package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"gatehouse.org/internal/rbac"
)

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type lockoutRequest struct {
	Until *time.Time `json:"until"`
}

type assignRoleRequest struct {
	RoleID string `json:"role_id"`
}

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "rbac service unavailable")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actorID, ok := a.ensurePermission(w, r, rbac.PermManageUsers)
	if !ok {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.rbac.CreateUser(r.Context(), rbac.NewUserParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, actorID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "rbac service unavailable")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]

	switch {
	case len(parts) == 1:
		a.getUser(w, r, userID)
	case len(parts) == 2 && parts[1] == "roles":
		a.assignUserRole(w, r, userID)
	case len(parts) == 3 && parts[1] == "roles":
		a.removeUserRole(w, r, userID, parts[2])
	case len(parts) == 2 && parts[1] == "permissions":
		a.getUserPermissions(w, r, userID)
	case len(parts) == 2 && parts[1] == "status":
		a.updateUserStatus(w, r, userID)
	case len(parts) == 2 && parts[1] == "lockout":
		a.setUserLockout(w, r, userID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensurePermission(w, r, rbac.PermManageUsers); !ok {
		return
	}
	user, err := a.store.Users().Find(r.Context(), userID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) assignUserRole(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actorID, ok := a.ensurePermission(w, r, rbac.PermManageUsers)
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.RoleID = strings.TrimSpace(req.RoleID)
	if req.RoleID == "" {
		writeError(w, r, http.StatusBadRequest, "role_id is required")
		return
	}
	if err := a.rbac.AssignRoleToUser(r.Context(), userID, req.RoleID, actorID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) removeUserRole(w http.ResponseWriter, r *http.Request, userID, roleID string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	actorID, ok := a.ensurePermission(w, r, rbac.PermManageUsers)
	if !ok {
		return
	}
	if err := a.rbac.RemoveRoleFromUser(r.Context(), userID, roleID, actorID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) getUserPermissions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensurePermission(w, r, rbac.PermManageUsers); !ok {
		return
	}
	set, err := a.resolver.ResolveEffectivePermissions(r.Context(), userID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":     userID,
		"permissions": set.Codes(),
	})
}

func (a *API) updateUserStatus(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	actorID, ok := a.ensurePermission(w, r, rbac.PermManageUsers)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.rbac.UpdateUserStatus(r.Context(), userID, req.Status, actorID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) setUserLockout(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	actorID, ok := a.ensurePermission(w, r, rbac.PermManageUsers)
	if !ok {
		return
	}
	var req lockoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.rbac.SetUserLockout(r.Context(), userID, req.Until, actorID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
