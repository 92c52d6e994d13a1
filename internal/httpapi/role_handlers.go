package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"gatehouse.org/internal/rbac"
)

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	IsDefault   bool   `json:"is_default"`
	Priority    int    `json:"priority"`
}

type grantPermissionRequest struct {
	Code string `json:"code"`
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "rbac service unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listRoles(w, r)
	case http.MethodPost:
		a.createRole(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.ensurePermission(w, r, rbac.PermManageRoles); !ok {
		return
	}
	roles, err := a.store.Roles().List(r.Context())
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": roles})
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := a.ensurePermission(w, r, rbac.PermManageRoles)
	if !ok {
		return
	}
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.rbac.CreateRole(r.Context(), rbac.NewRoleParams{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
		IsDefault:   req.IsDefault,
		Priority:    req.Priority,
	}, actorID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
	writeJSON(w, http.StatusCreated, role)
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "rbac service unavailable")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/roles/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID := parts[0]

	switch {
	case len(parts) == 1:
		a.getRole(w, r, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, roleID)
	case len(parts) == 3 && parts[1] == "permissions":
		a.revokeRolePermission(w, r, roleID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getRole(w http.ResponseWriter, r *http.Request, roleID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensurePermission(w, r, rbac.PermManageRoles); !ok {
		return
	}
	role, err := a.store.Roles().Find(r.Context(), roleID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	switch r.Method {
	case http.MethodGet:
		a.listRolePermissions(w, r, roleID)
	case http.MethodPost:
		a.grantRolePermission(w, r, roleID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listRolePermissions(w http.ResponseWriter, r *http.Request, roleID string) {
	if _, ok := a.ensurePermission(w, r, rbac.PermManagePermissions); !ok {
		return
	}
	perms, err := a.store.Roles().Permissions(r.Context(), roleID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": perms})
}

func (a *API) grantRolePermission(w http.ResponseWriter, r *http.Request, roleID string) {
	actorID, ok := a.ensurePermission(w, r, rbac.PermManagePermissions)
	if !ok {
		return
	}
	var req grantPermissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		writeError(w, r, http.StatusBadRequest, "code is required")
		return
	}
	if err := a.rbac.AssignPermissionToRole(r.Context(), roleID, req.Code, actorID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) revokeRolePermission(w http.ResponseWriter, r *http.Request, roleID, code string) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	actorID, ok := a.ensurePermission(w, r, rbac.PermManagePermissions)
	if !ok {
		return
	}
	if err := a.rbac.RevokePermissionFromRole(r.Context(), roleID, code, actorID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
