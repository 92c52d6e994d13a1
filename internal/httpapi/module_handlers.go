package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"gatehouse.org/internal/rbac"
)

type createModuleRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	Kind     string `json:"kind"`
}

type setParentRequest struct {
	ParentID string `json:"parent_id"`
}

func (a *API) handleModulesCollection(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "rbac service unavailable")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.listModules(w, r)
	case http.MethodPost:
		a.createModule(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listModules(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.ensurePermission(w, r, rbac.PermManageModules); !ok {
		return
	}
	modules, err := a.store.Modules().List(r.Context())
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": modules})
}

func (a *API) createModule(w http.ResponseWriter, r *http.Request) {
	actorID, ok := a.ensurePermission(w, r, rbac.PermManageModules)
	if !ok {
		return
	}
	var req createModuleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	mod, err := a.rbac.CreateModule(r.Context(), rbac.NewModuleParams{
		Name:     req.Name,
		ParentID: req.ParentID,
		Kind:     req.Kind,
	}, actorID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/modules/%s", mod.ID))
	writeJSON(w, http.StatusCreated, mod)
}

func (a *API) handleModuleResource(w http.ResponseWriter, r *http.Request) {
	if a.rbac == nil {
		writeError(w, r, http.StatusServiceUnavailable, "rbac service unavailable")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/modules/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	moduleID := parts[0]

	switch {
	case len(parts) == 1:
		a.getModule(w, r, moduleID)
	case len(parts) == 2 && parts[1] == "parent":
		a.setModuleParent(w, r, moduleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) getModule(w http.ResponseWriter, r *http.Request, moduleID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensurePermission(w, r, rbac.PermManageModules); !ok {
		return
	}
	mod, err := a.store.Modules().Find(r.Context(), moduleID)
	if err != nil {
		handleRBACError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mod)
}

func (a *API) setModuleParent(w http.ResponseWriter, r *http.Request, moduleID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	actorID, ok := a.ensurePermission(w, r, rbac.PermManageModules)
	if !ok {
		return
	}
	var req setParentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.rbac.SetParentModule(r.Context(), moduleID, req.ParentID, actorID); err != nil {
		handleRBACError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
