package httpapi

import (
	"net/http"
	"strings"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/rbac"
)

type authzCheckRequest struct {
	UserID     string `json:"user_id"`
	Permission string `json:"permission"`
	Sensitive  bool   `json:"sensitive,omitempty"`
}

type authzCheckResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// handleAuthzCheck evaluates a permission for a user. The endpoint
// always answers 200 with the decision; a failed evaluation surfaces as
// a deny with reason resolution_error rather than an HTTP error.
func (a *API) handleAuthzCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.authz == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authorization unavailable")
		return
	}
	if _, ok := auth.UserIDFromContext(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req authzCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Permission = strings.TrimSpace(req.Permission)
	if req.UserID == "" || req.Permission == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and permission are required")
		return
	}

	opts := []rbac.CheckOption{rbac.WithOrigin(clientIP(r), r.UserAgent())}
	if req.Sensitive {
		opts = append(opts, rbac.Sensitive())
	}
	decision := a.authz.Decide(r.Context(), req.UserID, req.Permission, opts...)

	writeJSON(w, http.StatusOK, authzCheckResponse{
		Allowed: decision.Allowed,
		Reason:  string(decision.Reason),
	})
}
