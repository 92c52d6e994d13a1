package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/rbac"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Permissions []string  `json:"permissions"`
}

// handleAuthToken exchanges credentials for a signed token carrying a
// snapshot of the user's effective permissions. Invalid credentials and
// unknown users get the same response.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.tokens == nil || a.store == nil {
		writeError(w, r, http.StatusServiceUnavailable, "authentication unavailable")
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := a.store.Users().FindByUsername(r.Context(), req.Username)
	if errors.Is(err, rbac.ErrNotFound) && strings.Contains(req.Username, "@") {
		user, err = a.store.Users().FindByEmail(r.Context(), strings.ToLower(req.Username))
	}
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "authentication error")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if user.Status != rbac.StatusActive {
		writeError(w, r, http.StatusForbidden, "account is not active")
		return
	}
	if user.LockoutUntil != nil && user.LockoutUntil.After(time.Now()) {
		writeError(w, r, http.StatusForbidden, "account is locked")
		return
	}

	set, err := a.resolver.ResolveEffectivePermissions(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "authentication error")
		return
	}
	perms := set.Codes()

	token, expiresAt, err := a.tokens.Issue(user.ID, perms)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:       token,
		ExpiresAt:   expiresAt,
		Permissions: perms,
	})
}
