package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/rbac"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	if a.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.tokens.Parse(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		ctx := auth.ContextWithUser(r.Context(), claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensurePermission runs a live authorization check for the calling user.
// Denials are written to the response; the bool reports whether the
// handler may proceed.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, code string) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	if a.authz == nil {
		return userID, true
	}
	err := a.authz.Authorize(r.Context(), userID, code,
		rbac.WithOrigin(clientIP(r), r.UserAgent()))
	if err != nil {
		var denied *rbac.DeniedError
		if errors.As(err, &denied) {
			if denied.Reason == rbac.DenyResolutionError {
				writeError(w, r, http.StatusInternalServerError, "authorization unavailable")
				return "", false
			}
			writeError(w, r, http.StatusForbidden, "permission denied")
			return "", false
		}
		writeError(w, r, http.StatusInternalServerError, "authorization unavailable")
		return "", false
	}
	return userID, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
