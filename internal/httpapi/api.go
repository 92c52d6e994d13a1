package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/obs"
	"gatehouse.org/internal/rbac"
)

// ReadyProbe pings backing stores for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the RBAC service.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	tokens   *auth.Tokens
	store    rbac.Store
	rbac     *rbac.Service
	resolver *rbac.Resolver
	authz    *rbac.Authorizer

	rateLimitRPS   float64
	rateLimitBurst int
}

// Option configures API.
type Option func(*API)

// WithRateLimit overrides the per-IP rate limit applied in Handler.
func WithRateLimit(rps float64, burst int) Option {
	return func(a *API) {
		if rps > 0 {
			a.rateLimitRPS = rps
		}
		if burst > 0 {
			a.rateLimitBurst = burst
		}
	}
}

func New(rp ReadyProbe, version string, tokens *auth.Tokens, store rbac.Store,
	svc *rbac.Service, resolver *rbac.Resolver, authz *rbac.Authorizer, opts ...Option) *API {
	a := &API{
		mux:            http.NewServeMux(),
		readyProbe:     rp,
		version:        version,
		tokens:         tokens,
		store:          store,
		rbac:           svc,
		resolver:       resolver,
		authz:          authz,
		rateLimitRPS:   20,
		rateLimitBurst: 40,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("/v1/authz/check", a.handleAuthzCheck)

	a.mux.HandleFunc("/v1/users", a.handleUsersCollection)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/roles", a.handleRolesCollection)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/modules", a.handleModulesCollection)
	a.mux.HandleFunc("/v1/modules/", a.handleModuleResource)
	a.mux.HandleFunc("/v1/audit", a.handleAuditLog)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateLimitBurst, a.rateLimitRPS)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- health/info handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gatehouse-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "gatehouse-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
