package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatehouse.org/internal/obs"
)

// DenyReason explains why an authorization check failed. Reasons are safe for
// client-facing error messages; they never leak internal state.
type DenyReason string

const (
	DenyNone              DenyReason = ""
	DenyUserInactive      DenyReason = "user_inactive"
	DenyLocked            DenyReason = "locked"
	DenyPermissionMissing DenyReason = "permission_missing"
	DenyUnknownPermission DenyReason = "unknown_permission"
	DenyResolutionError   DenyReason = "resolution_error"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool       `json:"allowed"`
	Reason  DenyReason `json:"reason,omitempty"`
}

// DeniedError is returned by Authorize when access is refused.
type DeniedError struct {
	UserID string
	Code   string
	Reason DenyReason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("rbac: access denied for user %s to %s (%s)", e.UserID, e.Code, e.Reason)
}

// CheckOption marks properties of a single authorization check.
type CheckOption func(*checkConfig)

type checkConfig struct {
	sensitive bool
	actorIP   string
	userAgent string
}

// Sensitive marks the check as audit-worthy: the decision is recorded even
// when access is granted. Denials are always recorded.
func Sensitive() CheckOption {
	return func(c *checkConfig) { c.sensitive = true }
}

// WithOrigin attaches request origin metadata to any audit entry the check
// emits.
func WithOrigin(ip, userAgent string) CheckOption {
	return func(c *checkConfig) {
		c.actorIP = ip
		c.userAgent = userAgent
	}
}

// Authorizer decides whether a user may execute the action identified by a
// permission code. The predicate is fail-closed: every ambiguous or erroring
// condition resolves to deny.
type Authorizer struct {
	store    Store
	resolver *Resolver
	recorder Recorder
	now      func() time.Time
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithRecorder installs the audit recorder used for denials and sensitive
// checks.
func WithRecorder(rec Recorder) AuthorizerOption {
	return func(a *Authorizer) { a.recorder = rec }
}

// WithDecisionClock overrides the time source (used by lockout checks).
func WithDecisionClock(fn func() time.Time) AuthorizerOption {
	return func(a *Authorizer) {
		if fn != nil {
			a.now = fn
		}
	}
}

// NewAuthorizer constructs an Authorizer on top of a resolver.
func NewAuthorizer(store Store, resolver *Resolver, opts ...AuthorizerOption) (*Authorizer, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	if resolver == nil {
		return nil, errors.New("rbac: resolver is required")
	}
	a := &Authorizer{store: store, resolver: resolver, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Decide evaluates the authorization check and returns the full decision.
func (a *Authorizer) Decide(ctx context.Context, userID, code string, opts ...CheckOption) Decision {
	var cfg checkConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	decision := a.evaluate(ctx, userID, code)
	obs.ObserveDecision(decision.Allowed, string(decision.Reason))

	if a.recorder != nil && (!decision.Allowed || cfg.sensitive) {
		action := ActionAccessGranted
		if !decision.Allowed {
			action = ActionAccessDenied
		}
		a.recorder.Record(AuditEntry{
			ActorUserID: userID,
			Action:      action,
			EntityType:  "permission",
			EntityID:    code,
			NewValue:    string(decision.Reason),
			IP:          cfg.actorIP,
			UserAgent:   cfg.userAgent,
		})
	}
	return decision
}

// IsAuthorized reports whether the user holds the permission. Any resolution
// failure yields false, never true.
func (a *Authorizer) IsAuthorized(ctx context.Context, userID, code string, opts ...CheckOption) bool {
	return a.Decide(ctx, userID, code, opts...).Allowed
}

// Authorize returns nil when access is granted and a *DeniedError otherwise.
func (a *Authorizer) Authorize(ctx context.Context, userID, code string, opts ...CheckOption) error {
	decision := a.Decide(ctx, userID, code, opts...)
	if decision.Allowed {
		return nil
	}
	return &DeniedError{UserID: userID, Code: code, Reason: decision.Reason}
}

func (a *Authorizer) evaluate(ctx context.Context, userID, code string) Decision {
	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" {
		return Decision{Reason: DenyResolutionError}
	}
	if code == "" {
		return Decision{Reason: DenyUnknownPermission}
	}

	// Unknown codes always deny, before any per-user work.
	if _, err := a.store.Permissions().FindByCode(ctx, code); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Decision{Reason: DenyUnknownPermission}
		}
		a.logResolutionFailure(userID, code, err)
		return Decision{Reason: DenyResolutionError}
	}

	user, err := a.store.Users().Find(ctx, userID)
	if err != nil {
		a.logResolutionFailure(userID, code, err)
		return Decision{Reason: DenyResolutionError}
	}
	if user.Status != StatusActive {
		return Decision{Reason: DenyUserInactive}
	}
	if user.LockoutUntil != nil && user.LockoutUntil.After(a.now()) {
		return Decision{Reason: DenyLocked}
	}

	set, err := a.resolver.ResolveEffectivePermissions(ctx, userID)
	if err != nil {
		a.logResolutionFailure(userID, code, err)
		return Decision{Reason: DenyResolutionError}
	}
	if !set.Has(code) {
		return Decision{Reason: DenyPermissionMissing}
	}
	return Decision{Allowed: true}
}

func (a *Authorizer) logResolutionFailure(userID, code string, err error) {
	obs.Event("authz.resolution_failed", map[string]any{
		"user_id":    userID,
		"permission": code,
		"error":      err.Error(),
	})
}
