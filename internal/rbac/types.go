package rbac

import (
	"sort"
	"time"
)

// User account statuses. Exactly one holds at a time; "deleted" is a soft
// delete, the row is never physically removed.
const (
	StatusRegistered = "registered"
	StatusActive     = "active"
	StatusBlocked    = "blocked"
	StatusSuspended  = "suspended"
	StatusDeleted    = "deleted"
)

// ValidStatus reports whether s is a known user status.
func ValidStatus(s string) bool {
	switch s {
	case StatusRegistered, StatusActive, StatusBlocked, StatusSuspended, StatusDeleted:
		return true
	}
	return false
}

// User is a human or service account.
type User struct {
	ID               string     `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	Status           string     `json:"status"`
	EmailConfirmed   bool       `json:"email_confirmed"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	LockoutUntil     *time.Time `json:"lockout_until,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Role groups permissions. Priority orders role display; it never excludes
// grants (the effective set is a plain union).
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	IsDefault   bool      `json:"is_default"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is a fine-grained capability identified by a stable code such as
// "users.delete". Only Description and Category may change after creation.
type Permission struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Module groups permissions for hierarchical display. Modules form a tree; a
// module can never be its own ancestor.
type Module struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRole links a user to a role. A (user, role) pair appears at most once.
type UserRole struct {
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Audit action types.
const (
	ActionUserCreated       = "user.created"
	ActionUserStatusChanged = "user.status_changed"
	ActionUserLockoutSet    = "user.lockout_set"
	ActionRoleCreated       = "role.created"
	ActionRoleAssigned      = "role.assigned"
	ActionRoleRemoved       = "role.removed"
	ActionPermissionGranted = "permission.granted"
	ActionPermissionRevoked = "permission.revoked"
	ActionModuleReparented  = "module.reparented"
	ActionAccessGranted     = "access.granted"
	ActionAccessDenied      = "access.denied"
)

// AuditEntry is an append-only record of a critical action. Entries are never
// mutated or deleted after creation. An empty ActorUserID marks a system
// action.
type AuditEntry struct {
	ID          string    `json:"id"`
	OccurredAt  time.Time `json:"occurred_at"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	OldValue    string    `json:"old_value,omitempty"`
	NewValue    string    `json:"new_value,omitempty"`
	IP          string    `json:"ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

// PermissionSet is the effective set of permission codes granted to a user.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from codes, ignoring empty strings.
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(PermissionSet, len(codes))
	for _, c := range codes {
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether the set contains code.
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Add inserts code into the set.
func (s PermissionSet) Add(code string) {
	if code != "" {
		s[code] = struct{}{}
	}
}

// Codes returns the sorted permission codes.
func (s PermissionSet) Codes() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}
