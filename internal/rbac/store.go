package rbac

import (
	"context"
	"time"
)

// Store describes the persistence operations the RBAC core consumes.
type Store interface {
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
	Modules() ModuleStore
	Audit() AuditStore
}

// UserStore manages user accounts and their role assignments.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateStatus(ctx context.Context, id, status string) error
	SetLockout(ctx context.Context, id string, until *time.Time) error

	// ActiveRoles returns the roles assigned to the user where Role.Active
	// is true, ordered by descending priority.
	ActiveRoles(ctx context.Context, userID string) ([]Role, error)

	// AssignRole links the role to the user. Returns false when the pair
	// already existed (idempotent no-op).
	AssignRole(ctx context.Context, userID, roleID string, at time.Time) (bool, error)

	// RemoveRole unlinks the role. Returns false when no link existed.
	RemoveRole(ctx context.Context, userID, roleID string) (bool, error)
}

// RoleStore manages roles and their permission links.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, id string) (*Role, error)
	List(ctx context.Context) ([]Role, error)

	// Defaults returns the roles flagged IsDefault, auto-assigned to new users.
	Defaults(ctx context.Context) ([]Role, error)

	Permissions(ctx context.Context, roleID string) ([]Permission, error)

	// Grant links a permission to the role. Returns false when the link
	// already existed.
	Grant(ctx context.Context, roleID, permissionID string) (bool, error)

	// Revoke unlinks a permission. Returns false when no link existed.
	Revoke(ctx context.Context, roleID, permissionID string) (bool, error)

	// HolderIDs returns the ids of all users currently assigned the role,
	// for bulk cache invalidation.
	HolderIDs(ctx context.Context, roleID string) ([]string, error)
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	Ensure(ctx context.Context, perms []Permission) error
	FindByCode(ctx context.Context, code string) (*Permission, error)
	List(ctx context.Context) ([]Permission, error)
}

// ModuleStore manages the module tree.
type ModuleStore interface {
	Create(ctx context.Context, m *Module) error
	Find(ctx context.Context, id string) (*Module, error)
	List(ctx context.Context) ([]Module, error)

	// SetParent updates the parent reference. Cycle checks happen in the
	// Hierarchy service before this is called.
	SetParent(ctx context.Context, id, parentID string) error
}

// AuditStore appends immutable entries and reads them back newest first.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Cache holds computed effective-permission sets keyed by user id. A nil
// Cache is valid everywhere one is accepted; failures must degrade to direct
// computation, never block a decision.
type Cache interface {
	Get(ctx context.Context, userID string) (PermissionSet, bool, error)
	Put(ctx context.Context, userID string, set PermissionSet, ttl time.Duration) error
	Invalidate(ctx context.Context, userIDs ...string) error
}

// Recorder accepts audit entries without blocking the caller. Implementations
// are best-effort: a failed or dropped entry must surface in observability but
// never in the caller's result.
type Recorder interface {
	Record(entry AuditEntry)
}
