package httpapi

import (
	"context"
	"time"

	"gatehouse.org/internal/rbac"
)

// fakeStore wires function-field stubs for the handler tests. Unset
// functions answer ErrNotFound or succeed as no-ops.
type fakeStore struct {
	users   fakeUsers
	roles   fakeRoles
	perms   fakePerms
	modules fakeModules
	audit   fakeAudit
}

func (f *fakeStore) Users() rbac.UserStore             { return &f.users }
func (f *fakeStore) Roles() rbac.RoleStore             { return &f.roles }
func (f *fakeStore) Permissions() rbac.PermissionStore { return &f.perms }
func (f *fakeStore) Modules() rbac.ModuleStore         { return &f.modules }
func (f *fakeStore) Audit() rbac.AuditStore            { return &f.audit }

type fakeUsers struct {
	create         func(ctx context.Context, u *rbac.User) error
	find           func(ctx context.Context, id string) (*rbac.User, error)
	findByUsername func(ctx context.Context, username string) (*rbac.User, error)
	activeRoles    func(ctx context.Context, userID string) ([]rbac.Role, error)
	assignRole     func(ctx context.Context, userID, roleID string, at time.Time) (bool, error)
	removeRole     func(ctx context.Context, userID, roleID string) (bool, error)
}

func (f *fakeUsers) Create(ctx context.Context, u *rbac.User) error {
	if f.create != nil {
		return f.create(ctx, u)
	}
	u.ID = "user-new"
	return nil
}

func (f *fakeUsers) Find(ctx context.Context, id string) (*rbac.User, error) {
	if f.find != nil {
		return f.find(ctx, id)
	}
	return nil, rbac.ErrNotFound
}

func (f *fakeUsers) FindByUsername(ctx context.Context, username string) (*rbac.User, error) {
	if f.findByUsername != nil {
		return f.findByUsername(ctx, username)
	}
	return nil, rbac.ErrNotFound
}

func (f *fakeUsers) FindByEmail(context.Context, string) (*rbac.User, error) {
	return nil, rbac.ErrNotFound
}

func (f *fakeUsers) UpdateStatus(context.Context, string, string) error { return nil }

func (f *fakeUsers) SetLockout(context.Context, string, *time.Time) error { return nil }

func (f *fakeUsers) ActiveRoles(ctx context.Context, userID string) ([]rbac.Role, error) {
	if f.activeRoles != nil {
		return f.activeRoles(ctx, userID)
	}
	return nil, nil
}

func (f *fakeUsers) AssignRole(ctx context.Context, userID, roleID string, at time.Time) (bool, error) {
	if f.assignRole != nil {
		return f.assignRole(ctx, userID, roleID, at)
	}
	return true, nil
}

func (f *fakeUsers) RemoveRole(ctx context.Context, userID, roleID string) (bool, error) {
	if f.removeRole != nil {
		return f.removeRole(ctx, userID, roleID)
	}
	return true, nil
}

type fakeRoles struct {
	find        func(ctx context.Context, id string) (*rbac.Role, error)
	permissions func(ctx context.Context, roleID string) ([]rbac.Permission, error)
}

func (f *fakeRoles) Create(_ context.Context, role *rbac.Role) error {
	role.ID = "role-new"
	return nil
}

func (f *fakeRoles) Find(ctx context.Context, id string) (*rbac.Role, error) {
	if f.find != nil {
		return f.find(ctx, id)
	}
	return nil, rbac.ErrNotFound
}

func (f *fakeRoles) List(context.Context) ([]rbac.Role, error) { return nil, nil }

func (f *fakeRoles) Defaults(context.Context) ([]rbac.Role, error) { return nil, nil }

func (f *fakeRoles) Permissions(ctx context.Context, roleID string) ([]rbac.Permission, error) {
	if f.permissions != nil {
		return f.permissions(ctx, roleID)
	}
	return nil, nil
}

func (f *fakeRoles) Grant(context.Context, string, string) (bool, error) { return true, nil }

func (f *fakeRoles) Revoke(context.Context, string, string) (bool, error) { return true, nil }

func (f *fakeRoles) HolderIDs(context.Context, string) ([]string, error) { return nil, nil }

type fakePerms struct {
	findByCode func(ctx context.Context, code string) (*rbac.Permission, error)
}

func (f *fakePerms) Ensure(context.Context, []rbac.Permission) error { return nil }

func (f *fakePerms) FindByCode(ctx context.Context, code string) (*rbac.Permission, error) {
	if f.findByCode != nil {
		return f.findByCode(ctx, code)
	}
	return nil, rbac.ErrNotFound
}

func (f *fakePerms) List(context.Context) ([]rbac.Permission, error) { return nil, nil }

type fakeModules struct{}

func (f *fakeModules) Create(_ context.Context, m *rbac.Module) error {
	m.ID = "module-new"
	return nil
}

func (f *fakeModules) Find(context.Context, string) (*rbac.Module, error) {
	return nil, rbac.ErrNotFound
}

func (f *fakeModules) List(context.Context) ([]rbac.Module, error) { return nil, nil }

func (f *fakeModules) SetParent(context.Context, string, string) error { return nil }

type fakeAudit struct {
	entries []rbac.AuditEntry
}

func (f *fakeAudit) Append(_ context.Context, entry *rbac.AuditEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAudit) Recent(_ context.Context, limit int) ([]rbac.AuditEntry, error) {
	if limit > len(f.entries) {
		limit = len(f.entries)
	}
	return f.entries[:limit], nil
}
