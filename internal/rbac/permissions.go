package rbac

import "context"

// Management permission codes used by the service's own HTTP surface.
const (
	PermManageUsers       = "rbac.users.manage"
	PermManageRoles       = "rbac.roles.manage"
	PermManagePermissions = "rbac.permissions.manage"
	PermManageModules     = "rbac.modules.manage"
	PermReadAudit         = "rbac.audit.read"
)

var BuiltinPermissions = []Permission{
	{Code: PermManageUsers, Name: "Manage users", Category: "rbac"},
	{Code: PermManageRoles, Name: "Manage roles", Category: "rbac"},
	{Code: PermManagePermissions, Name: "Manage role permissions", Category: "rbac"},
	{Code: PermManageModules, Name: "Manage module hierarchy", Category: "rbac"},
	{Code: PermReadAudit, Name: "Read the audit log", Category: "rbac"},
}

// EnsureBuiltins makes sure the predefined permission catalog exists.
func EnsureBuiltins(ctx context.Context, store Store) error {
	return store.Permissions().Ensure(ctx, BuiltinPermissions)
}
