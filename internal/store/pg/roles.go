package pg

import (
	"context"
	"database/sql"
	"errors"

	"gatehouse.org/internal/ids"
	"gatehouse.org/internal/rbac"
)

type roleStore struct {
	db *sql.DB
}

func (s *roleStore) Create(ctx context.Context, role *rbac.Role) error {
	var desc sql.NullString
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description, active, is_default, priority)
		values ($1, $2, $3, $4, $5, $6)
		returning id, description, created_at, updated_at
	`, ids.New(), role.Name, nullIfEmpty(role.Description), role.Active, role.IsDefault, role.Priority)
	if err := row.Scan(&role.ID, &desc, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.ErrConflict
		}
		return err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	return nil
}

func (s *roleStore) Find(ctx context.Context, id string) (*rbac.Role, error) {
	var (
		role rbac.Role
		desc sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, description, active, is_default, priority, created_at, updated_at
		from roles
		where id = $1
	`, id).Scan(&role.ID, &role.Name, &desc, &role.Active, &role.IsDefault, &role.Priority,
		&role.CreatedAt, &role.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	return &role, nil
}

func (s *roleStore) List(ctx context.Context) ([]rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, active, is_default, priority, created_at, updated_at
		from roles
		order by priority desc, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func (s *roleStore) Defaults(ctx context.Context) ([]rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, description, active, is_default, priority, created_at, updated_at
		from roles
		where is_default
		order by priority desc, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func (s *roleStore) Permissions(ctx context.Context, roleID string) ([]rbac.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.code, p.name, p.description, p.category, p.created_at
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.code
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []rbac.Permission
	for rows.Next() {
		var (
			p          rbac.Permission
			desc, catg sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &desc, &catg, &p.CreatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		if catg.Valid {
			p.Category = catg.String
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

func (s *roleStore) Grant(ctx context.Context, roleID, permissionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id)
		values ($1, $2)
		on conflict (role_id, permission_id) do nothing
	`, roleID, permissionID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return false, rbac.ErrNotFound
		}
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *roleStore) Revoke(ctx context.Context, roleID, permissionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from role_permissions
		where role_id = $1 and permission_id = $2
	`, roleID, permissionID)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func (s *roleStore) HolderIDs(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id from user_roles where role_id = $1
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holders []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		holders = append(holders, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holders, nil
}

func scanRoles(rows *sql.Rows) ([]rbac.Role, error) {
	var roles []rbac.Role
	for rows.Next() {
		var (
			role rbac.Role
			desc sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &desc, &role.Active, &role.IsDefault,
			&role.Priority, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			role.Description = desc.String
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
