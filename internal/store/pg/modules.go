package pg

import (
	"context"
	"database/sql"
	"errors"

	"gatehouse.org/internal/ids"
	"gatehouse.org/internal/rbac"
)

type moduleStore struct {
	db *sql.DB
}

func (s *moduleStore) Create(ctx context.Context, m *rbac.Module) error {
	var (
		parent sql.NullString
		kind   sql.NullString
	)
	row := s.db.QueryRowContext(ctx, `
		insert into modules (id, name, parent_id, kind)
		values ($1, $2, $3, $4)
		returning id, parent_id, kind, created_at, updated_at
	`, ids.New(), m.Name, nullIfEmpty(m.ParentID), nullIfEmpty(m.Kind))
	if err := row.Scan(&m.ID, &parent, &kind, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return rbac.ErrConflict
			case pgErrForeignKeyViolation:
				return rbac.ErrNotFound
			}
		}
		return err
	}
	if parent.Valid {
		m.ParentID = parent.String
	}
	if kind.Valid {
		m.Kind = kind.String
	}
	return nil
}

func (s *moduleStore) Find(ctx context.Context, id string) (*rbac.Module, error) {
	var (
		m      rbac.Module
		parent sql.NullString
		kind   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, parent_id, kind, created_at, updated_at
		from modules
		where id = $1
	`, id).Scan(&m.ID, &m.Name, &parent, &kind, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		m.ParentID = parent.String
	}
	if kind.Valid {
		m.Kind = kind.String
	}
	return &m, nil
}

func (s *moduleStore) List(ctx context.Context) ([]rbac.Module, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, parent_id, kind, created_at, updated_at
		from modules
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []rbac.Module
	for rows.Next() {
		var (
			m      rbac.Module
			parent sql.NullString
			kind   sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.Name, &parent, &kind, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if parent.Valid {
			m.ParentID = parent.String
		}
		if kind.Valid {
			m.Kind = kind.String
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return modules, nil
}

func (s *moduleStore) SetParent(ctx context.Context, id, parentID string) error {
	res, err := s.db.ExecContext(ctx, `
		update modules set parent_id = nullif($2, ''), updated_at = now()
		where id = $1
	`, id, parentID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return rbac.ErrNotFound
		}
		return err
	}
	return requireAffected(res)
}
