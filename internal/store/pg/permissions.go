package pg

import (
	"context"
	"database/sql"
	"errors"

	"gatehouse.org/internal/ids"
	"gatehouse.org/internal/rbac"
)

type permissionStore struct {
	db *sql.DB
}

func (s *permissionStore) Ensure(ctx context.Context, perms []rbac.Permission) error {
	if len(perms) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range perms {
		if _, err := tx.ExecContext(ctx, `
			insert into permissions (id, code, name, description, category)
			values ($1, $2, $3, $4, $5)
			on conflict (code) do nothing
		`, ids.New(), p.Code, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.Category)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *permissionStore) FindByCode(ctx context.Context, code string) (*rbac.Permission, error) {
	var (
		p          rbac.Permission
		desc, catg sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, description, category, created_at
		from permissions
		where code = $1
	`, code).Scan(&p.ID, &p.Code, &p.Name, &desc, &catg, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		p.Description = desc.String
	}
	if catg.Valid {
		p.Category = catg.String
	}
	return &p, nil
}

func (s *permissionStore) List(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, code, name, description, category, created_at
		from permissions
		order by code
	`)
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
