package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gatehouse.org/internal/ids"
	"gatehouse.org/internal/rbac"
)

type userStore struct {
	db *sql.DB
}

const userColumns = `id, username, email, password_hash, status, email_confirmed, two_factor_enabled, lockout_until, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *rbac.User) error {
	row := s.db.QueryRowContext(ctx, `
		insert into users (id, username, email, password_hash, status)
		values ($1, $2, $3, $4, $5)
		returning id, created_at, updated_at
	`, ids.New(), u.Username, u.Email, u.PasswordHash, u.Status)
	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return rbac.ErrConflict
		}
		return err
	}
	return nil
}

func (s *userStore) Find(ctx context.Context, id string) (*rbac.User, error) {
	return s.findWhere(ctx, `id = $1`, id)
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*rbac.User, error) {
	return s.findWhere(ctx, `username = $1`, username)
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*rbac.User, error) {
	return s.findWhere(ctx, `email = lower($1)`, email)
}

func (s *userStore) findWhere(ctx context.Context, cond string, arg any) (*rbac.User, error) {
	var (
		u       rbac.User
		lockout sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where `+cond, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Status,
		&u.EmailConfirmed, &u.TwoFactorEnabled, &lockout, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rbac.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lockout.Valid {
		t := lockout.Time
		u.LockoutUntil = &t
	}
	return &u, nil
}

func (s *userStore) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set status = $2, updated_at = now()
		where id = $1
	`, id, status)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) SetLockout(ctx context.Context, id string, until *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		update users set lockout_until = $2, updated_at = now()
		where id = $1
	`, id, nullTime(until))
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *userStore) ActiveRoles(ctx context.Context, userID string) ([]rbac.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.active, r.is_default, r.priority, r.created_at, r.updated_at
		from user_roles ur
		join roles r on r.id = ur.role_id
		where ur.user_id = $1 and r.active
		order by r.priority desc, r.name
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoles(rows)
}

func (s *userStore) AssignRole(ctx context.Context, userID, roleID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id, assigned_at)
		values ($1, $2, $3)
		on conflict (user_id, role_id) do nothing
	`, userID, roleID, at)
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

func (s *userStore) RemoveRole(ctx context.Context, userID, roleID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles
		where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return false, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return aff > 0, nil
}

func requireAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return rbac.ErrNotFound
	}
	return nil
}
