package pg

import (
	"context"
	"database/sql"

	"gatehouse.org/internal/ids"
	"gatehouse.org/internal/rbac"
)

type auditStore struct {
	db *sql.DB
}

// Append inserts an entry. The audit_log table carries no update or delete
// path anywhere in this package; entries are immutable once written.
func (s *auditStore) Append(ctx context.Context, entry *rbac.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (id, occurred_at, actor_user_id, action, entity_type, entity_id, old_value, new_value, ip, user_agent)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.OccurredAt, nullIfEmpty(entry.ActorUserID), entry.Action,
		entry.EntityType, entry.EntityID, nullIfEmpty(entry.OldValue), nullIfEmpty(entry.NewValue),
		nullIfEmpty(entry.IP), nullIfEmpty(entry.UserAgent))
	return err
}

func (s *auditStore) Recent(ctx context.Context, limit int) ([]rbac.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, occurred_at, actor_user_id, action, entity_type, entity_id, old_value, new_value, ip, user_agent
		from audit_log
		order by occurred_at desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []rbac.AuditEntry
	for rows.Next() {
		var (
			e                 rbac.AuditEntry
			actor, oldV, newV sql.NullString
			ip, userAgent     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &actor, &e.Action, &e.EntityType, &e.EntityID,
			&oldV, &newV, &ip, &userAgent); err != nil {
			return nil, err
		}
		e.ActorUserID = actor.String
		e.OldValue = oldV.String
		e.NewValue = newV.String
		e.IP = ip.String
		e.UserAgent = userAgent.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
