package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/obs"
)

// Service provides the mutation side of the RBAC model: user lifecycle,
// role/permission assignment and the module hierarchy. Every effective
// mutation emits exactly one audit entry and invalidates affected cached
// permission sets. Mutations are idempotent: repeating one is a success
// no-op, which keeps caller-side retries safe.
type Service struct {
	store    Store
	resolver *Resolver
	recorder Recorder
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAuditRecorder installs the recorder mutations report to.
func WithAuditRecorder(rec Recorder) ServiceOption {
	return func(s *Service) { s.recorder = rec }
}

// WithInvalidation wires the resolver whose cache must be invalidated on
// assignment changes.
func WithInvalidation(r *Resolver) ServiceOption {
	return func(s *Service) { s.resolver = r }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewUserParams carries the input for user registration.
type NewUserParams struct {
	Username string
	Email    string
	Password string
}

// CreateUser registers an account in status "registered" and auto-assigns
// every role flagged as default. Email comparison is case-insensitive; the
// address is normalized to lower case before storage.
func (s *Service) CreateUser(ctx context.Context, p NewUserParams, actorID string) (User, error) {
	p.Username = strings.TrimSpace(p.Username)
	if p.Username == "" {
		return User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Password) == "" {
		return User{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return User{}, err
	}

	user := &User{
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: hash,
		Status:       StatusRegistered,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return User{}, err
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionUserCreated,
		EntityType:  "user",
		EntityID:    user.ID,
		NewValue:    user.Username,
	})

	defaults, err := s.store.Roles().Defaults(ctx)
	if err != nil {
		return *user, err
	}
	for _, role := range defaults {
		if err := s.AssignRoleToUser(ctx, user.ID, role.ID, actorID); err != nil {
			return *user, err
		}
	}
	return *user, nil
}

// UpdateUserStatus transitions the account status. Setting StatusDeleted is
// the soft delete: role history is retained for audit purposes.
func (s *Service) UpdateUserStatus(ctx context.Context, userID, status, actorID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	status = strings.TrimSpace(strings.ToLower(status))
	if !ValidStatus(status) {
		return fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
	}

	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return err
	}
	if user.Status == status {
		return nil
	}
	if err := s.store.Users().UpdateStatus(ctx, userID, status); err != nil {
		return err
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionUserStatusChanged,
		EntityType:  "user",
		EntityID:    userID,
		OldValue:    user.Status,
		NewValue:    status,
	})
	return nil
}

// SetUserLockout sets or clears (until == nil) the lockout timestamp.
func (s *Service) SetUserLockout(ctx context.Context, userID string, until *time.Time, actorID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	user, err := s.store.Users().Find(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.Users().SetLockout(ctx, userID, until); err != nil {
		return err
	}
	oldVal := ""
	if user.LockoutUntil != nil {
		oldVal = user.LockoutUntil.UTC().Format(time.RFC3339)
	}
	newVal := ""
	if until != nil {
		newVal = until.UTC().Format(time.RFC3339)
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionUserLockoutSet,
		EntityType:  "user",
		EntityID:    userID,
		OldValue:    oldVal,
		NewValue:    newVal,
	})
	return nil
}

// NewRoleParams carries the input for role creation.
type NewRoleParams struct {
	Name        string
	Description string
	Active      bool
	IsDefault   bool
	Priority    int
}

// CreateRole creates a role.
func (s *Service) CreateRole(ctx context.Context, p NewRoleParams, actorID string) (Role, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Role{}, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := &Role{
		Name:        p.Name,
		Description: strings.TrimSpace(p.Description),
		Active:      p.Active,
		IsDefault:   p.IsDefault,
		Priority:    p.Priority,
	}
	if err := s.store.Roles().Create(ctx, role); err != nil {
		return Role{}, err
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionRoleCreated,
		EntityType:  "role",
		EntityID:    role.ID,
		NewValue:    role.Name,
	})
	return *role, nil
}

// AssignRoleToUser links the role to the user. Assigning an already-assigned
// role is a success no-op with no audit entry.
func (s *Service) AssignRoleToUser(ctx context.Context, userID, roleID, actorID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	if _, err := s.store.Users().Find(ctx, userID); err != nil {
		return err
	}
	if _, err := s.store.Roles().Find(ctx, roleID); err != nil {
		return err
	}

	created, err := s.store.Users().AssignRole(ctx, userID, roleID, s.now().UTC())
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionRoleAssigned,
		EntityType:  "user",
		EntityID:    userID,
		NewValue:    roleID,
	})
	s.invalidate(ctx, userID)
	return nil
}

// RemoveRoleFromUser unlinks the role. Removing a non-assigned role is a
// success no-op.
func (s *Service) RemoveRoleFromUser(ctx context.Context, userID, roleID, actorID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user id and role id are required", ErrInvalidInput)
	}
	removed, err := s.store.Users().RemoveRole(ctx, userID, roleID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionRoleRemoved,
		EntityType:  "user",
		EntityID:    userID,
		OldValue:    roleID,
	})
	s.invalidate(ctx, userID)
	return nil
}

// AssignPermissionToRole grants the permission identified by code to the
// role. Granting an already-granted permission is a success no-op. On an
// effective grant, cached sets of every user holding the role are dropped.
func (s *Service) AssignPermissionToRole(ctx context.Context, roleID, code, actorID string) error {
	roleID = strings.TrimSpace(roleID)
	code = strings.TrimSpace(code)
	if roleID == "" || code == "" {
		return fmt.Errorf("%w: role id and permission code are required", ErrInvalidInput)
	}
	if _, err := s.store.Roles().Find(ctx, roleID); err != nil {
		return err
	}
	perm, err := s.store.Permissions().FindByCode(ctx, code)
	if err != nil {
		return err
	}

	created, err := s.store.Roles().Grant(ctx, roleID, perm.ID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionPermissionGranted,
		EntityType:  "role",
		EntityID:    roleID,
		NewValue:    code,
	})
	s.invalidateHolders(ctx, roleID)
	return nil
}

// RevokePermissionFromRole removes the grant. Revoking a non-granted
// permission is a success no-op.
func (s *Service) RevokePermissionFromRole(ctx context.Context, roleID, code, actorID string) error {
	roleID = strings.TrimSpace(roleID)
	code = strings.TrimSpace(code)
	if roleID == "" || code == "" {
		return fmt.Errorf("%w: role id and permission code are required", ErrInvalidInput)
	}
	perm, err := s.store.Permissions().FindByCode(ctx, code)
	if err != nil {
		return err
	}

	removed, err := s.store.Roles().Revoke(ctx, roleID, perm.ID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	s.audit(AuditEntry{
		ActorUserID: actorID,
		Action:      ActionPermissionRevoked,
		EntityType:  "role",
		EntityID:    roleID,
		OldValue:    code,
	})
	s.invalidateHolders(ctx, roleID)
	return nil
}

func (s *Service) audit(entry AuditEntry) {
	if s.recorder == nil {
		return
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = s.now().UTC()
	}
	s.recorder.Record(entry)
}

func (s *Service) invalidate(ctx context.Context, userIDs ...string) {
	if s.resolver != nil {
		s.resolver.InvalidateUsers(ctx, userIDs...)
	}
}

// invalidateHolders drops cached sets for every user currently assigned the
// role. Bulk and eager, not lazy: a role-permission change must be visible to
// all holders on their next check.
func (s *Service) invalidateHolders(ctx context.Context, roleID string) {
	if s.resolver == nil {
		return
	}
	holders, err := s.store.Roles().HolderIDs(ctx, roleID)
	if err != nil {
		// Must not fail the mutation; surfacing is enough.
		obs.Event("permission_cache.holders_lookup_failed", map[string]any{
			"role_id": roleID,
			"error":   err.Error(),
		})
		return
	}
	s.resolver.InvalidateUsers(ctx, holders...)
}
