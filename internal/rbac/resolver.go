package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatehouse.org/internal/obs"
)

const defaultCacheTTL = 5 * time.Minute

// Resolver computes the effective permission set for a user: the union of
// permission codes across all assigned active roles. Resolution is a pure
// read; an optional cache fronts the computation.
type Resolver struct {
	store Store
	cache Cache
	ttl   time.Duration
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache installs a read-through cache for resolved sets.
func WithCache(cache Cache, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = cache
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, opts ...ResolverOption) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("rbac: store is required")
	}
	r := &Resolver{store: store, ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ResolveEffectivePermissions returns the union of permission codes granted
// via the user's active role assignments. Soft-deleted users still resolve;
// the decision layer denies them. Returns ErrNotFound when the user id does
// not exist and ErrResolution-wrapped errors for repository failures.
func (r *Resolver) ResolveEffectivePermissions(ctx context.Context, userID string) (PermissionSet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	if r.cache != nil {
		set, ok, err := r.cache.Get(ctx, userID)
		switch {
		case err != nil:
			obs.CacheError()
		case ok:
			obs.CacheHit()
			return set, nil
		default:
			obs.CacheMiss()
		}
	}

	set, err := r.compute(ctx, userID)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		// Best effort: a failed Put never fails resolution.
		if err := r.cache.Put(ctx, userID, set, r.ttl); err != nil {
			obs.CacheError()
		}
	}
	return set, nil
}

func (r *Resolver) compute(ctx context.Context, userID string) (PermissionSet, error) {
	if _, err := r.store.Users().Find(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load user: %v", ErrResolution, err)
	}

	roles, err := r.store.Users().ActiveRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load roles: %v", ErrResolution, err)
	}

	set := make(PermissionSet)
	for _, role := range roles {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResolution, err)
		}
		perms, err := r.store.Roles().Permissions(ctx, role.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: load permissions for role %s: %v", ErrResolution, role.ID, err)
		}
		for _, p := range perms {
			set.Add(p.Code)
		}
	}
	return set, nil
}

// InvalidateUsers drops cached sets for the given users. Safe to call without
// a cache configured.
func (r *Resolver) InvalidateUsers(ctx context.Context, userIDs ...string) {
	if r.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := r.cache.Invalidate(ctx, userIDs...); err != nil {
		obs.CacheError()
		obs.Event("permission_cache.invalidate_failed", map[string]any{
			"users": len(userIDs),
			"error": err.Error(),
		})
	}
}
