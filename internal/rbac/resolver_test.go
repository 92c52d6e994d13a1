package rbac

import (
	"context"
	"errors"
	"testing"
)

func TestResolveEmptyRoles(t *testing.T) {
	store := newMemStore()
	user := store.addUser("nobody", StatusActive)

	r, err := NewResolver(store)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	set, err := r.ResolveEffectivePermissions(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(set) != 0 {
		t.Fatalf("expected empty set, got %v", set.Codes())
	}
}

func TestResolveUnionAcrossRoles(t *testing.T) {
	store := newMemStore()
	user := store.addUser("alice", StatusActive)
	editor := store.addRole("editor", true)
	viewer := store.addRole("viewer", true)
	edit := store.addPermission("posts.edit")
	read := store.addPermission("posts.read")

	store.grant(editor.ID, edit.ID)
	store.grant(editor.ID, read.ID)
	store.grant(viewer.ID, read.ID)
	store.assign(user.ID, editor.ID)
	store.assign(user.ID, viewer.ID)

	r, err := NewResolver(store)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	set, err := r.ResolveEffectivePermissions(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(set) != 2 || !set.Has("posts.edit") || !set.Has("posts.read") {
		t.Fatalf("unexpected set: %v", set.Codes())
	}
}

func TestResolveSkipsInactiveRoles(t *testing.T) {
	store := newMemStore()
	user := store.addUser("bob", StatusActive)
	retired := store.addRole("retired", false)
	perm := store.addPermission("reports.view")
	store.grant(retired.ID, perm.ID)
	store.assign(user.ID, retired.ID)

	r, _ := NewResolver(store)
	set, err := r.ResolveEffectivePermissions(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if set.Has("reports.view") {
		t.Fatalf("inactive role contributed a grant")
	}
}

func TestResolveUnknownUser(t *testing.T) {
	store := newMemStore()
	r, _ := NewResolver(store)
	_, err := r.ResolveEffectivePermissions(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveEmptyUserID(t *testing.T) {
	store := newMemStore()
	r, _ := NewResolver(store)
	_, err := r.ResolveEffectivePermissions(context.Background(), "  ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestResolveWrapsStoreFailures(t *testing.T) {
	store := newMemStore()
	user := store.addUser("carol", StatusActive)
	store.fail["users.activeRoles"] = errors.New("connection reset")

	r, _ := NewResolver(store)
	_, err := r.ResolveEffectivePermissions(context.Background(), user.ID)
	if !errors.Is(err, ErrResolution) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestResolveUsesCache(t *testing.T) {
	store := newMemStore()
	user := store.addUser("dave", StatusActive)
	role := store.addRole("ops", true)
	perm := store.addPermission("deploys.run")
	store.grant(role.ID, perm.ID)
	store.assign(user.ID, role.ID)

	cache := newMapCache()
	r, err := NewResolver(store, WithCache(cache, 0))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	if _, err := r.ResolveEffectivePermissions(context.Background(), user.ID); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if cache.puts != 1 || cache.misses != 1 {
		t.Fatalf("expected miss then put, got puts=%d misses=%d", cache.puts, cache.misses)
	}

	set, err := r.ResolveEffectivePermissions(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if cache.hits != 1 {
		t.Fatalf("expected cache hit, got hits=%d", cache.hits)
	}
	if !set.Has("deploys.run") {
		t.Fatalf("cached set lost a grant: %v", set.Codes())
	}
}

func TestResolveCacheFailureFallsThrough(t *testing.T) {
	store := newMemStore()
	user := store.addUser("erin", StatusActive)
	role := store.addRole("auditor", true)
	perm := store.addPermission("audit.read")
	store.grant(role.ID, perm.ID)
	store.assign(user.ID, role.ID)

	cache := newMapCache()
	cache.getErr = errors.New("redis down")
	cache.putErr = errors.New("redis down")

	r, _ := NewResolver(store, WithCache(cache, 0))
	set, err := r.ResolveEffectivePermissions(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve should survive cache failure: %v", err)
	}
	if !set.Has("audit.read") {
		t.Fatalf("unexpected set: %v", set.Codes())
	}
}

func TestInvalidateUsers(t *testing.T) {
	store := newMemStore()
	user := store.addUser("frank", StatusActive)
	role := store.addRole("writer", true)
	perm := store.addPermission("posts.write")
	store.grant(role.ID, perm.ID)
	store.assign(user.ID, role.ID)

	cache := newMapCache()
	r, _ := NewResolver(store, WithCache(cache, 0))

	if _, err := r.ResolveEffectivePermissions(context.Background(), user.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	r.InvalidateUsers(context.Background(), user.ID)
	if len(cache.invalidated) != 1 || cache.invalidated[0] != user.ID {
		t.Fatalf("expected invalidation of %s, got %v", user.ID, cache.invalidated)
	}

	if _, err := r.ResolveEffectivePermissions(context.Background(), user.ID); err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if cache.misses != 2 {
		t.Fatalf("expected recompute after invalidate, misses=%d", cache.misses)
	}
}
