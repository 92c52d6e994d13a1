package rbac

import (
	"context"
	"errors"
	"testing"
	"time"
)

func decisionFixture(t *testing.T) (*memStore, *Authorizer, *captureRecorder, *User) {
	t.Helper()
	store := newMemStore()
	user := store.addUser("alice", StatusActive)
	editor := store.addRole("editor", true)
	edit := store.addPermission("posts.edit")
	store.addPermission("posts.delete")
	store.grant(editor.ID, edit.ID)
	store.assign(user.ID, editor.ID)

	resolver, err := NewResolver(store)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	rec := &captureRecorder{}
	authz, err := NewAuthorizer(store, resolver, WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	return store, authz, rec, user
}

func TestDecideAllowed(t *testing.T) {
	_, authz, rec, user := decisionFixture(t)

	d := authz.Decide(context.Background(), user.ID, "posts.edit")
	if !d.Allowed || d.Reason != DenyNone {
		t.Fatalf("expected allow, got %+v", d)
	}
	if len(rec.entries) != 0 {
		t.Fatalf("plain allow must not be audited: %+v", rec.entries)
	}
}

func TestDecidePermissionMissing(t *testing.T) {
	_, authz, rec, user := decisionFixture(t)

	d := authz.Decide(context.Background(), user.ID, "posts.delete")
	if d.Allowed || d.Reason != DenyPermissionMissing {
		t.Fatalf("expected permission_missing, got %+v", d)
	}
	denied := rec.byAction(ActionAccessDenied)
	if len(denied) != 1 || denied[0].EntityID != "posts.delete" {
		t.Fatalf("expected one denial entry, got %+v", denied)
	}
}

func TestDecideUnknownPermission(t *testing.T) {
	_, authz, _, user := decisionFixture(t)

	d := authz.Decide(context.Background(), user.ID, "no.such.code")
	if d.Allowed || d.Reason != DenyUnknownPermission {
		t.Fatalf("expected unknown_permission, got %+v", d)
	}
}

func TestDecideInactiveUser(t *testing.T) {
	store := newMemStore()
	bob := store.addUser("bob", StatusBlocked)
	editor := store.addRole("editor", true)
	edit := store.addPermission("posts.edit")
	store.grant(editor.ID, edit.ID)
	store.assign(bob.ID, editor.ID)

	resolver, _ := NewResolver(store)
	authz, _ := NewAuthorizer(store, resolver)

	d := authz.Decide(context.Background(), bob.ID, "posts.edit")
	if d.Allowed || d.Reason != DenyUserInactive {
		t.Fatalf("expected user_inactive, got %+v", d)
	}
}

func TestDecideLockedUser(t *testing.T) {
	store, _, _, user := decisionFixture(t)
	until := time.Now().Add(time.Hour)
	store.users[user.ID].LockoutUntil = &until

	resolver, _ := NewResolver(store)
	authz, _ := NewAuthorizer(store, resolver)

	d := authz.Decide(context.Background(), user.ID, "posts.edit")
	if d.Allowed || d.Reason != DenyLocked {
		t.Fatalf("expected locked, got %+v", d)
	}
}

func TestDecideExpiredLockoutAllows(t *testing.T) {
	store, _, _, user := decisionFixture(t)
	until := time.Now().Add(-time.Minute)
	store.users[user.ID].LockoutUntil = &until

	resolver, _ := NewResolver(store)
	authz, _ := NewAuthorizer(store, resolver)

	d := authz.Decide(context.Background(), user.ID, "posts.edit")
	if !d.Allowed {
		t.Fatalf("expired lockout must not deny: %+v", d)
	}
}

func TestDecideFailsClosed(t *testing.T) {
	store, authz, _, user := decisionFixture(t)
	store.fail["users.activeRoles"] = errors.New("timeout")

	d := authz.Decide(context.Background(), user.ID, "posts.edit")
	if d.Allowed || d.Reason != DenyResolutionError {
		t.Fatalf("expected resolution_error deny, got %+v", d)
	}
	if authz.IsAuthorized(context.Background(), user.ID, "posts.edit") {
		t.Fatalf("IsAuthorized must be false on resolution failure")
	}
}

func TestDecideEmptyInputs(t *testing.T) {
	_, authz, _, user := decisionFixture(t)

	if d := authz.Decide(context.Background(), "", "posts.edit"); d.Allowed || d.Reason != DenyResolutionError {
		t.Fatalf("empty user: %+v", d)
	}
	if d := authz.Decide(context.Background(), user.ID, ""); d.Allowed || d.Reason != DenyUnknownPermission {
		t.Fatalf("empty code: %+v", d)
	}
}

func TestDecideSensitiveAuditsGrant(t *testing.T) {
	_, authz, rec, user := decisionFixture(t)

	d := authz.Decide(context.Background(), user.ID, "posts.edit",
		Sensitive(), WithOrigin("10.0.0.1", "cli/1.0"))
	if !d.Allowed {
		t.Fatalf("expected allow, got %+v", d)
	}
	granted := rec.byAction(ActionAccessGranted)
	if len(granted) != 1 {
		t.Fatalf("expected one granted entry, got %+v", rec.entries)
	}
	if granted[0].IP != "10.0.0.1" || granted[0].UserAgent != "cli/1.0" {
		t.Fatalf("origin metadata missing: %+v", granted[0])
	}
}

func TestAuthorizeReturnsDeniedError(t *testing.T) {
	_, authz, _, user := decisionFixture(t)

	if err := authz.Authorize(context.Background(), user.ID, "posts.edit"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	err := authz.Authorize(context.Background(), user.ID, "posts.delete")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Reason != DenyPermissionMissing || denied.Code != "posts.delete" {
		t.Fatalf("unexpected denial: %+v", denied)
	}
}
