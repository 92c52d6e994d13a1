package rbac

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memStore is an in-memory Store used across the package tests. Operations
// can be forced to fail by op name via the fail map.
type memStore struct {
	mu          sync.Mutex
	users       map[string]*User
	roles       map[string]*Role
	perms       map[string]*Permission
	permsByCode map[string]*Permission
	userRoles   map[string]map[string]time.Time
	rolePerms   map[string]map[string]struct{}
	modules     map[string]*Module
	auditLog    []AuditEntry
	seq         int

	fail map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[string]*User),
		roles:       make(map[string]*Role),
		perms:       make(map[string]*Permission),
		permsByCode: make(map[string]*Permission),
		userRoles:   make(map[string]map[string]time.Time),
		rolePerms:   make(map[string]map[string]struct{}),
		modules:     make(map[string]*Module),
		fail:        make(map[string]error),
	}
}

func (m *memStore) Users() UserStore             { return (*memUsers)(m) }
func (m *memStore) Roles() RoleStore             { return (*memRoles)(m) }
func (m *memStore) Permissions() PermissionStore { return (*memPerms)(m) }
func (m *memStore) Modules() ModuleStore         { return (*memModules)(m) }
func (m *memStore) Audit() AuditStore            { return (*memAudit)(m) }

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) failure(op string) error {
	return m.fail[op]
}

// --- seeding helpers ---

func (m *memStore) addUser(username, status string) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &User{
		ID:       m.nextID("user"),
		Username: username,
		Email:    username + "@example.com",
		Status:   status,
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addRole(name string, active bool) *Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &Role{ID: m.nextID("role"), Name: name, Active: active}
	m.roles[r.ID] = r
	return r
}

func (m *memStore) addPermission(code string) *Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Permission{ID: m.nextID("perm"), Code: code, Name: code}
	m.perms[p.ID] = p
	m.permsByCode[code] = p
	return p
}

func (m *memStore) addModule(name, parentID string) *Module {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod := &Module{ID: m.nextID("module"), Name: name, ParentID: parentID}
	m.modules[mod.ID] = mod
	return mod
}

func (m *memStore) assign(userID, roleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[string]time.Time)
	}
	m.userRoles[userID][roleID] = time.Now()
}

func (m *memStore) grant(roleID, permID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rolePerms[roleID] == nil {
		m.rolePerms[roleID] = make(map[string]struct{})
	}
	m.rolePerms[roleID][permID] = struct{}{}
}

// --- user store ---

type memUsers memStore

func (m *memUsers) Create(_ context.Context, u *User) error {
	s := (*memStore)(m)
	if err := s.failure("users.create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return ErrConflict
		}
	}
	u.ID = s.nextID("user")
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*User, error) {
	s := (*memStore)(m)
	if err := s.failure("users.find"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*User, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) UpdateStatus(_ context.Context, id, status string) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Status = status
	return nil
}

func (m *memUsers) SetLockout(_ context.Context, id string, until *time.Time) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.LockoutUntil = until
	return nil
}

func (m *memUsers) ActiveRoles(_ context.Context, userID string) ([]Role, error) {
	s := (*memStore)(m)
	if err := s.failure("users.activeRoles"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var roles []Role
	for roleID := range s.userRoles[userID] {
		if r, ok := s.roles[roleID]; ok && r.Active {
			roles = append(roles, *r)
		}
	}
	return roles, nil
}

func (m *memUsers) AssignRole(_ context.Context, userID, roleID string, at time.Time) (bool, error) {
	s := (*memStore)(m)
	if err := s.failure("users.assignRole"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return false, ErrNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return false, ErrNotFound
	}
	if s.userRoles[userID] == nil {
		s.userRoles[userID] = make(map[string]time.Time)
	}
	if _, ok := s.userRoles[userID][roleID]; ok {
		return false, nil
	}
	s.userRoles[userID][roleID] = at
	return true, nil
}

func (m *memUsers) RemoveRole(_ context.Context, userID, roleID string) (bool, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.userRoles[userID][roleID]; !ok {
		return false, nil
	}
	delete(s.userRoles[userID], roleID)
	return true, nil
}

// --- role store ---

type memRoles memStore

func (m *memRoles) Create(_ context.Context, role *Role) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == role.Name {
			return ErrConflict
		}
	}
	role.ID = s.nextID("role")
	cp := *role
	s.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Find(_ context.Context, id string) (*Role, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRoles) List(_ context.Context) ([]Role, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var roles []Role
	for _, r := range s.roles {
		roles = append(roles, *r)
	}
	return roles, nil
}

func (m *memRoles) Defaults(_ context.Context) ([]Role, error) {
	s := (*memStore)(m)
	if err := s.failure("roles.defaults"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var roles []Role
	for _, r := range s.roles {
		if r.IsDefault {
			roles = append(roles, *r)
		}
	}
	return roles, nil
}

func (m *memRoles) Permissions(_ context.Context, roleID string) ([]Permission, error) {
	s := (*memStore)(m)
	if err := s.failure("roles.permissions"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []Permission
	for permID := range s.rolePerms[roleID] {
		if p, ok := s.perms[permID]; ok {
			perms = append(perms, *p)
		}
	}
	return perms, nil
}

func (m *memRoles) Grant(_ context.Context, roleID, permissionID string) (bool, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return false, ErrNotFound
	}
	if _, ok := s.perms[permissionID]; !ok {
		return false, ErrNotFound
	}
	if s.rolePerms[roleID] == nil {
		s.rolePerms[roleID] = make(map[string]struct{})
	}
	if _, ok := s.rolePerms[roleID][permissionID]; ok {
		return false, nil
	}
	s.rolePerms[roleID][permissionID] = struct{}{}
	return true, nil
}

func (m *memRoles) Revoke(_ context.Context, roleID, permissionID string) (bool, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rolePerms[roleID][permissionID]; !ok {
		return false, nil
	}
	delete(s.rolePerms[roleID], permissionID)
	return true, nil
}

func (m *memRoles) HolderIDs(_ context.Context, roleID string) ([]string, error) {
	s := (*memStore)(m)
	if err := s.failure("roles.holderIDs"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var holders []string
	for userID, roles := range s.userRoles {
		if _, ok := roles[roleID]; ok {
			holders = append(holders, userID)
		}
	}
	return holders, nil
}

// --- permission store ---

type memPerms memStore

func (m *memPerms) Ensure(_ context.Context, perms []Permission) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range perms {
		if _, ok := s.permsByCode[p.Code]; ok {
			continue
		}
		cp := p
		cp.ID = s.nextID("perm")
		s.perms[cp.ID] = &cp
		s.permsByCode[cp.Code] = &cp
	}
	return nil
}

func (m *memPerms) FindByCode(_ context.Context, code string) (*Permission, error) {
	s := (*memStore)(m)
	if err := s.failure("permissions.findByCode"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.permsByCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPerms) List(_ context.Context) ([]Permission, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var perms []Permission
	for _, p := range s.perms {
		perms = append(perms, *p)
	}
	return perms, nil
}

// --- module store ---

type memModules memStore

func (m *memModules) Create(_ context.Context, mod *Module) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	mod.ID = s.nextID("module")
	cp := *mod
	s.modules[mod.ID] = &cp
	return nil
}

func (m *memModules) Find(_ context.Context, id string) (*Module, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	mod, ok := s.modules[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mod
	return &cp, nil
}

func (m *memModules) List(_ context.Context) ([]Module, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	var modules []Module
	for _, mod := range s.modules {
		modules = append(modules, *mod)
	}
	return modules, nil
}

func (m *memModules) SetParent(_ context.Context, id, parentID string) error {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	mod, ok := s.modules[id]
	if !ok {
		return ErrNotFound
	}
	if parentID != "" {
		if _, ok := s.modules[parentID]; !ok {
			return ErrNotFound
		}
	}
	mod.ParentID = parentID
	return nil
}

// --- audit store ---

type memAudit memStore

func (m *memAudit) Append(_ context.Context, entry *AuditEntry) error {
	s := (*memStore)(m)
	if err := s.failure("audit.append"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLog = append(s.auditLog, *entry)
	return nil
}

func (m *memAudit) Recent(_ context.Context, limit int) ([]AuditEntry, error) {
	s := (*memStore)(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, 0, limit)
	for i := len(s.auditLog) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.auditLog[i])
	}
	return out, nil
}

// --- test doubles ---

// captureRecorder keeps recorded entries for assertions.
type captureRecorder struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (c *captureRecorder) Record(entry AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

func (c *captureRecorder) byAction(action string) []AuditEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []AuditEntry
	for _, e := range c.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// mapCache is a Cache over a plain map with call counters.
type mapCache struct {
	mu           sync.Mutex
	data         map[string]PermissionSet
	hits, misses int
	puts         int
	invalidated  []string

	getErr, putErr, invErr error
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]PermissionSet)}
}

func (c *mapCache) Get(_ context.Context, userID string) (PermissionSet, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	set, ok := c.data[userID]
	if !ok {
		c.misses++
		return nil, false, nil
	}
	c.hits++
	return set.Clone(), true, nil
}

func (c *mapCache) Put(_ context.Context, userID string, set PermissionSet, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	c.data[userID] = set.Clone()
	c.puts++
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.invErr != nil {
		return c.invErr
	}
	for _, id := range userIDs {
		delete(c.data, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}
