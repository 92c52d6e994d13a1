package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"gatehouse.org/internal/rbac"
)

const defaultLocalSize = 4096

// Local is an in-process expirable LRU permission cache for single-instance
// deployments. The configured TTL applies to every entry; the per-call TTL
// passed to Put is accepted for interface compatibility but the LRU's own
// expiry governs eviction.
type Local struct {
	entries *lru.LRU[string, rbac.PermissionSet]
}

// NewLocal builds a Local cache holding up to size entries for ttl each.
func NewLocal(size int, ttl time.Duration) *Local {
	if size <= 0 {
		size = defaultLocalSize
	}
	return &Local{
		entries: lru.NewLRU[string, rbac.PermissionSet](size, nil, ttl),
	}
}

var _ rbac.Cache = (*Local)(nil)

// Get returns a copy of the cached set so callers cannot mutate the cache.
func (c *Local) Get(_ context.Context, userID string) (rbac.PermissionSet, bool, error) {
	set, ok := c.entries.Get(userID)
	if !ok {
		return nil, false, nil
	}
	return set.Clone(), true, nil
}

// Put stores a copy of the set.
func (c *Local) Put(_ context.Context, userID string, set rbac.PermissionSet, _ time.Duration) error {
	c.entries.Add(userID, set.Clone())
	return nil
}

// Invalidate drops cached sets for the given users.
func (c *Local) Invalidate(_ context.Context, userIDs ...string) error {
	for _, id := range userIDs {
		c.entries.Remove(id)
	}
	return nil
}
