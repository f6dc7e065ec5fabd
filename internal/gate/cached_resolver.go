package gate

import (
	"context"
	"sync"
	"time"
)

// CachedResolver wraps a RoleResolver with TTL-based caching so that
// authorization checks do not hit the database on every request.
type CachedResolver[U comparable] struct {
	inner RoleResolver[U]
	cache map[U]cacheEntry
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	role      Role
	expiresAt time.Time
}

// NewCachedResolver wraps a resolver with caching.
func NewCachedResolver[U comparable](inner RoleResolver[U], ttl time.Duration) *CachedResolver[U] {
	return &CachedResolver[U]{
		inner: inner,
		cache: make(map[U]cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Resolve returns the cached role or fetches it from the inner resolver.
// Nil roles are not cached.
func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Role, error) {
	r.mu.RLock()
	entry, ok := r.cache[user]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.role, nil
	}

	role, err := r.inner.Resolve(ctx, user)
	if err != nil || role == nil {
		return role, err
	}

	r.mu.Lock()
	r.cache[user] = cacheEntry{role: role, expiresAt: r.now().Add(r.ttl)}
	r.mu.Unlock()
	return role, nil
}

// Invalidate removes a user from the cache.
// Call this when a user's staff or superuser flag changes.
func (r *CachedResolver[U]) Invalidate(_ context.Context, user U) {
	r.mu.Lock()
	delete(r.cache, user)
	r.mu.Unlock()
}

// InvalidateAll clears the entire cache.
func (r *CachedResolver[U]) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[U]cacheEntry)
	r.mu.Unlock()
}
