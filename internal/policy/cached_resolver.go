package policy

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachedResolver wraps a Resolver with TTL-based caching so authorization
// checks do not hit the database on every request.
type CachedResolver struct {
	inner Resolver
	group singleflight.Group
	cache map[uint]*cacheEntry
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	profile   *Profile
	expiresAt time.Time
}

func NewCachedResolver(inner Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		inner: inner,
		cache: make(map[uint]*cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (r *CachedResolver) Resolve(ctx context.Context, userID uint) (*Profile, error) {
	r.mu.RLock()
	entry, ok := r.cache[userID]
	r.mu.RUnlock()

	if ok && r.now().Before(entry.expiresAt) {
		return entry.profile, nil
	}

	// Concurrent misses for one user share a single lookup.
	v, err, _ := r.group.Do(strconv.FormatUint(uint64(userID), 10), func() (any, error) {
		profile, err := r.inner.Resolve(ctx, userID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[userID] = &cacheEntry{profile: profile, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
		return profile, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile), nil
}

// Invalidate removes a user from the cache. Call it when their role changes.
func (r *CachedResolver) Invalidate(userID uint) {
	r.mu.Lock()
	delete(r.cache, userID)
	r.mu.Unlock()
}

func (r *CachedResolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[uint]*cacheEntry)
	r.mu.Unlock()
}
