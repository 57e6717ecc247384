package redactor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dissonance-oracle/oracle/pkg/model"
)

const defaultCacheTTL = 15 * time.Minute

// nonceCache holds the set of currently-loaded nonce versions in front of a
// SecretStore, refetching on expiry. A still-fresh cache keeps serving its
// entries even if the backend is momentarily unreachable; an expired cache
// that cannot refresh fails closed instead of serving stale nonces
// indefinitely. Grounded on the local adapter's in-memory keystore shape
// (pkg/adapter/local/secretstore.go), generalized with an expiry clock
// since cloud SecretStores are not assumed always-reachable.
type nonceCache struct {
	mu          sync.RWMutex
	store       adapterSecretStore
	ttl         time.Duration
	versions    map[int]model.Nonce
	active      int
	lastRefresh time.Time
	reachable   bool
}

// adapterSecretStore mirrors adapter.SecretStore; declared locally so this
// package has no import-time dependency on pkg/adapter.
type adapterSecretStore interface {
	GetNonce(ctx context.Context, version int) (model.NonceLookup, error)
	ListAvailableVersions(ctx context.Context) ([]int, error)
	Rotate(ctx context.Context, newValue string) (int, error)
	IsReachable(ctx context.Context) bool
}

func newNonceCache(store adapterSecretStore, ttl time.Duration) *nonceCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &nonceCache{
		store:     store,
		ttl:       ttl,
		versions:  make(map[int]model.Nonce),
		reachable: true,
	}
}

// refreshLocked repopulates the cache from the backend. ensureFresh only
// calls this when the cache is expired or empty, so any failure here means
// the cache was already stale — it fails closed, discarding whatever
// versions were loaded, rather than let an expired nonce keep validating.
func (c *nonceCache) refreshLocked(ctx context.Context) {
	versions, err := c.store.ListAvailableVersions(ctx)
	if err != nil || len(versions) == 0 {
		c.failClosed()
		return
	}

	loaded := make(map[int]model.Nonce, len(versions))
	for _, v := range versions {
		lookup, err := c.store.GetNonce(ctx, v)
		if err != nil {
			c.failClosed()
			return
		}
		nl, ok := lookup.(model.NonceLoaded)
		if !ok {
			continue
		}
		loaded[v] = nl.Nonce
	}
	if len(loaded) == 0 {
		c.failClosed()
		return
	}

	sort.Ints(versions)
	c.versions = loaded
	c.active = versions[len(versions)-1]
	c.lastRefresh = time.Now()
	c.reachable = true
}

// failClosed clears the cache and marks it unreachable. An expired cache
// whose refresh fails must stop serving its stale entries — Active/Loaded
// read c.versions directly, so an empty map is what makes them fail closed.
func (c *nonceCache) failClosed() {
	c.reachable = false
	c.versions = make(map[int]model.Nonce)
	c.active = 0
}

func (c *nonceCache) expired() bool {
	return time.Since(c.lastRefresh) > c.ttl
}

// ensureFresh refreshes the cache when it is expired or empty. A cache that
// is still within its TTL is never touched here, so Active/Loaded keep
// serving it even if a past refresh attempt failed — that is the only
// "degraded but serving" state this cache has. Once the TTL passes,
// refreshLocked's failure path clears the cache instead of leaving the
// stale entries in place.
func (c *nonceCache) ensureFresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.versions) == 0 || c.expired() {
		c.refreshLocked(ctx)
	}
}

// Active returns the highest loaded nonce version, used for new redactions.
func (c *nonceCache) Active(ctx context.Context) (model.Nonce, bool) {
	c.ensureFresh(ctx)
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.versions[c.active]
	return n, ok
}

// Loaded returns every nonce version currently loaded, for validation's
// try-every-version sweep.
func (c *nonceCache) Loaded(ctx context.Context) []model.Nonce {
	c.ensureFresh(ctx)
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Nonce, 0, len(c.versions))
	for _, n := range c.versions {
		out = append(out, n)
	}
	return out
}

// IsReachable reports whether the last refresh reached the backend. False
// means either the cache is within its TTL and serving its last-known-good
// entries in degraded mode, or the cache expired and failed closed — check
// Active/Loaded for an empty result to tell the two apart.
func (c *nonceCache) IsReachable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reachable
}
