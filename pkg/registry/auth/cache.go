package auth

import (
	"sync"
	"time"

	"github.com/gantry-dev/gantry/pkg/types"
)

// TokenTTL is how long a cached token is considered fresh. Registry tokens
// are typically issued for five minutes; the one-minute margin keeps an
// in-flight request from using a token that expires mid-request.
const TokenTTL = 4 * time.Minute

// TokenCache stores bearer tokens per registry repository with a fixed TTL.
// It is safe for concurrent use.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	token     string
	fetchedAt time.Time
}

// NewTokenCache creates an empty token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// CacheKey derives the cache key for a registry location.
func CacheKey(location types.RegistryLocation) string {
	return location.Host + "/" + location.RepositoryPath
}

// Get returns the cached token for the key if one exists and is still fresh.
func (c *TokenCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}

	if c.now().Sub(entry.fetchedAt) >= TokenTTL {
		delete(c.entries, key)

		return "", false
	}

	return entry.token, true
}

// Put stores a token for the key, replacing any previous entry.
func (c *TokenCache) Put(key, token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{token: token, fetchedAt: c.now()}
}

// Invalidate drops the cached token for the key, forcing the next Get to
// miss. Used after a 401 so a stale token is not retried.
func (c *TokenCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}
