// Package cache is the best-effort fallback layer for token state. It holds
// a copy of the refresh token and expiry so authorization can survive an
// unreadable config document. It is never the source of truth while the
// document is readable.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"workbeat/pkg/logging"
)

// Keys the authorization core stores.
const (
	KeyRefreshToken = "refreshToken"
	KeyExpiresAt    = "expiresAt"
)

// RefreshTokenTTL is how long a mirrored refresh token stays usable from the
// cache alone.
const RefreshTokenTTL = 30 * 24 * time.Hour

// Cache wraps a TTL store. Expired entries are dropped lazily on read and by
// a periodic sweep at one fifth of the default TTL.
type Cache struct {
	store *gocache.Cache
}

// New creates a cache with the given default TTL.
func New(defaultTTL time.Duration) *Cache {
	sweep := defaultTTL / 5
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &Cache{store: gocache.New(defaultTTL, sweep)}
}

// Get returns the value for key, or false when absent or expired.
func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// GetString returns the string value for key.
func (c *Cache) GetString(key string) (string, bool) {
	v, found := c.store.Get(key)
	if !found {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		logging.Warn("cache", "Value for %s is %T, expected string", key, v)
		return "", false
	}
	return s, true
}

// GetInt64 returns the int64 value for key.
func (c *Cache) GetInt64(key string) (int64, bool) {
	v, found := c.store.Get(key)
	if !found {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		logging.Warn("cache", "Value for %s is %T, expected number", key, v)
		return 0, false
	}
}

// Set stores value under key for ttl. It reports false without storing when
// ttl is not positive; a zero-or-negative remaining lifetime means the entry
// is already stale.
func (c *Cache) Set(key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		logging.Debug("cache", "Not caching %s: ttl %s already elapsed", key, ttl)
		return false
	}
	c.store.Set(key, value, ttl)
	return true
}

// Del removes the given keys and returns how many were present.
func (c *Cache) Del(keys ...string) int {
	n := 0
	for _, key := range keys {
		if _, found := c.store.Get(key); found {
			c.store.Delete(key)
			n++
		}
	}
	return n
}

// Flush drops every entry.
func (c *Cache) Flush() {
	c.store.Flush()
}

// Len returns the number of entries, expired ones included until swept.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}
