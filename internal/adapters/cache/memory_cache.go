package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hearthtable/marketplace/internal/domain/providers"
)

// MemoryCache is a process-local CacheProvider and SessionStore. It keeps a
// single API instance usable when Redis is not configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

var (
	_ providers.CacheProvider = (*MemoryCache)(nil)
	_ providers.SessionStore  = (*MemoryCache)(nil)
)

func (c *MemoryCache) lookup(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) store(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = e
}

// Get retrieves a value; missing or expired keys return ErrCacheMiss
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}
	return nil, providers.ErrCacheMiss
}

// Set stores a value; a non-positive expiration never expires
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.store(key, value, time.Duration(expirationSeconds)*time.Second)
	return nil
}

// Delete removes keys
func (c *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

// Exists checks if a live key exists
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.lookup(key)
	return ok, nil
}

// GetMulti retrieves the live keys among keys
func (c *MemoryCache) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := c.lookup(k); ok {
			result[k] = v
		}
	}
	return result, nil
}

// SetMulti stores several values
func (c *MemoryCache) SetMulti(ctx context.Context, items map[string][]byte, expirationSeconds int) error {
	for k, v := range items {
		c.store(k, v, time.Duration(expirationSeconds)*time.Second)
	}
	return nil
}

// DeletePattern removes keys matching a Redis-style glob pattern
func (c *MemoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if globMatch(pattern, k) {
			delete(c.entries, k)
		}
	}
	return nil
}

// globMatch supports * (any run, including '/') and ? (one byte) like Redis KEYS/SCAN
func globMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if pattern == "" {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatch(pattern, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if s == "" {
				return false
			}
		default:
			if s == "" || s[0] != pattern[0] {
				return false
			}
		}
		pattern, s = pattern[1:], s[1:]
	}
	return s == ""
}

// SaveRefreshToken stores the token hash with the owning user id
func (c *MemoryCache) SaveRefreshToken(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	c.store(refreshTokenPrefix+tokenHash, []byte(userID), ttl)
	return nil
}

// ConsumeRefreshToken reads and deletes the token
func (c *MemoryCache) ConsumeRefreshToken(ctx context.Context, tokenHash string) (string, error) {
	key := refreshTokenPrefix + tokenHash
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.expired(c.now()) {
		return "", providers.ErrCacheMiss
	}
	delete(c.entries, key)
	return string(e.value), nil
}

// RevokeAccessToken deny-lists an access token id
func (c *MemoryCache) RevokeAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.store(revokedTokenPrefix+tokenID, []byte("1"), ttl)
	return nil
}

// IsAccessTokenRevoked checks the deny list
func (c *MemoryCache) IsAccessTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	_, ok := c.lookup(revokedTokenPrefix + tokenID)
	return ok, nil
}
