package providers

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// CacheProvider defines the interface for caching operations
type CacheProvider interface {
	// Get retrieves a value; a missing key returns ErrCacheMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration
	Set(ctx context.Context, key string, value []byte, expirationSeconds int) error

	// Delete removes values from cache
	Delete(ctx context.Context, keys ...string) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// GetMulti retrieves the keys that are present; missing keys are omitted
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)

	// SetMulti stores several values with the same expiration
	SetMulti(ctx context.Context, items map[string][]byte, expirationSeconds int) error

	// DeletePattern removes every key matching a glob pattern
	DeletePattern(ctx context.Context, pattern string) error
}

// SessionStore keeps refresh tokens and revoked access tokens
type SessionStore interface {
	// SaveRefreshToken remembers a hashed refresh token for a user until ttl passes
	SaveRefreshToken(ctx context.Context, tokenHash, userID string, ttl time.Duration) error

	// ConsumeRefreshToken deletes a refresh token and returns its user; unknown tokens return ErrCacheMiss
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (string, error)

	// RevokeAccessToken deny-lists an access token id until it would have expired
	RevokeAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error

	// IsAccessTokenRevoked reports whether an access token id was revoked
	IsAccessTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}
