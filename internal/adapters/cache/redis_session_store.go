package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hearthtable/marketplace/internal/domain/providers"
	redisclient "github.com/hearthtable/marketplace/internal/infrastructure/clients/redis"
)

const (
	refreshTokenPrefix = "auth:refresh:"
	revokedTokenPrefix = "auth:revoked:"
)

// RedisSessionStore keeps refresh tokens and the access-token deny list in Redis
type RedisSessionStore struct {
	client *redisclient.Client
}

// NewRedisSessionStore creates a new Redis-backed session store
func NewRedisSessionStore(client *redisclient.Client) providers.SessionStore {
	return &RedisSessionStore{client: client}
}

var _ providers.SessionStore = (*RedisSessionStore)(nil)

// SaveRefreshToken stores the token hash with the owning user id
func (s *RedisSessionStore) SaveRefreshToken(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	if err := s.client.Client().Set(ctx, refreshTokenPrefix+tokenHash, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken reads and deletes the token in one round trip so it can be used once
func (s *RedisSessionStore) ConsumeRefreshToken(ctx context.Context, tokenHash string) (string, error) {
	userID, err := s.client.Client().GetDel(ctx, refreshTokenPrefix+tokenHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", providers.ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume refresh token: %w", err)
	}
	return userID, nil
}

// RevokeAccessToken deny-lists an access token id
func (s *RedisSessionStore) RevokeAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Client().Set(ctx, revokedTokenPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	return nil
}

// IsAccessTokenRevoked checks the deny list
func (s *RedisSessionStore) IsAccessTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Client().Exists(ctx, revokedTokenPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}
