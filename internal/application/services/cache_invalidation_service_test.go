package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/adapters/cache"
	"github.com/hearthtable/marketplace/internal/application/services"
)

func TestCacheInvalidationService_InvalidateListing(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	for _, k := range []string{
		"listing:l1",
		"listing:l2",
		"http:cache:/api/listings/l1:abc",
		"http:cache:/api/listings/l1/availability:def",
		"http:cache:/api/listings/l2:abc",
		"http:cache:/api/stays:123",
	} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), 0))
	}

	services.NewCacheInvalidationService(c).InvalidateListing(ctx, "l1")

	for k, want := range map[string]bool{
		"listing:l1":                                   false,
		"http:cache:/api/listings/l1:abc":              false,
		"http:cache:/api/listings/l1/availability:def": false,
		"listing:l2":                                   true,
		"http:cache:/api/listings/l2:abc":              true,
		"http:cache:/api/stays:123":                    true,
	} {
		ok, _ := c.Exists(ctx, k)
		assert.Equal(t, want, ok, k)
	}
}

func TestCacheInvalidationService_InvalidateBrowseCaches(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache()
	for _, k := range []string{"http:cache:/api/stays:1", "http:cache:/api/food:2", "http:cache:/api/listings/l1:3"} {
		require.NoError(t, c.Set(ctx, k, []byte("x"), 0))
	}

	require.NoError(t, services.NewCacheInvalidationService(c).InvalidateBrowseCaches(ctx))

	ok, _ := c.Exists(ctx, "http:cache:/api/stays:1")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "http:cache:/api/food:2")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "http:cache:/api/listings/l1:3")
	assert.True(t, ok)
}

func TestCacheInvalidationService_NilSafe(t *testing.T) {
	var s *services.CacheInvalidationService
	s.InvalidateListing(context.Background(), "l1")
	assert.NoError(t, s.InvalidateBrowseCaches(context.Background()))
	assert.NoError(t, services.NewCacheInvalidationService(nil).InvalidateBrowseCaches(context.Background()))
}
