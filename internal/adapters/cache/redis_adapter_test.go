package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/domain/providers"
	redisclient "github.com/hearthtable/marketplace/internal/infrastructure/clients/redis"
)

// unreachableClient points at a port nothing listens on
func unreachableClient(t *testing.T) *redisclient.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisclient.NewFromClient(rdb)
}

func TestRedisAdapter_ConnectionErrorsAreNotCacheMisses(t *testing.T) {
	adapter := NewRedisAdapter(unreachableClient(t))
	ctx := context.Background()

	_, err := adapter.Get(ctx, "listing:1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrCacheMiss)

	assert.Error(t, adapter.Set(ctx, "k", []byte("v"), 10))
	assert.Error(t, adapter.Delete(ctx, "k"))

	_, err = adapter.Exists(ctx, "k")
	assert.Error(t, err)
}

func TestRedisAdapter_EmptyBatchesSkipRedis(t *testing.T) {
	adapter := NewRedisAdapter(unreachableClient(t))
	ctx := context.Background()

	assert.NoError(t, adapter.Delete(ctx))
	assert.NoError(t, adapter.SetMulti(ctx, nil, 60))

	got, err := adapter.GetMulti(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisAdapter_BatchErrors(t *testing.T) {
	adapter := NewRedisAdapter(unreachableClient(t))
	ctx := context.Background()

	_, err := adapter.GetMulti(ctx, []string{"a", "b"})
	assert.Error(t, err)
	assert.Error(t, adapter.SetMulti(ctx, map[string][]byte{"a": []byte("1")}, 60))
	assert.Error(t, adapter.DeletePattern(ctx, "http:cache:*"))
}

func TestRedisSessionStore_Errors(t *testing.T) {
	store := NewRedisSessionStore(unreachableClient(t))
	ctx := context.Background()

	_, err := store.ConsumeRefreshToken(ctx, "hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrCacheMiss)

	assert.Error(t, store.SaveRefreshToken(ctx, "hash", "u1", time.Hour))

	t.Run("expired access tokens need no deny-list entry", func(t *testing.T) {
		assert.NoError(t, store.RevokeAccessToken(ctx, "jti", 0))
	})
}
