package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/adapters/cache"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/query"
)

func TestCacheWarmingService_WarmCache(t *testing.T) {
	ctx := context.Background()
	repo := new(MockListingRepository)
	memCache := cache.NewMemoryCache()

	repo.On("Query", ctx, mock.MatchedBy(func(d query.Descriptor) bool {
		return d.Limit == 50 && d.Offset == 0 && d.Matches(hostedListing("x", "h"))
	})).Return([]*entities.Listing{hostedListing("l1", "host-1"), hostedListing("l2", "host-1")}, 2, nil).Once()
	repo.On("Query", ctx, mock.Anything).Return(nil, 0, errors.New("food table unavailable")).Once()

	svc := services.NewCacheWarmingService(repo, memCache)
	require.NoError(t, svc.WarmCache(ctx), "a failing kind does not fail warming")

	raw, err := memCache.Get(ctx, "listing:l1")
	require.NoError(t, err)
	var cached entities.Listing
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, "l1", cached.ID)

	ok, _ := memCache.Exists(ctx, "listing:l2")
	assert.True(t, ok)
}
