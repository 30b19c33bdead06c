package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthtable/marketplace/internal/domain/providers"
)

// HTTP response cache keys are "http:cache:<path>:<hash>", see middleware.CacheMiddleware
const httpCachePrefix = "http:cache:"

// browseCachePaths are the public search endpoints whose cached pages go stale
// when a listing enters or leaves search
var browseCachePaths = []string{"/api/stays", "/api/food"}

// listingCacheKey matches the key of the read-through listing cache
func listingCacheKey(id string) string {
	return "listing:" + id
}

// CacheInvalidationService drops cached listing reads after writes
type CacheInvalidationService struct {
	cache providers.CacheProvider
}

// NewCacheInvalidationService creates a new cache invalidation service. A nil
// cache yields a service whose methods do nothing.
func NewCacheInvalidationService(cache providers.CacheProvider) *CacheInvalidationService {
	return &CacheInvalidationService{cache: cache}
}

// InvalidateListing drops the cached record and every cached response under
// /api/listings/<id>, including its calendar, quotes, images and reviews
func (s *CacheInvalidationService) InvalidateListing(ctx context.Context, listingID string) {
	if s == nil || s.cache == nil || listingID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, listingCacheKey(listingID)); err != nil {
		log.Warn().Err(err).Str("listing_id", listingID).Msg("failed to invalidate cached listing")
	}

	pattern := fmt.Sprintf("%s/api/listings/%s*", httpCachePrefix, listingID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		log.Warn().Err(err).Str("listing_id", listingID).Msg("failed to invalidate listing responses")
		return
	}
	log.Debug().Str("listing_id", listingID).Msg("invalidated listing cache")
}

// InvalidateBrowseCaches drops cached search pages. Called when a listing is
// published, unpublished or archived; other edits let browse pages expire by TTL.
func (s *CacheInvalidationService) InvalidateBrowseCaches(ctx context.Context) error {
	if s == nil || s.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	for _, path := range browseCachePaths {
		pattern := httpCachePrefix + path + ":*"
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
		}
		log.Debug().Str("pattern", pattern).Msg("invalidated cache pattern")
	}
	return nil
}
