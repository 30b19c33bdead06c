package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/providers"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/query"
)

const (
	warmListingsPerKind = 50
	warmListingTTL      = 300
)

// CacheWarmingService preloads the listing cache with the most viewed records
type CacheWarmingService struct {
	listingRepo repositories.ListingRepository
	cache       providers.CacheProvider
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	listingRepo repositories.ListingRepository,
	cache providers.CacheProvider,
) *CacheWarmingService {
	return &CacheWarmingService{
		listingRepo: listingRepo,
		cache:       cache,
	}
}

// WarmCache caches the top-rated published listings of each kind. Failures
// are logged and never stop startup.
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	log.Info().Msg("starting cache warming")

	warmed := 0
	for _, kind := range []entities.ListingKind{entities.ListingKindStay, entities.ListingKindFood} {
		n, err := s.warmTopListings(ctx, kind)
		if err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("failed to warm top listings")
			continue
		}
		warmed += n
	}

	log.Info().Int("listings", warmed).Msg("cache warming completed")
	return nil
}

// StartPeriodicWarming warms once, then again on every tick until ctx is done
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("stopping cache warming")
				return
			case <-ticker.C:
				if err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	log.Info().Dur("interval", interval).Msg("started periodic cache warming")
}

// warmTopListings caches the top-rated listings of one kind under the same
// keys the read-through listing cache uses
func (s *CacheWarmingService) warmTopListings(ctx context.Context, kind entities.ListingKind) (int, error) {
	d := query.Compose(entities.FilterState{Kind: kind, Sort: entities.SortRatingDsc}).Paginate(1, warmListingsPerKind)

	listings, _, err := s.listingRepo.Query(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch top %s listings: %w", kind, err)
	}

	items := make(map[string][]byte, len(listings))
	for _, l := range listings {
		data, err := json.Marshal(l)
		if err != nil {
			log.Warn().Err(err).Str("listing_id", l.ID).Msg("failed to marshal listing")
			continue
		}
		items[listingCacheKey(l.ID)] = data
	}

	if len(items) == 0 {
		return 0, nil
	}
	if err := s.cache.SetMulti(ctx, items, warmListingTTL); err != nil {
		return 0, fmt.Errorf("failed to cache top %s listings: %w", kind, err)
	}
	return len(items), nil
}
