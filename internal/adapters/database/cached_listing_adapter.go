package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/providers"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/query"
)

// CachedListingAdapter wraps a ListingRepository with a read-through cache of single listings
type CachedListingAdapter struct {
	adapter repositories.ListingRepository
	cache   providers.CacheProvider
}

// NewCachedListingAdapter creates a new cached listing adapter
func NewCachedListingAdapter(adapter repositories.ListingRepository, cache providers.CacheProvider) repositories.ListingRepository {
	return &CachedListingAdapter{
		adapter: adapter,
		cache:   cache,
	}
}

var _ repositories.ListingRepository = (*CachedListingAdapter)(nil)

// Cache TTLs (in seconds)
const (
	listingByIDTTL = 300 // 5 minutes for a single listing
)

// ListingCacheKey is the cache key of a single listing
func ListingCacheKey(id string) string {
	return fmt.Sprintf("listing:%s", id)
}

// Create inserts a listing; nothing is cached until it is read
func (a *CachedListingAdapter) Create(ctx context.Context, listing *entities.Listing) error {
	return a.adapter.Create(ctx, listing)
}

// GetByID retrieves a listing by ID with caching
func (a *CachedListingAdapter) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	cacheKey := ListingCacheKey(id)

	if cached, err := a.cache.Get(ctx, cacheKey); err == nil {
		var listing entities.Listing
		if err := json.Unmarshal(cached, &listing); err == nil {
			return &listing, nil
		}
		log.Warn().Err(err).Str("listing_id", id).Msg("failed to unmarshal cached listing")
	}

	listing, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Update cache asynchronously to avoid blocking the response
	a.store(map[string]*entities.Listing{cacheKey: listing})

	return listing, nil
}

// GetByIDs retrieves listings with one batched cache lookup, keeping request order
func (a *CachedListingAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Listing, error) {
	if len(ids) == 0 {
		return []*entities.Listing{}, nil
	}

	cacheKeys := make([]string, len(ids))
	for i, id := range ids {
		cacheKeys[i] = ListingCacheKey(id)
	}

	cached, err := a.cache.GetMulti(ctx, cacheKeys)
	if err != nil {
		log.Warn().Err(err).Int("keys", len(cacheKeys)).Msg("listing cache lookup failed")
		cached = nil
	}

	found := make(map[string]*entities.Listing, len(ids))
	missingIDs := make([]string, 0)
	for i, id := range ids {
		if data, ok := cached[cacheKeys[i]]; ok {
			var listing entities.Listing
			if err := json.Unmarshal(data, &listing); err == nil {
				found[id] = &listing
				continue
			}
		}
		missingIDs = append(missingIDs, id)
	}

	if len(missingIDs) > 0 {
		dbListings, err := a.adapter.GetByIDs(ctx, missingIDs)
		if err != nil {
			return nil, err
		}
		toCache := make(map[string]*entities.Listing, len(dbListings))
		for _, l := range dbListings {
			found[l.ID] = l
			toCache[ListingCacheKey(l.ID)] = l
		}
		a.store(toCache)
	}

	result := make([]*entities.Listing, 0, len(ids))
	for _, id := range ids {
		if l, ok := found[id]; ok {
			result = append(result, l)
		}
	}
	return result, nil
}

// Update writes through and drops the cached copy
func (a *CachedListingAdapter) Update(ctx context.Context, listing *entities.Listing) error {
	if err := a.adapter.Update(ctx, listing); err != nil {
		return err
	}
	a.invalidate(ctx, listing.ID)
	return nil
}

// UpdateStatus writes through and drops the cached copy
func (a *CachedListingAdapter) UpdateStatus(ctx context.Context, id string, status entities.ListingStatus) error {
	if err := a.adapter.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	a.invalidate(ctx, id)
	return nil
}

// Query is not cached; browse responses are cached at the HTTP layer
func (a *CachedListingAdapter) Query(ctx context.Context, q query.Descriptor) ([]*entities.Listing, int, error) {
	return a.adapter.Query(ctx, q)
}

// ListByHost is not cached so hosts always see their own edits
func (a *CachedListingAdapter) ListByHost(ctx context.Context, hostID string) ([]*entities.Listing, error) {
	return a.adapter.ListByHost(ctx, hostID)
}

// store snapshots the listings now, since callers go on to decorate them, and
// writes them to the cache in the background
func (a *CachedListingAdapter) store(listings map[string]*entities.Listing) {
	items := make(map[string][]byte, len(listings))
	for key, l := range listings {
		data, err := json.Marshal(l)
		if err != nil {
			continue
		}
		items[key] = data
	}
	if len(items) == 0 {
		return
	}

	go func() {
		if err := a.cache.SetMulti(context.Background(), items, listingByIDTTL); err != nil {
			log.Warn().Err(err).Int("listings", len(items)).Msg("failed to cache listings")
		}
	}()
}

func (a *CachedListingAdapter) invalidate(ctx context.Context, id string) {
	if err := a.cache.Delete(ctx, ListingCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("listing_id", id).Msg("failed to invalidate cached listing")
	}
}
