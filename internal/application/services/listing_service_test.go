package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/adapters/cache"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/query"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

const placeholderURL = "https://cdn.example.com/placeholder.png"

var testURLs = services.NewURLResolver("https://cdn.example.com", "listing-images", placeholderURL)

type listingFixture struct {
	repo      *MockListingRepository
	search    *MockSearchRepository
	slots     *MockAvailabilityRepository
	favorites *MockFavoriteRepository
	users     *MockUserRepository
	images    *MockImageRepository
	cache     *cache.MemoryCache
	svc       *services.ListingService
}

func newListingFixture(t *testing.T, withSearch bool) *listingFixture {
	t.Helper()
	f := &listingFixture{
		repo:      new(MockListingRepository),
		search:    new(MockSearchRepository),
		slots:     new(MockAvailabilityRepository),
		favorites: new(MockFavoriteRepository),
		users:     new(MockUserRepository),
		images:    new(MockImageRepository),
		cache:     cache.NewMemoryCache(),
	}
	invalidator := services.NewCacheInvalidationService(f.cache)
	availability := services.NewAvailabilityService(f.repo, f.slots, synthConfig, invalidator).WithClock(fixedClock(wednesday))

	var search *MockSearchRepository
	if withSearch {
		search = f.search
	}
	f.svc = services.NewListingService(f.repo, searchOrNil(search), availability, f.favorites, f.users, f.images, testURLs, invalidator, nil).
		WithClock(fixedClock(wednesday))
	return f
}

// searchOrNil keeps a nil *MockSearchRepository from becoming a non-nil interface
func searchOrNil(m *MockSearchRepository) repositories.ListingSearchRepository {
	if m == nil {
		return nil
	}
	return m
}

// expectHydration stubs the batched image and host lookups
func (f *listingFixture) expectHydration(images map[string][]*entities.ImageRecord, users ...*entities.User) {
	f.images.On("ListByListings", mock.Anything, mock.Anything).Return(images, nil)
	f.users.On("GetByIDs", mock.Anything, mock.Anything).Return(users, nil)
}

func TestListingService_BrowsePaginatesInQuery(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, false)

	l1 := hostedListing("l1", "host-1")
	l2 := hostedListing("l2", "host-1")
	f.repo.On("Query", mock.Anything, mock.MatchedBy(func(d query.Descriptor) bool {
		return d.Limit == 2 && d.Offset == 2
	})).Return([]*entities.Listing{l1, l2}, 5, nil)
	f.expectHydration(map[string][]*entities.ImageRecord{
		"l1": {
			{ID: "i1", ListingID: "l1", Path: "host-1/l1/1-porch.jpg", DisplayOrder: 0},
			{ID: "i2", ListingID: "l1", Path: "host-1/l1/2-kitchen.jpg", DisplayOrder: 1, IsPrimary: true},
		},
	}, &entities.User{ID: "host-1", DisplayName: "Ada"})

	res, err := f.svc.Browse(ctx, nil, entities.FilterState{Kind: entities.ListingKindStay, Page: 2, PerPage: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 2, res.Page)
	require.Len(t, res.Listings, 2)
	assert.Equal(t, "https://cdn.example.com/listing-images/host-1/l1/2-kitchen.jpg", res.Listings[0].PrimaryImageURL)
	assert.Nil(t, res.Listings[0].Images, "browse pages carry only the primary image")
	assert.Equal(t, placeholderURL, res.Listings[1].PrimaryImageURL)
	require.NotNil(t, res.Listings[0].Host)
	assert.Equal(t, "Ada", res.Listings[0].Host.DisplayName)
	f.favorites.AssertNotCalled(t, "FavoritedAmong", mock.Anything, mock.Anything, mock.Anything)
}

func TestListingService_BrowsePostFiltersAvailability(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, false)

	open := hostedListing("open", "host-1")
	booked := hostedListing("booked", "host-1")
	f.repo.On("Query", mock.Anything, mock.MatchedBy(func(d query.Descriptor) bool {
		return d.Limit == services.MaxPostFilterCandidates && d.Offset == 0
	})).Return([]*entities.Listing{open, booked}, 2, nil)

	// The coming weekend of Wednesday Jan 1 is Jan 4-5
	f.slots.On("ListRangeForListings", mock.Anything, []string{"open", "booked"}, day(2025, 1, 4), day(2025, 1, 6)).
		Return(map[string][]entities.AvailabilitySlot{
			"booked": {slot(day(2025, 1, 4), false), slot(day(2025, 1, 5), false)},
		}, nil)
	f.slots.On("ListingsWithSlots", mock.Anything, []string{"open"}).Return(map[string]bool{}, nil)
	f.expectHydration(map[string][]*entities.ImageRecord{})

	res, err := f.svc.Browse(ctx, nil, entities.FilterState{
		Kind:     entities.ListingKindStay,
		Bedrooms: entities.BedroomsAny,
		Guests:   entities.GuestsAny,
		Window:   entities.WindowWeekend,
		Page:     1,
		PerPage:  10,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Listings, 1)
	assert.Equal(t, "open", res.Listings[0].ID, "synthesized calendar keeps the listing without rows")
}

func TestListingService_BrowseRechecksSearchHits(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, true)

	live := hostedListing("live", "host-1")
	stale := hostedListing("stale", "host-1")
	stale.Status = entities.ListingStatusArchived

	f.search.On("Search", mock.Anything, mock.Anything).Return([]*entities.Listing{{ID: "live"}, {ID: "stale"}}, 2, nil)
	f.repo.On("GetByIDs", mock.Anything, []string{"live", "stale"}).Return([]*entities.Listing{live, stale}, nil)
	f.expectHydration(map[string][]*entities.ImageRecord{})

	res, err := f.svc.Browse(ctx, nil, entities.FilterState{Kind: entities.ListingKindStay})
	require.NoError(t, err)

	require.Len(t, res.Listings, 1)
	assert.Equal(t, "live", res.Listings[0].ID)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 24, res.PerPage)
}

func TestListingService_BrowseTitleSearchUsesDatabase(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, true)

	class := hostedListing("l1", "host-1")
	class.Title = "Tom yum soup class"
	f.repo.On("Query", mock.Anything, mock.MatchedBy(func(d query.Descriptor) bool {
		p, ok := d.Find(query.FieldTitle)
		return ok && p.Op == query.OpContains && p.Value == "OUP" && d.Matches(class)
	})).Return([]*entities.Listing{class}, 1, nil)
	f.expectHydration(map[string][]*entities.ImageRecord{})

	res, err := f.svc.Browse(ctx, nil, entities.FilterState{Kind: entities.ListingKindStay, Title: "OUP"})
	require.NoError(t, err)

	require.Len(t, res.Listings, 1)
	assert.Equal(t, "Tom yum soup class", res.Listings[0].Title)
	assert.Equal(t, 1, res.Total)
	f.search.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestListingService_BrowseFallsBackToDatabase(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, true)

	f.search.On("Search", mock.Anything, mock.Anything).Return(nil, 0, errors.New("connection refused"))
	f.repo.On("Query", mock.Anything, mock.Anything).Return([]*entities.Listing{hostedListing("l1", "host-1")}, 1, nil)
	f.expectHydration(map[string][]*entities.ImageRecord{})

	res, err := f.svc.Browse(ctx, nil, entities.FilterState{Kind: entities.ListingKindStay})
	require.NoError(t, err)
	assert.Len(t, res.Listings, 1)
}

func TestListingService_BrowseMarksFavorites(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, false)

	f.repo.On("Query", mock.Anything, mock.Anything).Return([]*entities.Listing{hostedListing("l1", "host-1"), hostedListing("l2", "host-1")}, 2, nil)
	f.expectHydration(map[string][]*entities.ImageRecord{})
	f.favorites.On("FavoritedAmong", mock.Anything, "guest-1", []string{"l1", "l2"}).Return(map[string]bool{"l2": true}, nil)

	res, err := f.svc.Browse(ctx, session("guest-1"), entities.FilterState{Kind: entities.ListingKindStay})
	require.NoError(t, err)
	assert.False(t, res.Listings[0].Favorited)
	assert.True(t, res.Listings[1].Favorited)
}

func TestListingService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("published listing includes the gallery", func(t *testing.T) {
		f := newListingFixture(t, false)
		f.repo.On("GetByID", ctx, "l1").Return(hostedListing("l1", "host-1"), nil)
		f.expectHydration(map[string][]*entities.ImageRecord{
			"l1": {{ID: "i1", ListingID: "l1", Path: "https://images.example.org/a.jpg", IsPrimary: true}},
		})

		l, err := f.svc.Get(ctx, nil, "l1")
		require.NoError(t, err)
		require.Len(t, l.Images, 1)
		assert.Equal(t, "https://images.example.org/a.jpg", l.Images[0].URL, "absolute URLs pass through")
		assert.Nil(t, l.Host, "a missing host profile is not an error")
	})

	t.Run("draft is not found for guests", func(t *testing.T) {
		f := newListingFixture(t, false)
		draft := hostedListing("l1", "host-1")
		draft.Status = entities.ListingStatusDraft
		f.repo.On("GetByID", ctx, "l1").Return(draft, nil)

		_, err := f.svc.Get(ctx, session("guest-1"), "l1")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func validStayInput() services.ListingInput {
	return services.ListingInput{
		Kind:        "stay",
		Title:       "  Garden cottage ",
		Description: "Quiet room by the orchard",
		Price:       120,
		Address:     services.AddressInput{City: "Asheville", ZipCode: "28801"},
		Stay:        &services.StayInput{PropertyType: "cottage", Bedrooms: 1, Beds: 1, Bathrooms: 1, MaxGuests: 2},
	}
}

func TestListingService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a session", func(t *testing.T) {
		f := newListingFixture(t, false)
		_, err := f.svc.Create(ctx, nil, validStayInput())
		assert.Equal(t, apperrors.ErrorTypeUnauthorized, apperrors.TypeOf(err))
	})

	t.Run("rejects a stay without stay attributes", func(t *testing.T) {
		f := newListingFixture(t, false)
		in := validStayInput()
		in.Stay = nil

		_, err := f.svc.Create(ctx, session("host-1"), in)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "is required", appErr.Fields["stay"])
	})

	t.Run("stores a draft with defaults", func(t *testing.T) {
		f := newListingFixture(t, false)
		f.repo.On("Create", ctx, mock.AnythingOfType("*entities.Listing")).Return(nil)

		l, err := f.svc.Create(ctx, session("host-1"), validStayInput())
		require.NoError(t, err)
		assert.Equal(t, entities.ListingStatusDraft, l.Status)
		assert.Equal(t, "host-1", l.HostID)
		assert.Equal(t, "Garden cottage", l.Title)
		assert.Equal(t, "USD", l.Currency)
		assert.Contains(t, l.Slug, "garden-cottage-")
		assert.NotNil(t, l.Stay.Amenities)
		assert.Nil(t, l.Food)
	})
}

func TestListingService_UpdateKeepsKind(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, false)
	f.repo.On("GetByID", ctx, "l1").Return(hostedListing("l1", "host-1"), nil)

	in := validStayInput()
	in.Kind = "food"
	in.Stay = nil
	in.Food = &services.FoodInput{CuisineType: "thai", MaxGuests: 6}

	_, err := f.svc.Update(ctx, session("host-1"), "l1", in)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "cannot be changed", appErr.Fields["kind"])
	f.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestListingService_UpdatePublishedReindexes(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, true)
	f.repo.On("GetByID", ctx, "l1").Return(hostedListing("l1", "host-1"), nil)
	f.repo.On("Update", ctx, mock.Anything).Return(nil)
	f.search.On("Index", ctx, mock.Anything).Return(errors.New("index down"))

	l, err := f.svc.Update(ctx, session("host-1"), "l1", validStayInput())
	require.NoError(t, err, "index failures do not fail the edit")
	assert.Equal(t, 120.0, l.Price)
	f.search.AssertExpectations(t)
}

func TestListingService_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("incomplete listing is rejected", func(t *testing.T) {
		f := newListingFixture(t, true)
		draft := hostedListing("l1", "host-1")
		draft.Status = entities.ListingStatusDraft
		draft.Price = 0
		f.repo.On("GetByID", ctx, "l1").Return(draft, nil)

		_, err := f.svc.Publish(ctx, session("host-1"), "l1")
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
		f.repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		f := newListingFixture(t, true)
		f.repo.On("GetByID", ctx, "l1").Return(hostedListing("l1", "host-1"), nil)

		_, err := f.svc.Publish(ctx, session("guest-1"), "l1")
		assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))
	})

	t.Run("indexes and drops cached pages", func(t *testing.T) {
		f := newListingFixture(t, true)
		draft := hostedListing("l1", "host-1")
		draft.Status = entities.ListingStatusDraft
		f.repo.On("GetByID", ctx, "l1").Return(draft, nil)
		f.repo.On("UpdateStatus", ctx, "l1", entities.ListingStatusPublished).Return(nil)
		f.search.On("Index", ctx, draft).Return(nil)

		require.NoError(t, f.cache.Set(ctx, "listing:l1", []byte("{}"), 0))
		require.NoError(t, f.cache.Set(ctx, "http:cache:/api/stays:abc", []byte("{}"), 0))
		require.NoError(t, f.cache.Set(ctx, "http:cache:/api/listings/l1:def", []byte("{}"), 0))

		l, err := f.svc.Publish(ctx, session("host-1"), "l1")
		require.NoError(t, err)
		assert.Equal(t, entities.ListingStatusPublished, l.Status)
		f.search.AssertExpectations(t)

		for _, key := range []string{"listing:l1", "http:cache:/api/stays:abc", "http:cache:/api/listings/l1:def"} {
			ok, _ := f.cache.Exists(ctx, key)
			assert.False(t, ok, key)
		}
	})
}

func TestListingService_ArchiveRemovesFromIndex(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, true)
	f.repo.On("GetByID", ctx, "l1").Return(hostedListing("l1", "host-1"), nil)
	f.repo.On("UpdateStatus", ctx, "l1", entities.ListingStatusArchived).Return(nil)
	f.search.On("Delete", ctx, "l1").Return(nil)

	l, err := f.svc.Archive(ctx, session("host-1"), "l1")
	require.NoError(t, err)
	assert.Equal(t, entities.ListingStatusArchived, l.Status)
	f.search.AssertExpectations(t)
}

func TestListingService_ListMine(t *testing.T) {
	ctx := context.Background()
	f := newListingFixture(t, false)

	_, err := f.svc.ListMine(ctx, nil)
	assert.Equal(t, apperrors.ErrorTypeUnauthorized, apperrors.TypeOf(err))

	draft := hostedListing("l1", "host-1")
	draft.Status = entities.ListingStatusDraft
	f.repo.On("ListByHost", ctx, "host-1").Return([]*entities.Listing{draft}, nil)
	f.expectHydration(map[string][]*entities.ImageRecord{})
	f.favorites.On("FavoritedAmong", ctx, "host-1", []string{"l1"}).Return(map[string]bool{}, nil)

	mine, err := f.svc.ListMine(ctx, session("host-1"))
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
