package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hearthtable/marketplace/internal/application/loaders"
	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	"github.com/hearthtable/marketplace/internal/query"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// MaxPostFilterCandidates caps how many query results are scanned in memory
// when availability rules force pagination after the post-filter
const MaxPostFilterCandidates = 500

// AddressInput is the location part of a listing form
type AddressInput struct {
	Street    string  `json:"street" validate:"max=200"`
	City      string  `json:"city" validate:"required,max=100"`
	State     string  `json:"state" validate:"max=100"`
	ZipCode   string  `json:"zip_code" validate:"required,max=20"`
	Country   string  `json:"country" validate:"max=100"`
	Latitude  float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude float64 `json:"longitude" validate:"omitempty,longitude"`
}

// StayInput holds the stay-specific form fields
type StayInput struct {
	PropertyType string   `json:"property_type" validate:"required,max=50"`
	Bedrooms     int      `json:"bedrooms" validate:"gte=0,lte=50"`
	Beds         int      `json:"beds" validate:"gte=0,lte=100"`
	Bathrooms    float64  `json:"bathrooms" validate:"gte=0,lte=50"`
	MaxGuests    int      `json:"max_guests" validate:"gte=1,lte=100"`
	Amenities    []string `json:"amenities" validate:"max=50,unique"`
}

// FoodInput holds the food-experience form fields
type FoodInput struct {
	CuisineType     string `json:"cuisine_type" validate:"required,max=50"`
	MenuDescription string `json:"menu_description" validate:"max=5000"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=1440"`
	Language        string `json:"language" validate:"max=50"`
	MaxGuests       int    `json:"max_guests" validate:"gte=1,lte=100"`
}

// ListingInput is the create and update form of a listing
type ListingInput struct {
	Kind        string       `json:"kind" validate:"required,oneof=stay food"`
	Title       string       `json:"title" validate:"required,min=3,max=120"`
	Description string       `json:"description" validate:"max=5000"`
	Price       float64      `json:"price" validate:"gt=0"`
	Currency    string       `json:"currency" validate:"omitempty,len=3"`
	Address     AddressInput `json:"address"`
	Stay        *StayInput   `json:"stay" validate:"required_if=Kind stay"`
	Food        *FoodInput   `json:"food" validate:"required_if=Kind food"`
}

// BrowseResult is one page of public search
type BrowseResult struct {
	Listings []*entities.Listing  `json:"listings"`
	Total    int                  `json:"total"`
	Page     int                  `json:"page"`
	PerPage  int                  `json:"per_page"`
	Filters  entities.FilterState `json:"filters"`
}

// ListingService handles browsing and the host listing lifecycle
type ListingService struct {
	repo         repositories.ListingRepository
	searchRepo   repositories.ListingSearchRepository
	availability *AvailabilityService
	favorites    repositories.FavoriteRepository
	users        repositories.UserRepository
	images       repositories.ImageRepository
	urls         *URLResolver
	postFilter   *PostFilter
	invalidator  *CacheInvalidationService
	metrics      *observability.Metrics
	now          func() time.Time
}

// NewListingService creates a new listing service. searchRepo, invalidator and
// metrics may be nil.
func NewListingService(
	repo repositories.ListingRepository,
	searchRepo repositories.ListingSearchRepository,
	availability *AvailabilityService,
	favorites repositories.FavoriteRepository,
	users repositories.UserRepository,
	images repositories.ImageRepository,
	urls *URLResolver,
	invalidator *CacheInvalidationService,
	metrics *observability.Metrics,
) *ListingService {
	return &ListingService{
		repo:         repo,
		searchRepo:   searchRepo,
		availability: availability,
		favorites:    favorites,
		users:        users,
		images:       images,
		urls:         urls,
		postFilter:   NewPostFilter(nil),
		invalidator:  invalidator,
		metrics:      metrics,
		now:          time.Now,
	}
}

// WithClock replaces the clock used for timestamps and availability windows
func (s *ListingService) WithClock(now func() time.Time) *ListingService {
	s.now = now
	s.postFilter = NewPostFilter(now)
	return s
}

// Browse runs public search for one filter state. Bucket predicates are pushed
// down to the query; availability windows and date ranges need slot data, so
// when either is set the candidates are post-filtered and paginated in memory.
func (s *ListingService) Browse(ctx context.Context, session *entities.Session, state entities.FilterState) (*BrowseResult, error) {
	ctx, span := observability.StartSpan(ctx, "ListingService.Browse")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("listing.kind", string(state.Kind)),
		attribute.Bool("browse.needs_availability", state.NeedsAvailability()),
	)

	if state.Page < 1 {
		state.Page = 1
	}
	if state.PerPage < 1 {
		state.PerPage = 24
	}

	d := query.Compose(state)

	var (
		listings []*entities.Listing
		total    int
		err      error
	)

	if from, to, ok := s.postFilter.SlotRange(state); ok {
		d.Limit, d.Offset = MaxPostFilterCandidates, 0
		candidates, _, ferr := s.fetch(ctx, d)
		if ferr != nil {
			observability.RecordError(span, ferr)
			return nil, ferr
		}

		slots, serr := s.availability.SlotsFor(ctx, candidates, from, to)
		if serr != nil {
			observability.RecordError(span, serr)
			return nil, serr
		}

		kept := s.postFilter.Apply(candidates, slots, state)
		observability.RecordPostFilterDrops(ctx, s.metrics, string(state.Kind), len(candidates)-len(kept))

		total = len(kept)
		listings = pageOf(kept, state.Page, state.PerPage)
	} else {
		listings, total, err = s.fetch(ctx, d.Paginate(state.Page, state.PerPage))
		if err != nil {
			observability.RecordError(span, err)
			return nil, err
		}
	}

	if err := s.hydrate(ctx, session, listings, false); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	return &BrowseResult{
		Listings: listings,
		Total:    total,
		Page:     state.Page,
		PerPage:  state.PerPage,
		Filters:  state,
	}, nil
}

// fetch runs a descriptor through the search index when one is configured,
// falling back to the database. Title substring searches always go to the
// database, where ILIKE gives exact "contains" semantics and stable totals.
// Index hits are re-read from the database and re-checked with Matches so
// stale documents never leak into results.
func (s *ListingService) fetch(ctx context.Context, d query.Descriptor) ([]*entities.Listing, int, error) {
	if s.searchRepo == nil || d.HasSubstring() {
		return s.repo.Query(ctx, d)
	}

	hits, total, err := s.searchRepo.Search(ctx, d)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("search index unavailable, querying database")
		return s.repo.Query(ctx, d)
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}

	records, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	listings := make([]*entities.Listing, 0, len(records))
	for _, l := range records {
		if d.Matches(l) {
			listings = append(listings, l)
		}
	}
	if dropped := len(hits) - len(listings); dropped > 0 {
		total -= dropped
		observability.LoggerFromContext(ctx).Debug().Int("dropped", dropped).Msg("dropped stale search hits")
	}
	return listings, total, nil
}

// Get returns one listing with its gallery and host. Unpublished listings are
// only visible to their host.
func (s *ListingService) Get(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error) {
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.IsPublished() && !listing.OwnedBy(sessionUserID(session)) {
		return nil, apperrors.NewNotFoundError("listing not found")
	}

	if err := s.hydrate(ctx, session, []*entities.Listing{listing}, true); err != nil {
		return nil, err
	}
	return listing, nil
}

// ListMine returns every listing the signed-in host owns, newest first
func (s *ListingService) ListMine(ctx context.Context, session *entities.Session) ([]*entities.Listing, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}

	listings, err := s.repo.ListByHost(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, session, listings, false); err != nil {
		return nil, err
	}
	return listings, nil
}

// Create stores a new draft owned by the signed-in user
func (s *ListingService) Create(ctx context.Context, session *entities.Session, input ListingInput) (*entities.Listing, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	listing := &entities.Listing{
		ID:        uuid.New().String(),
		Kind:      entities.ListingKind(input.Kind),
		Status:    entities.ListingStatusDraft,
		HostID:    session.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyListingInput(listing, input)
	listing.GenerateSlug()

	if err := s.repo.Create(ctx, listing); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Str("listing_id", listing.ID).
		Str("kind", string(listing.Kind)).
		Msg("listing created")
	return listing, nil
}

// Update replaces the editable fields. The kind of a listing cannot change.
func (s *ListingService) Update(ctx context.Context, session *entities.Session, id string, input ListingInput) (*entities.Listing, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	listing, err := s.owned(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if entities.ListingKind(input.Kind) != listing.Kind {
		return nil, apperrors.NewFieldValidationError("invalid input", map[string]string{
			"kind": "cannot be changed",
		})
	}

	applyListingInput(listing, input)
	listing.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, listing); err != nil {
		return nil, err
	}

	if listing.IsPublished() {
		s.index(ctx, listing)
	}
	s.invalidator.InvalidateListing(ctx, listing.ID)
	return listing, nil
}

// Publish makes a listing visible in search once it has everything guests need
func (s *ListingService) Publish(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error) {
	return s.transition(ctx, session, id, entities.ListingStatusPublished)
}

// Unpublish moves a published listing back to draft
func (s *ListingService) Unpublish(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error) {
	return s.transition(ctx, session, id, entities.ListingStatusDraft)
}

// Archive hides a listing from search without deleting it
func (s *ListingService) Archive(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error) {
	return s.transition(ctx, session, id, entities.ListingStatusArchived)
}

func (s *ListingService) transition(ctx context.Context, session *entities.Session, id string, to entities.ListingStatus) (*entities.Listing, error) {
	listing, err := s.owned(ctx, session, id)
	if err != nil {
		return nil, err
	}

	if to == entities.ListingStatusPublished {
		if problems := listing.ReadyToPublish(); len(problems) > 0 {
			return nil, apperrors.NewFieldValidationError("listing is not ready to publish", map[string]string{
				"listing": strings.Join(problems, "; "),
			})
		}
	}

	from := listing.Status
	if err := listing.Transition(to); err != nil {
		return nil, apperrors.NewConflictError(err.Error())
	}
	if from == to {
		return listing, nil
	}

	if err := s.repo.UpdateStatus(ctx, listing.ID, to); err != nil {
		return nil, err
	}
	listing.UpdatedAt = s.now().UTC()

	if listing.IsPublished() {
		s.index(ctx, listing)
	} else {
		s.unindex(ctx, listing.ID)
	}

	s.invalidator.InvalidateListing(ctx, listing.ID)
	if err := s.invalidator.InvalidateBrowseCaches(ctx); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to invalidate browse caches")
	}

	observability.LoggerFromContext(ctx).Info().
		Str("listing_id", listing.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("listing status changed")
	return listing, nil
}

// owned loads a listing the session's user may mutate
func (s *ListingService) owned(ctx context.Context, session *entities.Session, id string) (*entities.Listing, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !listing.OwnedBy(session.UserID) {
		return nil, apperrors.NewForbiddenError("only the host can change this listing")
	}
	return listing, nil
}

// hydrate attaches images, the primary image URL, the host profile and the
// caller's favorite flag. Related records are batched through the request's
// dataloaders; a missing host profile is not an error.
func (s *ListingService) hydrate(ctx context.Context, session *entities.Session, listings []*entities.Listing, fullGallery bool) error {
	if len(listings) == 0 {
		return nil
	}

	l, ok := loaders.For(ctx)
	if !ok {
		l = loaders.NewLoaders(s.users, s.images)
	}

	ids := make([]string, len(listings))
	hostIDs := make([]string, len(listings))
	for i, listing := range listings {
		ids[i] = listing.ID
		hostIDs[i] = listing.HostID
	}

	imageThunk := l.ImageLoader.LoadMany(ctx, ids)
	hostThunk := l.HostLoader.LoadMany(ctx, hostIDs)

	galleries, errs := imageThunk()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	hosts, _ := hostThunk()

	for i, listing := range listings {
		images := galleries[i]
		for _, img := range images {
			img.URL = s.urls.Resolve(img.Path)
		}
		listing.PrimaryImageURL = s.urls.Resolve(primaryPath(images))
		if fullGallery {
			listing.Images = images
		}
		if i < len(hosts) && hosts[i] != nil {
			listing.Host = hosts[i]
		}
	}

	if session == nil || s.favorites == nil {
		return nil
	}
	saved, err := s.favorites.FavoritedAmong(ctx, session.UserID, ids)
	if err != nil {
		return err
	}
	for _, listing := range listings {
		listing.Favorited = saved[listing.ID]
	}
	return nil
}

func (s *ListingService) index(ctx context.Context, listing *entities.Listing) {
	if s.searchRepo == nil {
		return
	}
	// Index failures are logged; the database stays the source of truth
	if err := s.searchRepo.Index(ctx, listing); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("listing_id", listing.ID).Msg("failed to index listing")
	}
}

func (s *ListingService) unindex(ctx context.Context, id string) {
	if s.searchRepo == nil {
		return
	}
	if err := s.searchRepo.Delete(ctx, id); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("listing_id", id).Msg("failed to remove listing from index")
	}
}

// primaryPath returns the path of the primary image, or of the first image
// when none is flagged
func primaryPath(images []*entities.ImageRecord) string {
	for _, img := range images {
		if img.IsPrimary {
			return img.Path
		}
	}
	if len(images) > 0 {
		return images[0].Path
	}
	return ""
}

func applyListingInput(l *entities.Listing, in ListingInput) {
	l.Title = strings.TrimSpace(in.Title)
	l.Description = strings.TrimSpace(in.Description)
	l.Price = in.Price
	l.Currency = strings.ToUpper(in.Currency)
	if l.Currency == "" {
		l.Currency = "USD"
	}
	l.Address = entities.Address{
		Street:  strings.TrimSpace(in.Address.Street),
		City:    strings.TrimSpace(in.Address.City),
		State:   strings.TrimSpace(in.Address.State),
		ZipCode: strings.TrimSpace(in.Address.ZipCode),
		Country: strings.TrimSpace(in.Address.Country),
	}
	l.Location = entities.Location{Latitude: in.Address.Latitude, Longitude: in.Address.Longitude}

	l.Stay, l.Food = nil, nil
	switch l.Kind {
	case entities.ListingKindStay:
		if in.Stay != nil {
			amenities := in.Stay.Amenities
			if amenities == nil {
				amenities = []string{}
			}
			l.Stay = &entities.StayAttributes{
				PropertyType: strings.TrimSpace(in.Stay.PropertyType),
				Bedrooms:     in.Stay.Bedrooms,
				Beds:         in.Stay.Beds,
				Bathrooms:    in.Stay.Bathrooms,
				MaxGuests:    in.Stay.MaxGuests,
				Amenities:    amenities,
			}
		}
	case entities.ListingKindFood:
		if in.Food != nil {
			l.Food = &entities.FoodAttributes{
				CuisineType:     strings.TrimSpace(in.Food.CuisineType),
				MenuDescription: strings.TrimSpace(in.Food.MenuDescription),
				DurationMinutes: in.Food.DurationMinutes,
				Language:        strings.TrimSpace(in.Food.Language),
				MaxGuests:       in.Food.MaxGuests,
			}
		}
	}
}

// pageOf returns the 1-based page of items
func pageOf(items []*entities.Listing, page, perPage int) []*entities.Listing {
	start := (page - 1) * perPage
	if start >= len(items) {
		return []*entities.Listing{}
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
