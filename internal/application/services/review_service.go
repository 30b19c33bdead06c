package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

const (
	defaultReviewPageSize = 20
	maxReviewPageSize     = 100
)

// ReviewInput is a guest's rating of a listing
type ReviewInput struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// ReviewService records guest reviews and keeps listing ratings current
type ReviewService struct {
	reviews     repositories.ReviewRepository
	listings    repositories.ListingRepository
	users       repositories.UserRepository
	invalidator *CacheInvalidationService
	now         func() time.Time
}

// NewReviewService creates a new review service
func NewReviewService(
	reviews repositories.ReviewRepository,
	listings repositories.ListingRepository,
	users repositories.UserRepository,
	invalidator *CacheInvalidationService,
) *ReviewService {
	return &ReviewService{
		reviews:     reviews,
		listings:    listings,
		users:       users,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Submit creates or replaces the signed-in user's review of a published
// listing. Hosts cannot review their own listings.
func (s *ReviewService) Submit(ctx context.Context, session *entities.Session, listingID string, input ReviewInput) (*entities.Review, *entities.RatingSummary, error) {
	if session == nil {
		return nil, nil, apperrors.NewUnauthorizedError("sign in to leave a review")
	}
	if err := validateInput(input); err != nil {
		return nil, nil, err
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	if !listing.IsPublished() {
		return nil, nil, apperrors.NewNotFoundError("listing not found")
	}
	if listing.OwnedBy(session.UserID) {
		return nil, nil, apperrors.NewForbiddenError("hosts cannot review their own listings")
	}

	now := s.now().UTC()
	review := &entities.Review{
		ID:        uuid.New().String(),
		ListingID: listing.ID,
		UserID:    session.UserID,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
		CreatedAt: now,
		UpdatedAt: now,
	}

	summary, err := s.reviews.Upsert(ctx, review)
	if err != nil {
		return nil, nil, err
	}

	s.invalidator.InvalidateListing(ctx, listing.ID)
	observability.LoggerFromContext(ctx).Info().
		Str("listing_id", listing.ID).
		Int("rating", review.Rating).
		Float64("listing_rating", summary.Rating).
		Msg("review saved")
	return review, summary, nil
}

// List returns a page of a listing's reviews with their authors
func (s *ReviewService) List(ctx context.Context, listingID string, page, perPage int) ([]*entities.Review, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultReviewPageSize
	}
	if perPage > maxReviewPageSize {
		perPage = maxReviewPageSize
	}

	reviews, err := s.reviews.ListByListing(ctx, listingID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if len(reviews) == 0 {
		return []*entities.Review{}, nil
	}

	authorIDs := make([]string, 0, len(reviews))
	seen := make(map[string]bool, len(reviews))
	for _, r := range reviews {
		if !seen[r.UserID] {
			seen[r.UserID] = true
			authorIDs = append(authorIDs, r.UserID)
		}
	}

	users, err := s.users.GetByIDs(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	profiles := make(map[string]*entities.Profile, len(users))
	for _, u := range users {
		profiles[u.ID] = u.Profile()
	}
	for _, r := range reviews {
		r.Author = profiles[r.UserID]
	}
	return reviews, nil
}

// Mine returns the signed-in user's review of a listing
func (s *ReviewService) Mine(ctx context.Context, session *entities.Session, listingID string) (*entities.Review, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	return s.reviews.GetByUserAndListing(ctx, session.UserID, listingID)
}
