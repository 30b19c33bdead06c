package services

import (
	"context"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// FavoriteService lets signed-in users save listings
type FavoriteService struct {
	favorites repositories.FavoriteRepository
	listings  *ListingService
	repo      repositories.ListingRepository
}

// NewFavoriteService creates a new favorite service
func NewFavoriteService(favorites repositories.FavoriteRepository, repo repositories.ListingRepository, listings *ListingService) *FavoriteService {
	return &FavoriteService{
		favorites: favorites,
		listings:  listings,
		repo:      repo,
	}
}

// Toggle saves an unsaved listing or removes a saved one and returns the new
// state with the listing's total saves
func (s *FavoriteService) Toggle(ctx context.Context, session *entities.Session, listingID string) (*entities.FavoriteState, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in to save listings")
	}

	listing, err := s.repo.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}

	// Unsaving stays possible after a listing leaves search; saving does not
	if !listing.IsPublished() {
		saved, err := s.favorites.Exists(ctx, session.UserID, listing.ID)
		if err != nil {
			return nil, err
		}
		if !saved {
			return nil, apperrors.NewNotFoundError("listing not found")
		}
	}

	favorited, err := s.favorites.Toggle(ctx, session.UserID, listing.ID)
	if err != nil {
		return nil, err
	}

	count, err := s.favorites.CountByListing(ctx, listing.ID)
	if err != nil {
		return nil, err
	}

	return &entities.FavoriteState{
		ListingID:  listing.ID,
		Favorited:  favorited,
		TotalSaves: count,
	}, nil
}

// Check reports whether the signed-in user saved a listing
func (s *FavoriteService) Check(ctx context.Context, session *entities.Session, listingID string) (*entities.FavoriteState, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}

	favorited, err := s.favorites.Exists(ctx, session.UserID, listingID)
	if err != nil {
		return nil, err
	}
	count, err := s.favorites.CountByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	return &entities.FavoriteState{
		ListingID:  listingID,
		Favorited:  favorited,
		TotalSaves: count,
	}, nil
}

// ListMine returns the user's saved listings, newest save first. Saved
// listings that were unpublished since are left out.
func (s *FavoriteService) ListMine(ctx context.Context, session *entities.Session) ([]*entities.Listing, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}

	saved, err := s.favorites.ListByUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return []*entities.Listing{}, nil
	}

	ids := make([]string, len(saved))
	for i, f := range saved {
		ids[i] = f.ListingID
	}

	records, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.Listing, len(records))
	for _, l := range records {
		byID[l.ID] = l
	}
	listings := make([]*entities.Listing, 0, len(records))
	for _, id := range ids {
		if l, ok := byID[id]; ok && l.IsPublished() {
			listings = append(listings, l)
		}
	}

	if err := s.listings.hydrate(ctx, session, listings, false); err != nil {
		return nil, err
	}
	return listings, nil
}
