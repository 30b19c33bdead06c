package repositories

import (
	"context"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// FavoriteRepository defines the interface for saved listings
type FavoriteRepository interface {
	// Toggle flips the favorited state atomically and returns the new state
	Toggle(ctx context.Context, userID, listingID string) (bool, error)

	// Exists reports whether the user has saved the listing
	Exists(ctx context.Context, userID, listingID string) (bool, error)

	// FavoritedAmong returns which of the listing ids the user has saved
	FavoritedAmong(ctx context.Context, userID string, listingIDs []string) (map[string]bool, error)

	// ListByUser retrieves a user's favorites, newest first
	ListByUser(ctx context.Context, userID string) ([]*entities.Favorite, error)

	// CountByListing returns how many users saved a listing
	CountByListing(ctx context.Context, listingID string) (int, error)
}
