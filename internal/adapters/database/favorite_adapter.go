package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// FavoriteAdapter implements FavoriteRepository
type FavoriteAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFavoriteAdapter creates a new favorite adapter
func NewFavoriteAdapter(client *postgres.Client) repositories.FavoriteRepository {
	return &FavoriteAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.FavoriteRepository = (*FavoriteAdapter)(nil)

// toggleFavoriteQuery deletes the row if present, otherwise inserts it, in one statement
const toggleFavoriteQuery = `
	WITH deleted AS (
		DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2
		RETURNING 1
	), inserted AS (
		INSERT INTO favorites (user_id, listing_id, created_at)
		SELECT $1, $2, NOW()
		WHERE NOT EXISTS (SELECT 1 FROM deleted)
		ON CONFLICT (user_id, listing_id) DO NOTHING
		RETURNING 1
	)
	SELECT EXISTS (SELECT 1 FROM inserted)
`

// Toggle flips the favorited state and returns the new state
func (a *FavoriteAdapter) Toggle(ctx context.Context, userID, listingID string) (bool, error) {
	var favorited bool
	if err := a.client.DB().QueryRowContext(ctx, toggleFavoriteQuery, userID, listingID).Scan(&favorited); err != nil {
		return false, apperrors.NewInternalError("failed to toggle favorite", err)
	}
	return favorited, nil
}

// Exists reports whether the user has saved the listing
func (a *FavoriteAdapter) Exists(ctx context.Context, userID, listingID string) (bool, error) {
	query, args, err := a.db.From("favorites").
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"user_id": userID, "listing_id": listingID}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build query", err)
	}

	var n int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, apperrors.NewInternalError("failed to check favorite", err)
	}
	return n > 0, nil
}

// FavoritedAmong returns which of the listing ids the user has saved
func (a *FavoriteAdapter) FavoritedAmong(ctx context.Context, userID string, listingIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(listingIDs))
	if userID == "" || len(listingIDs) == 0 {
		return out, nil
	}

	query, args, err := a.db.From("favorites").
		Select("listing_id").
		Where(goqu.Ex{"user_id": userID, "listing_id": listingIDs}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list favorites", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan favorite", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate favorites", err)
	}
	return out, nil
}

// ListByUser retrieves a user's favorites, newest first
func (a *FavoriteAdapter) ListByUser(ctx context.Context, userID string) ([]*entities.Favorite, error) {
	query, args, err := a.db.From("favorites").
		Select("user_id", "listing_id", "created_at").
		Where(goqu.Ex{"user_id": userID}).
		Order(goqu.I("created_at").Desc(), goqu.I("listing_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list favorites", err)
	}
	defer rows.Close()

	favorites := make([]*entities.Favorite, 0)
	for rows.Next() {
		f := &entities.Favorite{}
		if err := rows.Scan(&f.UserID, &f.ListingID, &f.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan favorite", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate favorites", err)
	}
	return favorites, nil
}

// CountByListing returns how many users saved a listing
func (a *FavoriteAdapter) CountByListing(ctx context.Context, listingID string) (int, error) {
	query, args, err := a.db.From("favorites").
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"listing_id": listingID}).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build query", err)
	}

	var n int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperrors.NewInternalError("failed to count favorites", err)
	}
	return n, nil
}
