package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// ReviewAdapter implements ReviewRepository
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(client *postgres.Client) repositories.ReviewRepository {
	return &ReviewAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.ReviewRepository = (*ReviewAdapter)(nil)

const upsertReviewQuery = `
	INSERT INTO reviews (id, listing_id, user_id, rating, comment, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT (user_id, listing_id) DO UPDATE SET
		rating = EXCLUDED.rating,
		comment = EXCLUDED.comment,
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at, updated_at
`

const refreshRatingQuery = `
	UPDATE listings SET
		rating = COALESCE(s.avg_rating, 0),
		review_count = s.review_count
	FROM (
		SELECT ROUND(AVG(rating)::numeric, 2) AS avg_rating, COUNT(*) AS review_count
		FROM reviews WHERE listing_id = $1
	) s
	WHERE listings.id = $1
	RETURNING listings.rating, listings.review_count
`

// Upsert creates or replaces the user's review and recomputes the listing rating
func (a *ReviewAdapter) Upsert(ctx context.Context, review *entities.Review) (*entities.RatingSummary, error) {
	summary := &entities.RatingSummary{ListingID: review.ListingID}
	var listingMissing bool

	err := a.client.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, upsertReviewQuery,
			review.ID, review.ListingID, review.UserID, review.Rating, review.Comment, review.UpdatedAt,
		).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
		if err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, refreshRatingQuery, review.ListingID).Scan(&summary.Rating, &summary.ReviewCount)
		if err == sql.ErrNoRows {
			listingMissing = true
		}
		return err
	})
	if listingMissing {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("listing with id %s not found", review.ListingID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to save review", err)
	}

	return summary, nil
}

// ListByListing retrieves reviews with their authors, newest first
func (a *ReviewAdapter) ListByListing(ctx context.Context, listingID string, limit, offset int) ([]*entities.Review, error) {
	ds := a.db.From(goqu.T("reviews").As("r")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.Ex{"u.id": goqu.I("r.user_id")})).
		Select(
			"r.id", "r.listing_id", "r.user_id", "r.rating", "r.comment", "r.created_at", "r.updated_at",
			"u.display_name", "u.avatar_url",
		).
		Where(goqu.Ex{"r.listing_id": listingID}).
		Order(goqu.I("r.created_at").Desc(), goqu.I("r.id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list reviews", err)
	}
	defer rows.Close()

	reviews := make([]*entities.Review, 0)
	for rows.Next() {
		r := &entities.Review{Author: &entities.Profile{}}
		var comment, avatar sql.NullString
		if err := rows.Scan(
			&r.ID, &r.ListingID, &r.UserID, &r.Rating, &comment, &r.CreatedAt, &r.UpdatedAt,
			&r.Author.DisplayName, &avatar,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan review", err)
		}
		r.Comment = comment.String
		r.Author.ID = r.UserID
		r.Author.AvatarURL = avatar.String
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate reviews", err)
	}
	return reviews, nil
}

// GetByUserAndListing retrieves the user's review of a listing
func (a *ReviewAdapter) GetByUserAndListing(ctx context.Context, userID, listingID string) (*entities.Review, error) {
	query, args, err := a.db.From("reviews").
		Select("id", "listing_id", "user_id", "rating", "comment", "created_at", "updated_at").
		Where(goqu.Ex{"user_id": userID, "listing_id": listingID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	r := &entities.Review{}
	var comment sql.NullString
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&r.ID, &r.ListingID, &r.UserID, &r.Rating, &comment, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("review not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get review", err)
	}
	r.Comment = comment.String
	return r, nil
}
