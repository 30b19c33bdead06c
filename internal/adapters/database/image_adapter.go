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

// ImageAdapter implements ImageRepository. A partial unique index on
// listing_images(listing_id) WHERE is_primary guarantees at most one primary.
type ImageAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewImageAdapter creates a new image adapter
func NewImageAdapter(client *postgres.Client) repositories.ImageRepository {
	return &ImageAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.ImageRepository = (*ImageAdapter)(nil)

var imageSelect = []interface{}{"id", "listing_id", "path", "display_order", "is_primary", "created_at"}

// Create inserts an image record, demoting it when another primary won the race
func (a *ImageAdapter) Create(ctx context.Context, image *entities.ImageRecord) error {
	err := a.insert(ctx, image)
	if err != nil && image.IsPrimary && isUniqueViolation(err) {
		image.IsPrimary = false
		err = a.insert(ctx, image)
	}
	if err != nil {
		return apperrors.NewInternalError("failed to create image record", err)
	}
	return nil
}

func (a *ImageAdapter) insert(ctx context.Context, image *entities.ImageRecord) error {
	query, args, err := a.db.Insert("listing_images").Rows(goqu.Record{
		"id":            image.ID,
		"listing_id":    image.ListingID,
		"path":          image.Path,
		"display_order": image.DisplayOrder,
		"is_primary":    image.IsPrimary,
		"created_at":    image.CreatedAt,
	}).ToSQL()
	if err != nil {
		return err
	}
	_, err = a.client.DB().ExecContext(ctx, query, args...)
	return err
}

// GetByID retrieves one image record
func (a *ImageAdapter) GetByID(ctx context.Context, id string) (*entities.ImageRecord, error) {
	query, args, err := a.db.Select(imageSelect...).
		From("listing_images").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	image := &entities.ImageRecord{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&image.ID, &image.ListingID, &image.Path, &image.DisplayOrder, &image.IsPrimary, &image.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("image with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get image", err)
	}
	return image, nil
}

// ListByListing retrieves a listing's images, primary first then by display order
func (a *ImageAdapter) ListByListing(ctx context.Context, listingID string) ([]*entities.ImageRecord, error) {
	byListing, err := a.ListByListings(ctx, []string{listingID})
	if err != nil {
		return nil, err
	}
	if images, ok := byListing[listingID]; ok {
		return images, nil
	}
	return []*entities.ImageRecord{}, nil
}

// ListByListings retrieves images for many listings keyed by listing id
func (a *ImageAdapter) ListByListings(ctx context.Context, listingIDs []string) (map[string][]*entities.ImageRecord, error) {
	out := make(map[string][]*entities.ImageRecord, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}

	query, args, err := a.db.Select(imageSelect...).
		From("listing_images").
		Where(goqu.Ex{"listing_id": listingIDs}).
		Order(
			goqu.I("listing_id").Asc(),
			goqu.I("is_primary").Desc(),
			goqu.I("display_order").Asc(),
			goqu.I("created_at").Asc(),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list images", err)
	}
	defer rows.Close()

	for rows.Next() {
		image := &entities.ImageRecord{}
		if err := rows.Scan(&image.ID, &image.ListingID, &image.Path, &image.DisplayOrder, &image.IsPrimary, &image.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan image", err)
		}
		out[image.ListingID] = append(out[image.ListingID], image)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate images", err)
	}

	return out, nil
}

// HasPrimary reports whether the listing already has a primary image
func (a *ImageAdapter) HasPrimary(ctx context.Context, listingID string) (bool, error) {
	query, args, err := a.db.From("listing_images").
		Select(goqu.COUNT("*")).
		Where(goqu.Ex{"listing_id": listingID, "is_primary": true}).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build query", err)
	}

	var n int
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, apperrors.NewInternalError("failed to check primary image", err)
	}
	return n > 0, nil
}

// SetPrimary demotes the current primary and promotes imageID in one transaction.
// The demotion runs first so the partial unique index never sees two primaries.
func (a *ImageAdapter) SetPrimary(ctx context.Context, listingID, imageID string) error {
	demote, demoteArgs, err := a.db.Update("listing_images").
		Set(goqu.Record{"is_primary": false}).
		Where(goqu.Ex{"listing_id": listingID, "is_primary": true, "id": goqu.Op{"neq": imageID}}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	promote, promoteArgs, err := a.db.Update("listing_images").
		Set(goqu.Record{"is_primary": true}).
		Where(goqu.Ex{"listing_id": listingID, "id": imageID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	var notFound bool
	err = a.client.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, demote, demoteArgs...); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, promote, promoteArgs...)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			notFound = true
			return sql.ErrNoRows
		}
		return nil
	})
	if notFound {
		return apperrors.NewNotFoundError(fmt.Sprintf("image %s not found on listing %s", imageID, listingID))
	}
	if err != nil {
		return apperrors.NewInternalError("failed to set primary image", err)
	}
	return nil
}

// Reorder assigns display orders 0..n-1 following orderedIDs
func (a *ImageAdapter) Reorder(ctx context.Context, listingID string, orderedIDs []string) error {
	err := a.client.WithTx(ctx, func(tx *sql.Tx) error {
		for i, id := range orderedIDs {
			query, args, err := a.db.Update("listing_images").
				Set(goqu.Record{"display_order": i}).
				Where(goqu.Ex{"listing_id": listingID, "id": id}).
				ToSQL()
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewInternalError("failed to reorder images", err)
	}
	return nil
}

// Delete removes an image record
func (a *ImageAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete("listing_images").Where(goqu.Ex{"id": id}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete image", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("image with id %s not found", id))
	}
	return nil
}
