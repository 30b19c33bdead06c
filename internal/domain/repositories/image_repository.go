package repositories

import (
	"context"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// ImageRepository defines the interface for listing image records
type ImageRepository interface {
	// Create inserts an image record. If the record claims primary and another
	// primary already exists, it is stored as non-primary and IsPrimary is cleared.
	Create(ctx context.Context, image *entities.ImageRecord) error

	// GetByID retrieves one image record
	GetByID(ctx context.Context, id string) (*entities.ImageRecord, error)

	// ListByListing retrieves a listing's images by display order
	ListByListing(ctx context.Context, listingID string) ([]*entities.ImageRecord, error)

	// ListByListings retrieves images for many listings keyed by listing id
	ListByListings(ctx context.Context, listingIDs []string) (map[string][]*entities.ImageRecord, error)

	// HasPrimary reports whether the listing already has a primary image
	HasPrimary(ctx context.Context, listingID string) (bool, error)

	// SetPrimary makes imageID the only primary image of the listing atomically
	SetPrimary(ctx context.Context, listingID, imageID string) error

	// Reorder assigns display orders following the given id sequence
	Reorder(ctx context.Context, listingID string, orderedIDs []string) error

	// Delete removes an image record
	Delete(ctx context.Context, id string) error
}
