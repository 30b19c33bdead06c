package repositories

import (
	"context"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/query"
)

// ListingRepository defines the interface for listing data operations
type ListingRepository interface {
	// Create inserts a new listing
	Create(ctx context.Context, listing *entities.Listing) error

	// GetByID retrieves a listing by ID regardless of status
	GetByID(ctx context.Context, id string) (*entities.Listing, error)

	// GetByIDs retrieves listings by ID; missing ids are skipped
	GetByIDs(ctx context.Context, ids []string) ([]*entities.Listing, error)

	// Update replaces the mutable fields of a listing
	Update(ctx context.Context, listing *entities.Listing) error

	// UpdateStatus moves a listing between draft, published and archived
	UpdateStatus(ctx context.Context, id string, status entities.ListingStatus) error

	// Query runs a composed descriptor and returns one page plus the unpaged total
	Query(ctx context.Context, q query.Descriptor) ([]*entities.Listing, int, error)

	// ListByHost retrieves every listing owned by a host, newest first
	ListByHost(ctx context.Context, hostID string) ([]*entities.Listing, error)
}

// ListingSearchRepository is the free-text search index over published listings
type ListingSearchRepository interface {
	// Index upserts a listing document
	Index(ctx context.Context, listing *entities.Listing) error

	// Delete removes a listing document
	Delete(ctx context.Context, id string) error

	// Search returns partial listings in rank order and the total hit count.
	// Callers hydrate full records from the ListingRepository.
	Search(ctx context.Context, q query.Descriptor) ([]*entities.Listing, int, error)
}
