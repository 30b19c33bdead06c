package repositories

import (
	"context"
	"time"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// AvailabilityRepository defines the interface for calendar slot operations.
// Ranges are half-open: [from, to).
type AvailabilityRepository interface {
	// ListRange retrieves one listing's slots ordered by date
	ListRange(ctx context.Context, listingID string, from, to time.Time) ([]entities.AvailabilitySlot, error)

	// ListRangeForListings retrieves slots for many listings in one round trip
	ListRangeForListings(ctx context.Context, listingIDs []string, from, to time.Time) (map[string][]entities.AvailabilitySlot, error)

	// ListingsWithSlots reports which of the listings have at least one
	// persisted row on any date
	ListingsWithSlots(ctx context.Context, listingIDs []string) (map[string]bool, error)

	// Upsert writes slots, replacing any existing row for the same listing and date
	Upsert(ctx context.Context, slots []entities.AvailabilitySlot) error

	// DeleteRange removes a listing's slots and returns how many were deleted
	DeleteRange(ctx context.Context, listingID string, from, to time.Time) (int64, error)
}
