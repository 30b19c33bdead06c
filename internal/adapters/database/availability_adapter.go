package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// AvailabilityAdapter implements AvailabilityRepository
type AvailabilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAvailabilityAdapter creates a new availability adapter
func NewAvailabilityAdapter(client *postgres.Client) repositories.AvailabilityRepository {
	return &AvailabilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.AvailabilityRepository = (*AvailabilityAdapter)(nil)

// ListRange retrieves one listing's slots in [from, to) ordered by date
func (a *AvailabilityAdapter) ListRange(ctx context.Context, listingID string, from, to time.Time) ([]entities.AvailabilitySlot, error) {
	bySlot, err := a.ListRangeForListings(ctx, []string{listingID}, from, to)
	if err != nil {
		return nil, err
	}
	if slots, ok := bySlot[listingID]; ok {
		return slots, nil
	}
	return []entities.AvailabilitySlot{}, nil
}

// ListRangeForListings retrieves slots for many listings in one query
func (a *AvailabilityAdapter) ListRangeForListings(ctx context.Context, listingIDs []string, from, to time.Time) (map[string][]entities.AvailabilitySlot, error) {
	out := make(map[string][]entities.AvailabilitySlot, len(listingIDs))
	if len(listingIDs) == 0 || !from.Before(to) {
		return out, nil
	}

	query, args, err := a.db.Select("listing_id", "date", "is_available", "price_override").
		From("availability_slots").
		Where(
			goqu.Ex{"listing_id": listingIDs},
			goqu.I("date").Gte(entities.DayKey(from)),
			goqu.I("date").Lt(entities.DayKey(to)),
		).
		Order(goqu.I("listing_id").Asc(), goqu.I("date").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list availability", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			slot  entities.AvailabilitySlot
			price sql.NullFloat64
		)
		if err := rows.Scan(&slot.ListingID, &slot.Date, &slot.IsAvailable, &price); err != nil {
			return nil, apperrors.NewInternalError("failed to scan availability slot", err)
		}
		slot.Date = entities.Day(slot.Date)
		if price.Valid {
			p := price.Float64
			slot.PriceOverride = &p
		}
		out[slot.ListingID] = append(out[slot.ListingID], slot)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate availability", err)
	}

	return out, nil
}

// ListingsWithSlots returns the subset of listingIDs that own at least one row
func (a *AvailabilityAdapter) ListingsWithSlots(ctx context.Context, listingIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(listingIDs))
	if len(listingIDs) == 0 {
		return out, nil
	}

	query, args, err := a.db.From("availability_slots").
		Select("listing_id").
		Distinct().
		Where(goqu.Ex{"listing_id": listingIDs}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to check calendars", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan listing id", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate calendars", err)
	}
	return out, nil
}

// Upsert writes slots, replacing any existing row for the same listing and day
func (a *AvailabilityAdapter) Upsert(ctx context.Context, slots []entities.AvailabilitySlot) error {
	if len(slots) == 0 {
		return nil
	}

	rows := make([]interface{}, 0, len(slots))
	for _, s := range slots {
		price := sql.NullFloat64{}
		if s.PriceOverride != nil {
			price = sql.NullFloat64{Float64: *s.PriceOverride, Valid: true}
		}
		rows = append(rows, goqu.Record{
			"listing_id":     s.ListingID,
			"date":           s.Key(),
			"is_available":   s.IsAvailable,
			"price_override": price,
		})
	}

	query, args, err := a.db.Insert("availability_slots").
		Rows(rows...).
		OnConflict(goqu.DoUpdate("listing_id, date", goqu.Record{
			"is_available":   goqu.L("EXCLUDED.is_available"),
			"price_override": goqu.L("EXCLUDED.price_override"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert availability", err)
	}
	return nil
}

// DeleteRange removes a listing's slots in [from, to)
func (a *AvailabilityAdapter) DeleteRange(ctx context.Context, listingID string, from, to time.Time) (int64, error) {
	conds := []exp.Expression{
		goqu.Ex{"listing_id": listingID},
		goqu.I("date").Gte(entities.DayKey(from)),
		goqu.I("date").Lt(entities.DayKey(to)),
	}

	query, args, err := a.db.Delete("availability_slots").Where(conds...).ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete availability", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return deleted, nil
}
