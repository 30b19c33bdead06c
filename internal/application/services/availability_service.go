package services

import (
	"context"
	"fmt"
	"time"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	"github.com/hearthtable/marketplace/pkg/config"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// maxCalendarDays bounds one calendar read or write
const maxCalendarDays = 366

// SlotInput is one day a host sets on their calendar
type SlotInput struct {
	Date          string   `json:"date" validate:"required,datetime=2006-01-02"`
	IsAvailable   bool     `json:"is_available"`
	PriceOverride *float64 `json:"price_override,omitempty" validate:"omitempty,gt=0"`
}

// SetSlotsInput is a bulk calendar update
type SetSlotsInput struct {
	Slots []SlotInput `json:"slots" validate:"required,min=1,max=366,dive"`
}

// AvailabilityService loads calendars, prices stays and lets hosts edit slots
type AvailabilityService struct {
	listings    repositories.ListingRepository
	slots       repositories.AvailabilityRepository
	cfg         config.AvailabilityConfig
	invalidator *CacheInvalidationService
	now         func() time.Time
}

// NewAvailabilityService creates a new availability service
func NewAvailabilityService(
	listings repositories.ListingRepository,
	slots repositories.AvailabilityRepository,
	cfg config.AvailabilityConfig,
	invalidator *CacheInvalidationService,
) *AvailabilityService {
	return &AvailabilityService{
		listings:    listings,
		slots:       slots,
		cfg:         cfg,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// WithClock replaces the clock, used by tests
func (s *AvailabilityService) WithClock(now func() time.Time) *AvailabilityService {
	s.now = now
	return s
}

// Calendar returns a listing's slots for [from, to). Drafts and archived
// listings are only visible to their host.
func (s *AvailabilityService) Calendar(ctx context.Context, session *entities.Session, listingID string, from, to time.Time) ([]entities.AvailabilitySlot, error) {
	from, to = entities.Day(from), entities.Day(to)
	if err := checkRange(from, to); err != nil {
		return nil, err
	}

	listing, err := s.visibleListing(ctx, session, listingID)
	if err != nil {
		return nil, err
	}

	byListing, err := s.SlotsFor(ctx, []*entities.Listing{listing}, from, to)
	if err != nil {
		return nil, err
	}
	slots := byListing[listing.ID]
	if slots == nil {
		slots = []entities.AvailabilitySlot{}
	}
	return slots, nil
}

// QuoteStay prices the nights of [start, end) for a stay. An empty or inverted
// range is not an error: it yields an unbookable quote with zero nights.
func (s *AvailabilityService) QuoteStay(ctx context.Context, session *entities.Session, listingID string, start, end time.Time) (*entities.Quote, error) {
	ctx, span := observability.StartSpan(ctx, "AvailabilityService.QuoteStay")
	defer span.End()

	start, end = entities.Day(start), entities.Day(end)
	if start.Before(end) {
		if err := checkRange(start, end); err != nil {
			return nil, err
		}
	}

	listing, err := s.visibleListing(ctx, session, listingID)
	if err != nil {
		return nil, err
	}

	var slots []entities.AvailabilitySlot
	if start.Before(end) {
		byListing, err := s.SlotsFor(ctx, []*entities.Listing{listing}, start, end)
		if err != nil {
			return nil, err
		}
		slots = byListing[listing.ID]
	}

	quote := QuoteStay(IndexSlots(slots), start, end, listing.Price)
	quote.ListingID = listing.ID
	quote.Currency = listing.Currency
	return &quote, nil
}

// SlotsFor loads slots of many listings for [from, to) in one query. Only a
// listing with no persisted row on any date gets a synthesized calendar; once a
// host manages a calendar, dates without a row are unavailable.
func (s *AvailabilityService) SlotsFor(ctx context.Context, listings []*entities.Listing, from, to time.Time) (map[string][]entities.AvailabilitySlot, error) {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}

	persisted, err := s.slots.ListRangeForListings(ctx, ids, from, to)
	if err != nil {
		return nil, err
	}
	if persisted == nil {
		persisted = map[string][]entities.AvailabilitySlot{}
	}
	if !s.cfg.SynthesizeMissing {
		return persisted, nil
	}

	synthFrom, synthTo := s.synthesisWindow(from, to)
	days := daysBetween(synthFrom, synthTo)
	if days <= 0 {
		return persisted, nil
	}

	var empty []string
	for _, l := range listings {
		if len(persisted[l.ID]) == 0 {
			empty = append(empty, l.ID)
		}
	}
	if len(empty) == 0 {
		return persisted, nil
	}

	managed, err := s.slots.ListingsWithSlots(ctx, empty)
	if err != nil {
		return nil, err
	}
	for _, l := range listings {
		if len(persisted[l.ID]) > 0 || managed[l.ID] {
			continue
		}
		persisted[l.ID] = SynthesizeSlots(l.ID, l.Price, s.cfg.WeekendPremium, synthFrom, days)
	}
	return persisted, nil
}

// SetSlots upserts the host's calendar rows, one per date
func (s *AvailabilityService) SetSlots(ctx context.Context, session *entities.Session, listingID string, input SetSlotsInput) ([]entities.AvailabilitySlot, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	listing, err := s.ownedListing(ctx, session, listingID)
	if err != nil {
		return nil, err
	}

	byDate := make(map[string]entities.AvailabilitySlot, len(input.Slots))
	order := make([]string, 0, len(input.Slots))
	for _, in := range input.Slots {
		date, err := entities.ParseDay(in.Date)
		if err != nil {
			return nil, apperrors.NewFieldValidationError("invalid slot", map[string]string{"date": "must be a YYYY-MM-DD date"})
		}
		key := entities.DayKey(date)
		if _, seen := byDate[key]; !seen {
			order = append(order, key)
		}
		// The last entry for a date wins, matching the unique (listing, date) row
		byDate[key] = entities.AvailabilitySlot{
			ListingID:     listing.ID,
			Date:          date,
			IsAvailable:   in.IsAvailable,
			PriceOverride: in.PriceOverride,
		}
	}

	slots := make([]entities.AvailabilitySlot, 0, len(order))
	for _, key := range order {
		slots = append(slots, byDate[key])
	}

	if err := s.slots.Upsert(ctx, slots); err != nil {
		return nil, err
	}

	s.invalidateCalendar(ctx, listing.ID)
	observability.LoggerFromContext(ctx).Info().Str("listing_id", listing.ID).Int("slots", len(slots)).Msg("calendar updated")
	return slots, nil
}

// ClearSlots deletes the host's persisted rows for [from, to)
func (s *AvailabilityService) ClearSlots(ctx context.Context, session *entities.Session, listingID string, from, to time.Time) (int64, error) {
	from, to = entities.Day(from), entities.Day(to)
	if err := checkRange(from, to); err != nil {
		return 0, err
	}

	listing, err := s.ownedListing(ctx, session, listingID)
	if err != nil {
		return 0, err
	}

	deleted, err := s.slots.DeleteRange(ctx, listing.ID, from, to)
	if err != nil {
		return 0, err
	}

	s.invalidateCalendar(ctx, listing.ID)
	return deleted, nil
}

// invalidateCalendar drops the listing's cached reads and the browse pages,
// whose availability windows depend on the calendar
func (s *AvailabilityService) invalidateCalendar(ctx context.Context, listingID string) {
	s.invalidator.InvalidateListing(ctx, listingID)
	if err := s.invalidator.InvalidateBrowseCaches(ctx); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("listing_id", listingID).Msg("failed to invalidate browse caches")
	}
}

// synthesisWindow clips [from, to) to [today, today+horizon)
func (s *AvailabilityService) synthesisWindow(from, to time.Time) (time.Time, time.Time) {
	today := entities.Day(s.now())
	horizon := s.cfg.HorizonDays
	if horizon <= 0 {
		horizon = 60
	}
	end := today.AddDate(0, 0, horizon)

	if from.Before(today) {
		from = today
	}
	if to.After(end) {
		to = end
	}
	return from, to
}

func (s *AvailabilityService) visibleListing(ctx context.Context, session *entities.Session, listingID string) (*entities.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsPublished() && !listing.OwnedBy(sessionUserID(session)) {
		return nil, apperrors.NewNotFoundError("listing not found")
	}
	return listing, nil
}

func (s *AvailabilityService) ownedListing(ctx context.Context, session *entities.Session, listingID string) (*entities.Listing, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.OwnedBy(session.UserID) {
		return nil, apperrors.NewForbiddenError("only the host can edit this calendar")
	}
	return listing, nil
}

func checkRange(from, to time.Time) error {
	if !from.Before(to) {
		return apperrors.NewFieldValidationError("invalid date range", map[string]string{
			"to": "must be after from",
		})
	}
	if daysBetween(from, to) > maxCalendarDays {
		return apperrors.NewFieldValidationError("invalid date range", map[string]string{
			"to": fmt.Sprintf("range must not exceed %d days", maxCalendarDays),
		})
	}
	return nil
}

// daysBetween counts calendar days in [from, to)
func daysBetween(from, to time.Time) int {
	if !from.Before(to) {
		return 0
	}
	return int(entities.Day(to).Sub(entities.Day(from)).Hours() / 24)
}

func sessionUserID(session *entities.Session) string {
	if session == nil {
		return ""
	}
	return session.UserID
}
