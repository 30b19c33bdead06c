package services

import (
	"time"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

const (
	// flexibleHorizonDays is how far ahead the flexible window looks
	flexibleHorizonDays = 30
	// flexibleMinDays is how many bookable days the flexible window needs
	flexibleMinDays = 5
)

// PostFilter applies the bucket and availability rules that need per-listing
// data after the query has returned candidates.
type PostFilter struct {
	now func() time.Time
}

// NewPostFilter creates a post-filter; now defaults to time.Now
func NewPostFilter(now func() time.Time) *PostFilter {
	if now == nil {
		now = time.Now
	}
	return &PostFilter{now: now}
}

// Apply keeps listings passing every rule; slots are keyed by listing id
func (f *PostFilter) Apply(listings []*entities.Listing, slots map[string][]entities.AvailabilitySlot, state entities.FilterState) []*entities.Listing {
	out := make([]*entities.Listing, 0, len(listings))
	for _, l := range listings {
		if l == nil {
			continue
		}
		if f.Keep(l, IndexSlots(slots[l.ID]), state) {
			out = append(out, l)
		}
	}
	return out
}

// Keep reports whether one listing passes the bedroom, guest, window and date-range rules
func (f *PostFilter) Keep(l *entities.Listing, idx SlotIndex, state entities.FilterState) bool {
	if l.Stay != nil && !MatchesBedrooms(state.Bedrooms, l.Bedrooms()) {
		return false
	}
	if !MatchesGuests(state.Guests, l.MaxGuests()) {
		return false
	}
	if !f.matchesWindow(idx, state.Window) {
		return false
	}
	if state.DateRange.Applied {
		if !QuoteStay(idx, state.DateRange.Start, state.DateRange.End, l.Price).Bookable {
			return false
		}
	}
	return true
}

// SlotRange returns the day range whose slots the filter needs, or false if none
func (f *PostFilter) SlotRange(state entities.FilterState) (time.Time, time.Time, bool) {
	if !state.NeedsAvailability() {
		return time.Time{}, time.Time{}, false
	}

	var from, to time.Time
	if state.Window != "" && state.Window != entities.WindowAny {
		from, to = f.WindowRange(state.Window)
	}
	if state.DateRange.Applied {
		start, end := entities.Day(state.DateRange.Start), entities.Day(state.DateRange.End)
		if from.IsZero() || start.Before(from) {
			from = start
		}
		if to.IsZero() || end.After(to) {
			to = end
		}
	}
	return from, to, true
}

// WindowRange returns the half-open day range a relative window covers
func (f *PostFilter) WindowRange(w entities.WindowBucket) (time.Time, time.Time) {
	today := entities.Day(f.now())
	switch w {
	case entities.WindowWeekend:
		saturday := upcomingSaturday(today)
		return saturday, saturday.AddDate(0, 0, 2)
	case entities.WindowWeek:
		return today, today.AddDate(0, 0, 7)
	case entities.WindowMonth, entities.WindowFlexible:
		return today, today.AddDate(0, 0, flexibleHorizonDays)
	}
	return today, today
}

// matchesWindow: weekend, week and month need any bookable day in range;
// flexible needs flexibleMinDays within the next flexibleHorizonDays
func (f *PostFilter) matchesWindow(idx SlotIndex, w entities.WindowBucket) bool {
	switch w {
	case "", entities.WindowAny:
		return true
	case entities.WindowFlexible:
		from, to := f.WindowRange(w)
		return idx.CountBookable(from, to, flexibleMinDays) >= flexibleMinDays
	case entities.WindowWeekend:
		from, to := f.WindowRange(w)
		today := entities.Day(f.now())
		if from.Before(today) {
			from = today
		}
		return idx.AnyBookable(from, to)
	default:
		from, to := f.WindowRange(w)
		return idx.AnyBookable(from, to)
	}
}

// MatchesBedrooms checks a bedroom count against a bucket
func MatchesBedrooms(b entities.BedroomBucket, bedrooms int) bool {
	switch b {
	case entities.BedroomsOne:
		return bedrooms == 1
	case entities.BedroomsTwo:
		return bedrooms == 2
	case entities.BedroomsThree:
		return bedrooms == 3
	case entities.BedroomsFourOrMore:
		return bedrooms >= 4
	}
	return true
}

// MatchesGuests checks a listing's guest capacity against a bucket
func MatchesGuests(g entities.GuestBucket, maxGuests int) bool {
	switch g {
	case entities.GuestsOneTwo:
		return maxGuests >= 1 && maxGuests <= 2
	case entities.GuestsThreeFour:
		return maxGuests >= 3 && maxGuests <= 4
	case entities.GuestsFiveOrMore:
		return maxGuests >= 5
	}
	return true
}

// upcomingSaturday returns the Saturday of the current weekend when today is
// Saturday or Sunday, otherwise the next Saturday
func upcomingSaturday(today time.Time) time.Time {
	switch today.Weekday() {
	case time.Saturday:
		return today
	case time.Sunday:
		return today.AddDate(0, 0, -1)
	}
	return today.AddDate(0, 0, int(time.Saturday-today.Weekday()))
}
