package services

import (
	"time"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// DefaultWeekendPremium is the multiplier applied to Saturday and Sunday nights of a synthesized calendar
const DefaultWeekendPremium = 1.25

// SlotIndex looks up a listing's slots by calendar day
type SlotIndex map[string]entities.AvailabilitySlot

// IndexSlots keys slots by day; a later slot for the same day replaces an earlier one
func IndexSlots(slots []entities.AvailabilitySlot) SlotIndex {
	idx := make(SlotIndex, len(slots))
	for _, s := range slots {
		idx[s.Key()] = s
	}
	return idx
}

// IsBookable reports whether a slot exists for day and is marked available
func (idx SlotIndex) IsBookable(day time.Time) bool {
	slot, ok := idx[entities.DayKey(day)]
	return ok && slot.IsAvailable
}

// NightlyPrice returns the override for day if present, otherwise base.
// The second result is false when the night cannot be booked.
func (idx SlotIndex) NightlyPrice(day time.Time, base float64) (float64, bool) {
	slot, ok := idx[entities.DayKey(day)]
	if !ok || !slot.IsAvailable {
		return 0, false
	}
	if slot.PriceOverride != nil {
		return *slot.PriceOverride, true
	}
	return base, true
}

// AnyBookable reports whether at least one day in [from, to) is bookable
func (idx SlotIndex) AnyBookable(from, to time.Time) bool {
	for d := entities.Day(from); d.Before(entities.Day(to)); d = d.AddDate(0, 0, 1) {
		if idx.IsBookable(d) {
			return true
		}
	}
	return false
}

// CountBookable counts bookable days in [from, to), stopping once limit is reached
func (idx SlotIndex) CountBookable(from, to time.Time, limit int) int {
	count := 0
	for d := entities.Day(from); d.Before(entities.Day(to)); d = d.AddDate(0, 0, 1) {
		if idx.IsBookable(d) {
			count++
			if limit > 0 && count >= limit {
				return count
			}
		}
	}
	return count
}

// IsBookable reports whether day can be booked given a listing's slots
func IsBookable(slots []entities.AvailabilitySlot, day time.Time) bool {
	return IndexSlots(slots).IsBookable(day)
}

// QuoteStay prices the nights of [start, end). The stay is bookable only when
// every night is bookable; an empty or inverted range is never bookable.
func QuoteStay(idx SlotIndex, start, end time.Time, base float64) entities.Quote {
	start, end = entities.Day(start), entities.Day(end)
	quote := entities.Quote{
		Start: entities.DayKey(start),
		End:   entities.DayKey(end),
	}
	if !start.Before(end) {
		return quote
	}

	var total float64
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		quote.Nights++
		price, ok := idx.NightlyPrice(d, base)
		if !ok {
			quote.Unavailable = append(quote.Unavailable, entities.DayKey(d))
			continue
		}
		total += price
		quote.Breakdown = append(quote.Breakdown, entities.NightRate{Date: entities.DayKey(d), Price: price})
	}

	if len(quote.Unavailable) > 0 {
		quote.Breakdown = nil
		return quote
	}

	quote.Bookable = true
	quote.Total = total
	return quote
}

// IsWeekend reports whether day falls on Saturday or Sunday
func IsWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// SynthesizeSlots generates an all-available calendar of days starting at from.
// Weekend nights are priced at base times premium, weekdays carry no override.
func SynthesizeSlots(listingID string, base, premium float64, from time.Time, days int) []entities.AvailabilitySlot {
	if days <= 0 {
		return nil
	}
	if premium <= 0 {
		premium = DefaultWeekendPremium
	}

	slots := make([]entities.AvailabilitySlot, 0, days)
	start := entities.Day(from)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		slot := entities.AvailabilitySlot{
			ListingID:   listingID,
			Date:        d,
			IsAvailable: true,
			Synthesized: true,
		}
		if IsWeekend(d) {
			price := base * premium
			slot.PriceOverride = &price
		}
		slots = append(slots, slot)
	}
	return slots
}
