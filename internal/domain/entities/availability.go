package entities

import (
	"time"
)

// DayLayout is the wire and storage format for calendar days
const DayLayout = "2006-01-02"

// AvailabilitySlot is one calendar day of a listing
type AvailabilitySlot struct {
	ListingID     string    `json:"listing_id" db:"listing_id"`
	Date          time.Time `json:"date" db:"date"`
	IsAvailable   bool      `json:"is_available" db:"is_available"`
	PriceOverride *float64  `json:"price_override,omitempty" db:"price_override"`
	// Synthesized marks slots generated by the calendar fallback rather than stored
	Synthesized bool `json:"synthesized,omitempty" db:"-"`
}

// Key returns the calendar day of the slot as YYYY-MM-DD
func (s AvailabilitySlot) Key() string {
	return DayKey(s.Date)
}

// Day truncates t to midnight UTC of its calendar date in t's own location
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayKey formats t's calendar date as YYYY-MM-DD
func DayKey(t time.Time) string {
	return Day(t).Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD string into a UTC midnight time
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, s, time.UTC)
}

// Quote is the result of pricing a stay over a half-open date range
type Quote struct {
	ListingID string      `json:"listing_id"`
	Start     string      `json:"start"`
	End       string      `json:"end"`
	Nights    int         `json:"nights"`
	Bookable  bool        `json:"bookable"`
	Total     float64     `json:"total"`
	Currency  string      `json:"currency,omitempty"`
	Breakdown []NightRate `json:"breakdown,omitempty"`
	// Unavailable lists the nights that blocked the booking
	Unavailable []string `json:"unavailable,omitempty"`
}

// NightRate is the price of a single night in a quote
type NightRate struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}
