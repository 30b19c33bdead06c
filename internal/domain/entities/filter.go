package entities

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// BedroomBucket is the bedroom-count choice of the search UI
type BedroomBucket string

const (
	BedroomsAny        BedroomBucket = "any"
	BedroomsOne        BedroomBucket = "1"
	BedroomsTwo        BedroomBucket = "2"
	BedroomsThree      BedroomBucket = "3"
	BedroomsFourOrMore BedroomBucket = "4+"
)

// GuestBucket is the guest-capacity choice of the search UI
type GuestBucket string

const (
	GuestsAny        GuestBucket = "any"
	GuestsOneTwo     GuestBucket = "1-2"
	GuestsThreeFour  GuestBucket = "3-4"
	GuestsFiveOrMore GuestBucket = "5+"
)

// WindowBucket is a relative availability window measured from today
type WindowBucket string

const (
	WindowAny      WindowBucket = "any"
	WindowWeekend  WindowBucket = "weekend"
	WindowWeek     WindowBucket = "week"
	WindowMonth    WindowBucket = "month"
	WindowFlexible WindowBucket = "flexible"
)

// SortKey selects the result ordering; unknown keys fall back to newest first
type SortKey string

const (
	SortDefault   SortKey = ""
	SortPriceAsc  SortKey = "price_asc"
	SortPriceDesc SortKey = "price_desc"
	SortRatingAsc SortKey = "rating_asc"
	SortRatingDsc SortKey = "rating_desc"
)

// DateRange is a half-open [Start, End) stay range; it only filters when Applied
type DateRange struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Applied bool      `json:"applied"`
}

// FilterState is the transient search criteria of one browse request
type FilterState struct {
	Kind          ListingKind   `json:"kind"`
	Title         string        `json:"title,omitempty"`
	Cuisines      []string      `json:"cuisines,omitempty"`
	PropertyTypes []string      `json:"property_types,omitempty"`
	Bedrooms      BedroomBucket `json:"bedrooms"`
	Guests        GuestBucket   `json:"guests"`
	Window        WindowBucket  `json:"window"`
	DateRange     DateRange     `json:"date_range"`
	ZipCode       string        `json:"zip_code,omitempty"`
	Sort          SortKey       `json:"sort,omitempty"`
	Page          int           `json:"page"`
	PerPage       int           `json:"per_page"`
}

const (
	defaultPerPage = 24
	maxPerPage     = 100
)

// FilterParseError lists the query parameters that could not be understood
type FilterParseError struct {
	Fields map[string]string
}

func (e *FilterParseError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for k, v := range e.Fields {
		parts = append(parts, k+": "+v)
	}
	return "invalid filter: " + strings.Join(parts, "; ")
}

// ParseFilterState reads the browse query string. Unknown sort keys are kept and
// resolved to the default order later; unknown buckets and bad dates are errors.
func ParseFilterState(kind ListingKind, values url.Values) (FilterState, error) {
	state := FilterState{
		Kind:          kind,
		Title:         strings.TrimSpace(values.Get("q")),
		Cuisines:      splitMulti(values["cuisine"]),
		PropertyTypes: splitMulti(values["property_type"]),
		Bedrooms:      BedroomBucket(orDefault(values.Get("bedrooms"), string(BedroomsAny))),
		Guests:        GuestBucket(orDefault(values.Get("guests"), string(GuestsAny))),
		Window:        WindowBucket(orDefault(values.Get("when"), string(WindowAny))),
		ZipCode:       strings.TrimSpace(values.Get("zip")),
		Sort:          SortKey(values.Get("sort")),
		Page:          1,
		PerPage:       defaultPerPage,
	}

	problems := map[string]string{}

	if !state.Bedrooms.valid() {
		problems["bedrooms"] = "must be one of any, 1, 2, 3, 4+"
	}
	if !state.Guests.valid() {
		problems["guests"] = "must be one of any, 1-2, 3-4, 5+"
	}
	if !state.Window.valid() {
		problems["when"] = "must be one of any, weekend, week, month, flexible"
	}

	checkin, checkout := values.Get("checkin"), values.Get("checkout")
	if checkin != "" || checkout != "" {
		start, errStart := ParseDay(checkin)
		end, errEnd := ParseDay(checkout)
		switch {
		case errStart != nil:
			problems["checkin"] = "must be a YYYY-MM-DD date"
		case errEnd != nil:
			problems["checkout"] = "must be a YYYY-MM-DD date"
		case !end.After(start):
			problems["checkout"] = "must be after checkin"
		default:
			state.DateRange = DateRange{Start: start, End: end, Applied: true}
		}
	}

	if v := values.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			state.Page = n
		} else {
			problems["page"] = "must be a positive integer"
		}
	}
	if v := values.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if n > maxPerPage {
				n = maxPerPage
			}
			state.PerPage = n
		} else {
			problems["per_page"] = "must be a positive integer"
		}
	}

	if len(problems) > 0 {
		return state, &FilterParseError{Fields: problems}
	}
	return state, nil
}

// Values renders the state back into query parameters so it can live in a URL
func (f FilterState) Values() url.Values {
	v := url.Values{}
	if f.Title != "" {
		v.Set("q", f.Title)
	}
	for _, c := range f.Cuisines {
		v.Add("cuisine", c)
	}
	for _, p := range f.PropertyTypes {
		v.Add("property_type", p)
	}
	if f.Bedrooms != "" && f.Bedrooms != BedroomsAny {
		v.Set("bedrooms", string(f.Bedrooms))
	}
	if f.Guests != "" && f.Guests != GuestsAny {
		v.Set("guests", string(f.Guests))
	}
	if f.Window != "" && f.Window != WindowAny {
		v.Set("when", string(f.Window))
	}
	if f.DateRange.Applied {
		v.Set("checkin", DayKey(f.DateRange.Start))
		v.Set("checkout", DayKey(f.DateRange.End))
	}
	if f.ZipCode != "" {
		v.Set("zip", f.ZipCode)
	}
	if f.Sort != SortDefault {
		v.Set("sort", string(f.Sort))
	}
	if f.Page > 1 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PerPage > 0 && f.PerPage != defaultPerPage {
		v.Set("per_page", strconv.Itoa(f.PerPage))
	}
	return v
}

// NeedsAvailability reports whether the post-filter must look at calendar slots
func (f FilterState) NeedsAvailability() bool {
	return f.DateRange.Applied || (f.Window != "" && f.Window != WindowAny)
}

func (b BedroomBucket) valid() bool {
	switch b {
	case BedroomsAny, BedroomsOne, BedroomsTwo, BedroomsThree, BedroomsFourOrMore:
		return true
	}
	return false
}

func (g GuestBucket) valid() bool {
	switch g {
	case GuestsAny, GuestsOneTwo, GuestsThreeFour, GuestsFiveOrMore:
		return true
	}
	return false
}

func (w WindowBucket) valid() bool {
	switch w {
	case WindowAny, WindowWeekend, WindowWeek, WindowMonth, WindowFlexible:
		return true
	}
	return false
}

// splitMulti accepts both repeated parameters and comma-separated values
func splitMulti(raw []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
