// Package query turns browse filters into backend-neutral listing queries.
package query

import (
	"strings"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// DefaultOrder is used when no recognised sort key is given: newest first, id breaks ties
var DefaultOrder = []OrderTerm{
	{Field: FieldCreatedAt, Desc: true},
	{Field: FieldID},
}

// Compose builds the public browse query for a filter state. Only published
// listings of the requested kind are returned. Pagination is left to the caller.
func Compose(state entities.FilterState) Descriptor {
	d := Descriptor{
		Predicates: []Predicate{
			Eq(FieldStatus, entities.ListingStatusPublished),
		},
		Order: OrderFor(state.Sort),
	}

	if state.Kind != "" {
		d.Predicates = append(d.Predicates, Eq(FieldKind, state.Kind))
	}

	if title := strings.TrimSpace(state.Title); title != "" {
		d.Predicates = append(d.Predicates, Contains(FieldTitle, title))
	}

	if state.Kind != entities.ListingKindStay && len(state.Cuisines) > 0 {
		d.Predicates = append(d.Predicates, In(FieldCuisine, state.Cuisines...))
	}

	if state.Kind != entities.ListingKindFood {
		if len(state.PropertyTypes) > 0 {
			d.Predicates = append(d.Predicates, In(FieldPropertyType, state.PropertyTypes...))
		}
		d.Predicates = append(d.Predicates, bedroomPredicates(state.Bedrooms)...)
	}

	if zip := strings.TrimSpace(state.ZipCode); zip != "" {
		d.Predicates = append(d.Predicates, Eq(FieldZipCode, zip))
	}

	d.Predicates = append(d.Predicates, guestPredicates(state.Guests)...)

	return d
}

// OrderFor maps a sort key to order terms; unknown keys get DefaultOrder
func OrderFor(key entities.SortKey) []OrderTerm {
	switch key {
	case entities.SortPriceAsc:
		return []OrderTerm{{Field: FieldPrice}, {Field: FieldID}}
	case entities.SortPriceDesc:
		return []OrderTerm{{Field: FieldPrice, Desc: true}, {Field: FieldID}}
	case entities.SortRatingAsc:
		return []OrderTerm{{Field: FieldRating}, {Field: FieldID}}
	case entities.SortRatingDsc:
		return []OrderTerm{{Field: FieldRating, Desc: true}, {Field: FieldID}}
	}
	return DefaultOrder
}

// Paginate sets Limit and Offset from a 1-based page number
func (d Descriptor) Paginate(page, perPage int) Descriptor {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		return d
	}
	d.Limit = perPage
	d.Offset = (page - 1) * perPage
	return d
}

func bedroomPredicates(b entities.BedroomBucket) []Predicate {
	switch b {
	case entities.BedroomsOne:
		return []Predicate{Eq(FieldBedrooms, 1)}
	case entities.BedroomsTwo:
		return []Predicate{Eq(FieldBedrooms, 2)}
	case entities.BedroomsThree:
		return []Predicate{Eq(FieldBedrooms, 3)}
	case entities.BedroomsFourOrMore:
		return []Predicate{Gte(FieldBedrooms, 4)}
	}
	return nil
}

func guestPredicates(g entities.GuestBucket) []Predicate {
	switch g {
	case entities.GuestsOneTwo:
		return []Predicate{Gte(FieldMaxGuests, 1), Lte(FieldMaxGuests, 2)}
	case entities.GuestsThreeFour:
		return []Predicate{Gte(FieldMaxGuests, 3), Lte(FieldMaxGuests, 4)}
	case entities.GuestsFiveOrMore:
		return []Predicate{Gte(FieldMaxGuests, 5)}
	}
	return nil
}
