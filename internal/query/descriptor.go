package query

import (
	"strings"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// Field names a listing attribute the query layer can filter or sort on
type Field string

const (
	FieldID           Field = "id"
	FieldKind         Field = "kind"
	FieldStatus       Field = "status"
	FieldHostID       Field = "host_id"
	FieldTitle        Field = "title"
	FieldCuisine      Field = "cuisine_type"
	FieldPropertyType Field = "property_type"
	FieldZipCode      Field = "zip_code"
	FieldBedrooms     Field = "bedrooms"
	FieldMaxGuests    Field = "max_guests"
	FieldPrice        Field = "price"
	FieldRating       Field = "rating"
	FieldCreatedAt    Field = "created_at"
)

// Op is a predicate operator
type Op string

const (
	// OpEq is exact equality
	OpEq Op = "eq"
	// OpContains is a case-insensitive substring match
	OpContains Op = "contains"
	// OpIn matches any value in Values
	OpIn Op = "in"
	// OpGte and OpLte compare numerically
	OpGte Op = "gte"
	OpLte Op = "lte"
	// OpOr is true when any predicate in Any is true
	OpOr Op = "or"
)

// Predicate is one condition of a Descriptor
type Predicate struct {
	Field  Field
	Op     Op
	Value  any
	Values []string
	Any    []Predicate
}

// OrderTerm is one sort key
type OrderTerm struct {
	Field Field
	Desc  bool
}

// Descriptor is a backend-neutral listing query: predicates are ANDed
type Descriptor struct {
	Predicates []Predicate
	Order      []OrderTerm
	Limit      int
	Offset     int
}

// Eq builds an equality predicate
func Eq(field Field, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Contains builds a case-insensitive substring predicate
func Contains(field Field, value string) Predicate {
	return Predicate{Field: field, Op: OpContains, Value: value}
}

// In builds a set-membership predicate
func In(field Field, values ...string) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// Gte builds a numeric lower bound
func Gte(field Field, value int) Predicate {
	return Predicate{Field: field, Op: OpGte, Value: value}
}

// Lte builds a numeric upper bound
func Lte(field Field, value int) Predicate {
	return Predicate{Field: field, Op: OpLte, Value: value}
}

// Or builds a disjunction
func Or(preds ...Predicate) Predicate {
	return Predicate{Op: OpOr, Any: preds}
}

// Find returns the first top-level predicate on field, if any
func (d Descriptor) Find(field Field) (Predicate, bool) {
	for _, p := range d.Predicates {
		if p.Field == field {
			return p, true
		}
	}
	return Predicate{}, false
}

// HasSubstring reports whether any predicate, nested ones included, is a
// substring match. Token-based search engines cannot answer those exactly.
func (d Descriptor) HasSubstring() bool {
	return anySubstring(d.Predicates)
}

func anySubstring(preds []Predicate) bool {
	for _, p := range preds {
		if p.Op == OpContains || (p.Op == OpOr && anySubstring(p.Any)) {
			return true
		}
	}
	return false
}

// Matches evaluates the predicates against an already loaded listing
func (d Descriptor) Matches(l *entities.Listing) bool {
	if l == nil {
		return false
	}
	for _, p := range d.Predicates {
		if !p.matches(l) {
			return false
		}
	}
	return true
}

func (p Predicate) matches(l *entities.Listing) bool {
	switch p.Op {
	case OpOr:
		for _, child := range p.Any {
			if child.matches(l) {
				return true
			}
		}
		return len(p.Any) == 0
	case OpEq:
		if n, ok := fieldNumber(l, p.Field); ok {
			return n == toFloat(p.Value)
		}
		return fieldString(l, p.Field) == toString(p.Value)
	case OpContains:
		return strings.Contains(
			strings.ToLower(fieldString(l, p.Field)),
			strings.ToLower(toString(p.Value)),
		)
	case OpIn:
		actual := fieldString(l, p.Field)
		for _, v := range p.Values {
			if v == actual {
				return true
			}
		}
		return false
	case OpGte:
		n, ok := fieldNumber(l, p.Field)
		return ok && n >= toFloat(p.Value)
	case OpLte:
		n, ok := fieldNumber(l, p.Field)
		return ok && n <= toFloat(p.Value)
	}
	return false
}

func fieldString(l *entities.Listing, f Field) string {
	switch f {
	case FieldID:
		return l.ID
	case FieldKind:
		return string(l.Kind)
	case FieldStatus:
		return string(l.Status)
	case FieldHostID:
		return l.HostID
	case FieldTitle:
		return l.Title
	case FieldCuisine:
		return l.CuisineType()
	case FieldPropertyType:
		return l.PropertyType()
	case FieldZipCode:
		return l.Address.ZipCode
	}
	return ""
}

func fieldNumber(l *entities.Listing, f Field) (float64, bool) {
	switch f {
	case FieldBedrooms:
		return float64(l.Bedrooms()), true
	case FieldMaxGuests:
		return float64(l.MaxGuests()), true
	case FieldPrice:
		return l.Price, true
	case FieldRating:
		return l.Rating, true
	}
	return 0, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case entities.ListingKind:
		return string(t)
	case entities.ListingStatus:
		return string(t)
	}
	return ""
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case float64:
		return t
	}
	return 0
}
