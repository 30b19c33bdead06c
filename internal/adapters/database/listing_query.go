package database

import (
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/query"
)

// listingColumns maps query fields to listings table columns
var listingColumns = map[query.Field]string{
	query.FieldID:           "id",
	query.FieldKind:         "kind",
	query.FieldStatus:       "status",
	query.FieldHostID:       "host_id",
	query.FieldTitle:        "title",
	query.FieldCuisine:      "cuisine_type",
	query.FieldPropertyType: "property_type",
	query.FieldZipCode:      "zip_code",
	query.FieldBedrooms:     "bedrooms",
	query.FieldMaxGuests:    "max_guests",
	query.FieldPrice:        "price",
	query.FieldRating:       "rating",
	query.FieldCreatedAt:    "created_at",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereFor translates descriptor predicates into goqu expressions
func whereFor(d query.Descriptor) ([]exp.Expression, error) {
	exprs := make([]exp.Expression, 0, len(d.Predicates))
	for _, p := range d.Predicates {
		e, err := predicateExpression(p)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}

func predicateExpression(p query.Predicate) (exp.Expression, error) {
	if p.Op == query.OpOr {
		children := make([]exp.Expression, 0, len(p.Any))
		for _, child := range p.Any {
			e, err := predicateExpression(child)
			if err != nil {
				return nil, err
			}
			children = append(children, e)
		}
		return goqu.Or(children...), nil
	}

	col, ok := listingColumns[p.Field]
	if !ok {
		return nil, fmt.Errorf("unsupported listing field %q", p.Field)
	}
	ident := goqu.I(col)

	switch p.Op {
	case query.OpEq:
		return ident.Eq(sqlValue(p.Value)), nil
	case query.OpContains:
		return ident.ILike("%" + likeEscaper.Replace(fmt.Sprint(sqlValue(p.Value))) + "%"), nil
	case query.OpIn:
		return ident.In(p.Values), nil
	case query.OpGte:
		return ident.Gte(sqlValue(p.Value)), nil
	case query.OpLte:
		return ident.Lte(sqlValue(p.Value)), nil
	}
	return nil, fmt.Errorf("unsupported operator %q", p.Op)
}

// orderFor translates order terms; an empty list falls back to the default order
func orderFor(terms []query.OrderTerm) ([]exp.OrderedExpression, error) {
	if len(terms) == 0 {
		terms = query.DefaultOrder
	}
	out := make([]exp.OrderedExpression, 0, len(terms))
	for _, t := range terms {
		col, ok := listingColumns[t.Field]
		if !ok {
			return nil, fmt.Errorf("unsupported sort field %q", t.Field)
		}
		if t.Desc {
			out = append(out, goqu.I(col).Desc())
		} else {
			out = append(out, goqu.I(col).Asc())
		}
	}
	return out, nil
}

func sqlValue(v any) any {
	switch t := v.(type) {
	case entities.ListingKind:
		return string(t)
	case entities.ListingStatus:
		return string(t)
	}
	return v
}
