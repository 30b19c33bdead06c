package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	tsclient "github.com/hearthtable/marketplace/internal/infrastructure/clients/typesense"
	"github.com/hearthtable/marketplace/internal/query"
)

const (
	// maxPerPage is the largest page Typesense serves
	maxPerPage = 250
	// maxSortFields is how many sort_by terms Typesense accepts
	maxSortFields = 3
)

// TypesenseAdapter implements listing search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements ListingSearchRepository
var _ repositories.ListingSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts a listing document
func (a *TypesenseAdapter) Index(ctx context.Context, listing *entities.Listing) error {
	_, err := a.client.Client().Collection(tsclient.ListingsCollection).Documents().Upsert(ctx, listingDocument(listing))
	if err != nil {
		return fmt.Errorf("failed to index listing: %w", err)
	}
	return nil
}

// Delete removes a listing from the index; a missing document is not an error
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.ListingsCollection).Document(id).Delete(ctx)
	if err != nil {
		var httpErr *typesense.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("failed to delete listing from index: %w", err)
	}
	return nil
}

// Search runs a descriptor against the index. A limit above the engine's page
// size is served by reading consecutive pages.
func (a *TypesenseAdapter) Search(ctx context.Context, q query.Descriptor) ([]*entities.Listing, int, error) {
	documents := a.client.Client().Collection(tsclient.ListingsCollection).Documents()
	return collectPages(q, func(params *api.SearchCollectionParams) (*api.SearchResult, error) {
		result, err := documents.Search(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("failed to search listings: %w", err)
		}
		return result, nil
	})
}

// collectPages reads pages of at most maxPerPage hits until q.Limit listings
// are collected or the index runs out
func collectPages(q query.Descriptor, search func(*api.SearchCollectionParams) (*api.SearchResult, error)) ([]*entities.Listing, int, error) {
	want := q.Limit
	listings := []*entities.Listing{}
	total := 0

	page := q
	for {
		params := searchParams(page)
		result, err := search(params)
		if err != nil {
			return nil, 0, err
		}

		hits := 0
		if result.Hits != nil {
			hits = len(*result.Hits)
			for _, hit := range *result.Hits {
				if hit.Document == nil {
					continue
				}
				if l := documentToListing(*hit.Document); l != nil {
					listings = append(listings, l)
				}
			}
		}
		if result.Found != nil {
			total = *result.Found
		}

		perPage := *params.PerPage
		page.Offset += perPage
		if want <= maxPerPage || hits < perPage || page.Offset >= total || page.Offset-q.Offset >= want {
			break
		}
		page.Limit = maxPerPage
	}

	if want > 0 && len(listings) > want {
		listings = listings[:want]
	}
	if total < len(listings) {
		total = len(listings)
	}
	return listings, total, nil
}

// searchParams turns a descriptor into Typesense search parameters. The title
// predicate becomes a free-text query on the title only; everything else is
// filter_by. Callers needing exact substring matches query the database.
func searchParams(q query.Descriptor) *api.SearchCollectionParams {
	text := "*"
	var filters []string
	for _, p := range q.Predicates {
		if p.Op == query.OpContains && p.Field == query.FieldTitle {
			if v, ok := p.Value.(string); ok && strings.TrimSpace(v) != "" {
				text = strings.TrimSpace(v)
			}
			continue
		}
		if f := filterFor(p); f != "" {
			filters = append(filters, f)
		}
	}

	params := &api.SearchCollectionParams{
		Q:       pointer.String(text),
		QueryBy: pointer.String("title"),
	}
	if len(filters) > 0 {
		params.FilterBy = pointer.String(strings.Join(filters, " && "))
	}
	if sortBy := sortFor(q.Order); sortBy != "" {
		params.SortBy = pointer.String(sortBy)
	}

	perPage := q.Limit
	if perPage <= 0 || perPage > maxPerPage {
		perPage = maxPerPage
	}
	params.PerPage = pointer.Int(perPage)
	params.Page = pointer.Int(q.Offset/perPage + 1)
	return params
}

// filterFor renders one predicate in filter_by syntax; unsupported predicates render empty
func filterFor(p query.Predicate) string {
	switch p.Op {
	case query.OpOr:
		parts := make([]string, 0, len(p.Any))
		for _, child := range p.Any {
			if f := filterFor(child); f != "" {
				parts = append(parts, f)
			}
		}
		if len(parts) == 0 {
			return ""
		}
		return "(" + strings.Join(parts, " || ") + ")"
	case query.OpEq:
		return fmt.Sprintf("%s:=%s", p.Field, filterValue(p.Value))
	case query.OpIn:
		if len(p.Values) == 0 {
			return ""
		}
		values := make([]string, len(p.Values))
		for i, v := range p.Values {
			values[i] = quote(v)
		}
		return fmt.Sprintf("%s:=[%s]", p.Field, strings.Join(values, ","))
	case query.OpGte:
		return fmt.Sprintf("%s:>=%s", p.Field, filterValue(p.Value))
	case query.OpLte:
		return fmt.Sprintf("%s:<=%s", p.Field, filterValue(p.Value))
	}
	return ""
}

func filterValue(v any) string {
	switch t := v.(type) {
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return quote(t)
	case entities.ListingKind:
		return quote(string(t))
	case entities.ListingStatus:
		return quote(string(t))
	}
	return quote(fmt.Sprint(v))
}

// quote wraps a value in backticks so commas and spaces stay literal
func quote(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "") + "`"
}

// sortFor renders order terms; id is not a sortable field in the index
func sortFor(order []query.OrderTerm) string {
	var parts []string
	for _, term := range order {
		if term.Field == query.FieldID {
			continue
		}
		dir := "asc"
		if term.Desc {
			dir = "desc"
		}
		parts = append(parts, fmt.Sprintf("%s:%s", term.Field, dir))
		if len(parts) == maxSortFields {
			break
		}
	}
	return strings.Join(parts, ",")
}

// listingDocument flattens a listing into the indexed document shape
func listingDocument(l *entities.Listing) map[string]interface{} {
	doc := map[string]interface{}{
		"id":            l.ID,
		"kind":          string(l.Kind),
		"status":        string(l.Status),
		"host_id":       l.HostID,
		"title":         l.Title,
		"description":   l.Description,
		"cuisine_type":  l.CuisineType(),
		"property_type": l.PropertyType(),
		"zip_code":      l.Address.ZipCode,
		"city":          l.Address.City,
		"bedrooms":      l.Bedrooms(),
		"max_guests":    l.MaxGuests(),
		"price":         l.Price,
		"rating":        l.Rating,
		"review_count":  l.ReviewCount,
		"created_at":    l.CreatedAt.Unix(),
	}
	if l.Location.Latitude != 0 || l.Location.Longitude != 0 {
		doc["location"] = []float64{l.Location.Latitude, l.Location.Longitude}
	}
	if tags := buildListingTags(l); len(tags) > 0 {
		doc["tags"] = tags
	}
	return doc
}

// documentToListing normalizes a search hit into a partial listing
func documentToListing(doc map[string]interface{}) *entities.Listing {
	id, _ := doc["id"].(string)
	if id == "" {
		return nil
	}

	l := &entities.Listing{
		ID:          id,
		Kind:        entities.ListingKind(stringField(doc, "kind")),
		Status:      entities.ListingStatus(stringField(doc, "status")),
		HostID:      stringField(doc, "host_id"),
		Title:       stringField(doc, "title"),
		Description: stringField(doc, "description"),
		Price:       numberField(doc, "price"),
		Rating:      numberField(doc, "rating"),
		ReviewCount: int(numberField(doc, "review_count")),
		Address: entities.Address{
			City:    stringField(doc, "city"),
			ZipCode: stringField(doc, "zip_code"),
		},
	}

	if loc, ok := doc["location"].([]interface{}); ok && len(loc) == 2 {
		lat, _ := loc[0].(float64)
		lon, _ := loc[1].(float64)
		l.Location = entities.Location{Latitude: lat, Longitude: lon}
	}

	switch l.Kind {
	case entities.ListingKindStay:
		l.Stay = &entities.StayAttributes{
			PropertyType: stringField(doc, "property_type"),
			Bedrooms:     int(numberField(doc, "bedrooms")),
			MaxGuests:    int(numberField(doc, "max_guests")),
		}
	case entities.ListingKindFood:
		l.Food = &entities.FoodAttributes{
			CuisineType: stringField(doc, "cuisine_type"),
			MaxGuests:   int(numberField(doc, "max_guests")),
		}
	}
	return l
}

func stringField(doc map[string]interface{}, key string) string {
	v, _ := doc[key].(string)
	return v
}

// numberField reads a JSON number, which decodes as float64
func numberField(doc map[string]interface{}, key string) float64 {
	switch v := doc[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
