package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	"github.com/hearthtable/marketplace/internal/query"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// ListingAdapter implements ListingRepository
type ListingAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewListingAdapter creates a new listing adapter
func NewListingAdapter(client *postgres.Client) repositories.ListingRepository {
	return &ListingAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.ListingRepository = (*ListingAdapter)(nil)

var listingSelect = []interface{}{
	"id", "kind", "slug", "title", "description", "price", "currency", "status", "host_id",
	"street", "city", "state", "zip_code", "country", "latitude", "longitude",
	"rating", "review_count",
	"property_type", "bedrooms", "beds", "bathrooms", "max_guests", "amenities",
	"cuisine_type", "menu_description", "duration_minutes", "language",
	"created_at", "updated_at",
}

// Create creates a new listing
func (a *ListingAdapter) Create(ctx context.Context, listing *entities.Listing) error {
	record := listingRecord(listing)
	record["id"] = listing.ID
	record["host_id"] = listing.HostID
	record["rating"] = listing.Rating
	record["review_count"] = listing.ReviewCount
	record["created_at"] = listing.CreatedAt

	query, args, err := a.db.Insert("listings").Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return apperrors.NewConflictError(fmt.Sprintf("listing slug %s already exists", listing.Slug))
		}
		return apperrors.NewInternalError("failed to create listing", err)
	}

	return nil
}

// GetByID retrieves a listing by ID regardless of status
func (a *ListingAdapter) GetByID(ctx context.Context, id string) (*entities.Listing, error) {
	query, args, err := a.db.Select(listingSelect...).
		From("listings").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	listing, err := scanListing(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("listing with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get listing", err)
	}

	return listing, nil
}

// GetByIDs retrieves listings by ID in the order the ids were given
func (a *ListingAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.Listing, error) {
	if len(ids) == 0 {
		return []*entities.Listing{}, nil
	}

	query, args, err := a.db.Select(listingSelect...).
		From("listings").
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	found, err := a.queryListings(ctx, query, args)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*entities.Listing, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}

	ordered := make([]*entities.Listing, 0, len(found))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
		}
	}
	return ordered, nil
}

// Update replaces the host-editable fields of a listing
func (a *ListingAdapter) Update(ctx context.Context, listing *entities.Listing) error {
	listing.UpdatedAt = time.Now()

	query, args, err := a.db.Update("listings").
		Set(listingRecord(listing)).
		Where(goqu.Ex{"id": listing.ID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update listing", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("listing with id %s not found", listing.ID))
	}

	return nil
}

// UpdateStatus moves a listing between lifecycle states
func (a *ListingAdapter) UpdateStatus(ctx context.Context, id string, status entities.ListingStatus) error {
	query, args, err := a.db.Update("listings").
		Set(goqu.Record{
			"status":     string(status),
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update listing status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("listing with id %s not found", id))
	}

	return nil
}

// Query runs a composed descriptor and returns one page plus the unpaged total
func (a *ListingAdapter) Query(ctx context.Context, q query.Descriptor) ([]*entities.Listing, int, error) {
	where, err := whereFor(q)
	if err != nil {
		return nil, 0, apperrors.NewValidationError(err.Error())
	}
	order, err := orderFor(q.Order)
	if err != nil {
		return nil, 0, apperrors.NewValidationError(err.Error())
	}

	ds := a.db.Select(listingSelect...).
		From("listings").
		Where(where...).
		Order(order...)
	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}
	if q.Offset > 0 {
		ds = ds.Offset(uint(q.Offset))
	}

	sqlQuery, args, err := ds.ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build query", err)
	}

	listings, err := a.queryListings(ctx, sqlQuery, args)
	if err != nil {
		return nil, 0, err
	}

	// Without a limit the page is the whole result
	if q.Limit <= 0 {
		return listings, len(listings), nil
	}

	countQuery, countArgs, err := a.db.From("listings").
		Select(goqu.COUNT("*")).
		Where(where...).
		ToSQL()
	if err != nil {
		return nil, 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var total int
	if err := a.client.DB().QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, apperrors.NewInternalError("failed to count listings", err)
	}

	return listings, total, nil
}

// ListByHost retrieves every listing owned by a host, newest first
func (a *ListingAdapter) ListByHost(ctx context.Context, hostID string) ([]*entities.Listing, error) {
	query, args, err := a.db.Select(listingSelect...).
		From("listings").
		Where(goqu.Ex{"host_id": hostID}).
		Order(goqu.I("created_at").Desc(), goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	return a.queryListings(ctx, query, args)
}

func (a *ListingAdapter) queryListings(ctx context.Context, query string, args []interface{}) ([]*entities.Listing, error) {
	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query listings", err)
	}
	defer rows.Close()

	listings := make([]*entities.Listing, 0)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan listing", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate listings", err)
	}

	return listings, nil
}

// listingRecord holds the columns a host may change
func listingRecord(l *entities.Listing) goqu.Record {
	record := goqu.Record{
		"kind":        string(l.Kind),
		"slug":        l.Slug,
		"title":       l.Title,
		"description": nullString(l.Description),
		"price":       l.Price,
		"currency":    l.Currency,
		"status":      string(l.Status),
		"street":      nullString(l.Address.Street),
		"city":        nullString(l.Address.City),
		"state":       nullString(l.Address.State),
		"zip_code":    nullString(l.Address.ZipCode),
		"country":     nullString(l.Address.Country),
		"latitude":    l.Location.Latitude,
		"longitude":   l.Location.Longitude,
		"updated_at":  l.UpdatedAt,

		"property_type":    sql.NullString{},
		"bedrooms":         0,
		"beds":             0,
		"bathrooms":        0.0,
		"amenities":        pq.Array([]string{}),
		"cuisine_type":     sql.NullString{},
		"menu_description": sql.NullString{},
		"duration_minutes": 0,
		"language":         sql.NullString{},
		"max_guests":       l.MaxGuests(),
	}

	if s := l.Stay; s != nil {
		record["property_type"] = nullString(s.PropertyType)
		record["bedrooms"] = s.Bedrooms
		record["beds"] = s.Beds
		record["bathrooms"] = s.Bathrooms
		record["amenities"] = pq.Array(nonNil(s.Amenities))
	}
	if f := l.Food; f != nil {
		record["cuisine_type"] = nullString(f.CuisineType)
		record["menu_description"] = nullString(f.MenuDescription)
		record["duration_minutes"] = f.DurationMinutes
		record["language"] = nullString(f.Language)
	}

	return record
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanListing(row rowScanner) (*entities.Listing, error) {
	l := &entities.Listing{}
	var (
		kind, status                                   string
		description, street, city, state, zip, country sql.NullString
		propertyType, cuisine, menu, language          sql.NullString
		bedrooms, beds, maxGuests, duration            int
		bathrooms                                      float64
		amenities                                      []string
	)

	err := row.Scan(
		&l.ID, &kind, &l.Slug, &l.Title, &description, &l.Price, &l.Currency, &status, &l.HostID,
		&street, &city, &state, &zip, &country, &l.Location.Latitude, &l.Location.Longitude,
		&l.Rating, &l.ReviewCount,
		&propertyType, &bedrooms, &beds, &bathrooms, &maxGuests, pq.Array(&amenities),
		&cuisine, &menu, &duration, &language,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Kind = entities.ListingKind(kind)
	l.Status = entities.ListingStatus(status)
	l.Description = description.String
	l.Address = entities.Address{
		Street:  street.String,
		City:    city.String,
		State:   state.String,
		ZipCode: zip.String,
		Country: country.String,
	}

	// Only the attribute block matching the kind is populated
	switch l.Kind {
	case entities.ListingKindStay:
		l.Stay = &entities.StayAttributes{
			PropertyType: propertyType.String,
			Bedrooms:     bedrooms,
			Beds:         beds,
			Bathrooms:    bathrooms,
			MaxGuests:    maxGuests,
			Amenities:    nonNil(amenities),
		}
	case entities.ListingKindFood:
		l.Food = &entities.FoodAttributes{
			CuisineType:     cuisine.String,
			MenuDescription: menu.String,
			DurationMinutes: duration,
			Language:        language.String,
			MaxGuests:       maxGuests,
		}
	}

	return l, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
