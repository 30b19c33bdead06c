package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	"github.com/hearthtable/marketplace/internal/query"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

func setupMockDB(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return postgres.NewFromDB(db), mock
}

var listingRowColumns = []string{
	"id", "kind", "slug", "title", "description", "price", "currency", "status", "host_id",
	"street", "city", "state", "zip_code", "country", "latitude", "longitude",
	"rating", "review_count",
	"property_type", "bedrooms", "beds", "bathrooms", "max_guests", "amenities",
	"cuisine_type", "menu_description", "duration_minutes", "language",
	"created_at", "updated_at",
}

func stayRow(rows *sqlmock.Rows, id string) *sqlmock.Rows {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, "stay", "sea-cottage-"+id, "Sea Cottage", "By the water", 120.0, "USD", "published", "host-1",
		"1 Shore Rd", "Brighton", "", "BN1", "UK", 50.8, -0.1,
		4.5, 12,
		"cottage", 2, 3, 1.5, 4, "{wifi,parking}",
		nil, nil, 0, nil,
		now, now,
	)
}

func foodRow(rows *sqlmock.Rows, id string) *sqlmock.Rows {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(
		id, "food", "pasta-night-"+id, "Pasta Night", nil, 45.0, "USD", "published", "host-2",
		nil, "Rome", nil, "00100", "IT", 0.0, 0.0,
		0.0, 0,
		nil, 0, 0, 0.0, 8, "{}",
		"italian", "Three courses", 150, "it",
		now, now,
	)
}

func TestListingAdapter_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("stay populates only stay attributes", func(t *testing.T) {
		client, mock := setupMockDB(t)
		adapter := NewListingAdapter(client)

		mock.ExpectQuery(`SELECT .* FROM "listings" WHERE \("id" = 'l1'\)`).
			WillReturnRows(stayRow(sqlmock.NewRows(listingRowColumns), "l1"))

		listing, err := adapter.GetByID(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, entities.ListingKindStay, listing.Kind)
		require.NotNil(t, listing.Stay)
		assert.Nil(t, listing.Food)
		assert.Equal(t, 2, listing.Stay.Bedrooms)
		assert.Equal(t, []string{"wifi", "parking"}, listing.Stay.Amenities)
		assert.Equal(t, "BN1", listing.Address.ZipCode)
		assert.Equal(t, 4, listing.MaxGuests())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("food populates only food attributes", func(t *testing.T) {
		client, mock := setupMockDB(t)
		adapter := NewListingAdapter(client)

		mock.ExpectQuery(`FROM "listings"`).
			WillReturnRows(foodRow(sqlmock.NewRows(listingRowColumns), "f1"))

		listing, err := adapter.GetByID(ctx, "f1")
		require.NoError(t, err)
		assert.Nil(t, listing.Stay)
		require.NotNil(t, listing.Food)
		assert.Equal(t, "italian", listing.Food.CuisineType)
		assert.Equal(t, 8, listing.MaxGuests())
		assert.Equal(t, "", listing.Description)
	})

	t.Run("missing listing is not found", func(t *testing.T) {
		client, mock := setupMockDB(t)
		adapter := NewListingAdapter(client)

		mock.ExpectQuery(`FROM "listings"`).WillReturnError(sql.ErrNoRows)

		_, err := adapter.GetByID(ctx, "nope")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestListingAdapter_GetByIDsKeepsRequestOrder(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewListingAdapter(client)

	rows := sqlmock.NewRows(listingRowColumns)
	stayRow(rows, "a")
	stayRow(rows, "b")
	mock.ExpectQuery(`WHERE \("id" IN \('b', 'missing', 'a'\)\)`).WillReturnRows(rows)

	listings, err := adapter.GetByIDs(context.Background(), []string{"b", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "b", listings[0].ID)
	assert.Equal(t, "a", listings[1].ID)
}

func TestListingAdapter_Query(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewListingAdapter(client)

	state := entities.FilterState{
		Kind:     entities.ListingKindStay,
		Title:    "cottage",
		Bedrooms: entities.BedroomsFourOrMore,
		Guests:   entities.GuestsThreeFour,
		Sort:     entities.SortPriceAsc,
	}
	d := query.Compose(state).Paginate(2, 10)

	mock.ExpectQuery(regexp.QuoteMeta(`"status" = 'published'`) + `.*` +
		regexp.QuoteMeta(`"title" ILIKE '%cottage%'`) + `.*` +
		regexp.QuoteMeta(`"bedrooms" >= 4`) + `.*` +
		regexp.QuoteMeta(`ORDER BY "price" ASC, "id" ASC LIMIT 10 OFFSET 10`)).
		WillReturnRows(stayRow(sqlmock.NewRows(listingRowColumns), "l1"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "listings"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	listings, total, err := adapter.Query(context.Background(), d)
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingAdapter_QueryWithoutLimitSkipsCount(t *testing.T) {
	client, mock := setupMockDB(t)
	adapter := NewListingAdapter(client)

	rows := sqlmock.NewRows(listingRowColumns)
	stayRow(rows, "a")
	stayRow(rows, "b")
	mock.ExpectQuery(`ORDER BY "created_at" DESC, "id" ASC$`).WillReturnRows(rows)

	listings, total, err := adapter.Query(context.Background(), query.Descriptor{})
	require.NoError(t, err)
	assert.Len(t, listings, 2)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListingAdapter_Create(t *testing.T) {
	listing := &entities.Listing{
		ID: "l1", Kind: entities.ListingKindFood, Slug: "pasta-l1", Title: "Pasta",
		Price: 40, Currency: "USD", Status: entities.ListingStatusDraft, HostID: "h1",
		Food: &entities.FoodAttributes{CuisineType: "italian", MaxGuests: 6},
	}

	t.Run("inserts", func(t *testing.T) {
		client, mock := setupMockDB(t)
		mock.ExpectExec(`INSERT INTO "listings"`).WillReturnResult(sqlmock.NewResult(0, 1))
		require.NoError(t, NewListingAdapter(client).Create(context.Background(), listing))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate slug is a conflict", func(t *testing.T) {
		client, mock := setupMockDB(t)
		mock.ExpectExec(`INSERT INTO "listings"`).WillReturnError(&pq.Error{Code: "23505"})
		err := NewListingAdapter(client).Create(context.Background(), listing)
		assert.Equal(t, apperrors.ErrorTypeConflict, apperrors.TypeOf(err))
	})
}

func TestListingAdapter_UpdateStatusNotFound(t *testing.T) {
	client, mock := setupMockDB(t)
	mock.ExpectExec(`UPDATE "listings" SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewListingAdapter(client).UpdateStatus(context.Background(), "nope", entities.ListingStatusPublished)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestWhereFor(t *testing.T) {
	render := func(d query.Descriptor) string {
		where, err := whereFor(d)
		require.NoError(t, err)
		sqlText, _, err := goqu.Dialect("postgres").From("listings").Where(where...).ToSQL()
		require.NoError(t, err)
		return sqlText
	}

	t.Run("escapes like wildcards", func(t *testing.T) {
		sqlText := render(query.Descriptor{Predicates: []query.Predicate{query.Contains(query.FieldTitle, "50%_off")}})
		assert.Contains(t, sqlText, `ILIKE '%50\%\_off%'`)
	})

	t.Run("in and or", func(t *testing.T) {
		sqlText := render(query.Descriptor{Predicates: []query.Predicate{
			query.In(query.FieldCuisine, "thai", "italian"),
			query.Or(query.Eq(query.FieldBedrooms, 1), query.Gte(query.FieldBedrooms, 4)),
		}})
		assert.Contains(t, sqlText, `"cuisine_type" IN ('thai', 'italian')`)
		assert.Contains(t, sqlText, `(("bedrooms" = 1) OR ("bedrooms" >= 4))`)
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		_, err := whereFor(query.Descriptor{Predicates: []query.Predicate{query.Eq("nope", 1)}})
		assert.Error(t, err)
	})
}
