package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestListing_Transition(t *testing.T) {
	l := &Listing{Status: ListingStatusDraft}

	assert.NoError(t, l.Transition(ListingStatusPublished))
	assert.Equal(t, ListingStatusPublished, l.Status)

	assert.NoError(t, l.Transition(ListingStatusPublished), "same status is a no-op")

	assert.NoError(t, l.Transition(ListingStatusArchived))
	assert.NoError(t, l.Transition(ListingStatusDraft))

	l.Status = ListingStatus("deleted")
	assert.Error(t, l.Transition(ListingStatusPublished))
}

func TestListing_ReadyToPublish(t *testing.T) {
	t.Run("complete stay", func(t *testing.T) {
		l := &Listing{Kind: ListingKindStay, Title: "Loft", Price: 100, Stay: &StayAttributes{MaxGuests: 2}}
		assert.Empty(t, l.ReadyToPublish())
	})

	t.Run("food without cuisine", func(t *testing.T) {
		l := &Listing{Kind: ListingKindFood, Title: "Supper", Price: 40, Food: &FoodAttributes{MaxGuests: 6}}
		assert.Contains(t, l.ReadyToPublish(), "cuisine type is required")
	})

	t.Run("missing basics", func(t *testing.T) {
		l := &Listing{Kind: ListingKindStay}
		problems := l.ReadyToPublish()
		assert.Contains(t, problems, "title is required")
		assert.Contains(t, problems, "price must be greater than zero")
		assert.Contains(t, problems, "stay attributes are required")
	})
}

func TestListing_GenerateSlug(t *testing.T) {
	l := &Listing{ID: "0f8fad5b-d9cb-469f-a165-70867728950e", Title: "Sunny Loft in Mission!"}
	l.GenerateSlug()
	assert.Equal(t, "sunny-loft-in-mission-0f8fad5b", l.Slug)

	empty := &Listing{ID: "abc", Title: "!!!"}
	empty.GenerateSlug()
	assert.Equal(t, "abc", empty.Slug)
}

func TestListing_KindAccessors(t *testing.T) {
	stay := &Listing{Stay: &StayAttributes{Bedrooms: 3, MaxGuests: 6, PropertyType: "house"}}
	food := &Listing{Food: &FoodAttributes{CuisineType: "Thai", MaxGuests: 8}}

	assert.Equal(t, 3, stay.Bedrooms())
	assert.Equal(t, 6, stay.MaxGuests())
	assert.Equal(t, "house", stay.PropertyType())
	assert.Equal(t, "", stay.CuisineType())

	assert.Equal(t, 0, food.Bedrooms())
	assert.Equal(t, 8, food.MaxGuests())
	assert.Equal(t, "Thai", food.CuisineType())
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*3600)
	late := time.Date(2025, 1, 1, 23, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Day(late))
	assert.Equal(t, "2025-01-01", DayKey(late))
}
