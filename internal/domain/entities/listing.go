package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// ListingKind distinguishes overnight stays from hosted food experiences
type ListingKind string

const (
	ListingKindStay ListingKind = "stay"
	ListingKindFood ListingKind = "food"
)

// Valid reports whether k is a known listing kind
func (k ListingKind) Valid() bool {
	return k == ListingKindStay || k == ListingKindFood
}

// ListingStatus is the publication state of a listing
type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "draft"
	ListingStatusPublished ListingStatus = "published"
	ListingStatusArchived  ListingStatus = "archived"
)

// Listing is a stay or a food experience offered by a host.
// Price is per night for stays and per person for food experiences.
type Listing struct {
	ID          string          `json:"id" db:"id"`
	Kind        ListingKind     `json:"kind" db:"kind"`
	Slug        string          `json:"slug" db:"slug"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Price       float64         `json:"price" db:"price"`
	Currency    string          `json:"currency" db:"currency"`
	Status      ListingStatus   `json:"status" db:"status"`
	HostID      string          `json:"host_id" db:"host_id"`
	Address     Address         `json:"address" db:"-"`
	Location    Location        `json:"location" db:"-"`
	Rating      float64         `json:"rating" db:"rating"`
	ReviewCount int             `json:"review_count" db:"review_count"`
	Stay        *StayAttributes `json:"stay,omitempty" db:"-"`
	Food        *FoodAttributes `json:"food,omitempty" db:"-"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`

	// Read-model fields filled in by the application layer
	Images          []*ImageRecord `json:"images,omitempty" db:"-"`
	PrimaryImageURL string         `json:"primary_image_url,omitempty" db:"-"`
	Host            *Profile       `json:"host,omitempty" db:"-"`
	Favorited       bool           `json:"favorited,omitempty" db:"-"`
}

// StayAttributes holds the fields specific to overnight stays
type StayAttributes struct {
	PropertyType string   `json:"property_type" db:"property_type"`
	Bedrooms     int      `json:"bedrooms" db:"bedrooms"`
	Beds         int      `json:"beds" db:"beds"`
	Bathrooms    float64  `json:"bathrooms" db:"bathrooms"`
	MaxGuests    int      `json:"max_guests" db:"max_guests"`
	Amenities    []string `json:"amenities" db:"amenities"`
}

// FoodAttributes holds the fields specific to food experiences
type FoodAttributes struct {
	CuisineType     string `json:"cuisine_type" db:"cuisine_type"`
	MenuDescription string `json:"menu_description" db:"menu_description"`
	DurationMinutes int    `json:"duration_minutes" db:"duration_minutes"`
	Language        string `json:"language" db:"language"`
	MaxGuests       int    `json:"max_guests" db:"max_guests"`
}

// Address represents a physical address
type Address struct {
	Street  string `json:"street" db:"street"`
	City    string `json:"city" db:"city"`
	State   string `json:"state" db:"state"`
	ZipCode string `json:"zip_code" db:"zip_code"`
	Country string `json:"country" db:"country"`
}

// Location represents geographical coordinates
type Location struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// MaxGuests returns the guest capacity regardless of listing kind
func (l *Listing) MaxGuests() int {
	switch {
	case l.Stay != nil:
		return l.Stay.MaxGuests
	case l.Food != nil:
		return l.Food.MaxGuests
	}
	return 0
}

// Bedrooms returns the bedroom count, zero for food experiences
func (l *Listing) Bedrooms() int {
	if l.Stay == nil {
		return 0
	}
	return l.Stay.Bedrooms
}

// PropertyType returns the stay property type, empty for food experiences
func (l *Listing) PropertyType() string {
	if l.Stay == nil {
		return ""
	}
	return l.Stay.PropertyType
}

// CuisineType returns the cuisine of a food experience, empty for stays
func (l *Listing) CuisineType() string {
	if l.Food == nil {
		return ""
	}
	return l.Food.CuisineType
}

// IsPublished reports whether the listing is visible in public search
func (l *Listing) IsPublished() bool {
	return l.Status == ListingStatusPublished
}

// OwnedBy reports whether userID is the listing's host
func (l *Listing) OwnedBy(userID string) bool {
	return userID != "" && l.HostID == userID
}

// GenerateSlug derives a URL slug from the title and a short id suffix
func (l *Listing) GenerateSlug() {
	base := slug.Make(l.Title)
	suffix := l.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if base == "" {
		l.Slug = suffix
		return
	}
	l.Slug = base + "-" + suffix
}

// Transition moves the listing to the target status if the lifecycle allows it
func (l *Listing) Transition(to ListingStatus) error {
	if l.Status == to {
		return nil
	}
	allowed := map[ListingStatus][]ListingStatus{
		ListingStatusDraft:     {ListingStatusPublished, ListingStatusArchived},
		ListingStatusPublished: {ListingStatusDraft, ListingStatusArchived},
		ListingStatusArchived:  {ListingStatusPublished, ListingStatusDraft},
	}
	for _, next := range allowed[l.Status] {
		if next == to {
			l.Status = to
			return nil
		}
	}
	return fmt.Errorf("cannot move listing from %s to %s", l.Status, to)
}

// ReadyToPublish returns the reasons a listing cannot be published yet
func (l *Listing) ReadyToPublish() []string {
	var problems []string
	if strings.TrimSpace(l.Title) == "" {
		problems = append(problems, "title is required")
	}
	if l.Price <= 0 {
		problems = append(problems, "price must be greater than zero")
	}
	if l.MaxGuests() <= 0 {
		problems = append(problems, "max guests must be greater than zero")
	}
	if l.Kind == ListingKindStay && l.Stay == nil {
		problems = append(problems, "stay attributes are required")
	}
	if l.Kind == ListingKindFood && (l.Food == nil || l.Food.CuisineType == "") {
		problems = append(problems, "cuisine type is required")
	}
	return problems
}
