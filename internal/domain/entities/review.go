package entities

import "time"

// Review is a guest's rating of a listing; one per user per listing
type Review struct {
	ID        string    `json:"id" db:"id"`
	ListingID string    `json:"listing_id" db:"listing_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	Author    *Profile  `json:"author,omitempty" db:"-"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RatingSummary is the aggregate rating of a listing
type RatingSummary struct {
	ListingID   string  `json:"listing_id"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
}
