package entities

import "time"

// Favorite records that a user saved a listing; its existence is the favorited state
type Favorite struct {
	UserID    string    `json:"user_id" db:"user_id"`
	ListingID string    `json:"listing_id" db:"listing_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FavoriteState is returned by the toggle operation
type FavoriteState struct {
	ListingID  string `json:"listing_id"`
	Favorited  bool   `json:"favorited"`
	TotalSaves int    `json:"total_saves"`
}
