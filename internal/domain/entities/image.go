package entities

import (
	"io"
	"time"
)

// ImageRecord is a stored photo attached to a listing
type ImageRecord struct {
	ID           string    `json:"id" db:"id"`
	ListingID    string    `json:"listing_id" db:"listing_id"`
	Path         string    `json:"path" db:"path"`
	URL          string    `json:"url" db:"-"`
	DisplayOrder int       `json:"display_order" db:"display_order"`
	IsPrimary    bool      `json:"is_primary" db:"is_primary"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UploadFile is one image submitted for upload
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}
