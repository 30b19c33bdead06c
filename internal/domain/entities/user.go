package entities

import (
	"time"
)

// User is an account holder; the same account can book as a guest and host listings
type User struct {
	ID           string            `json:"id" db:"id"`
	Email        string            `json:"email" db:"email"`
	PasswordHash string            `json:"-" db:"password_hash"`
	DisplayName  string            `json:"display_name" db:"display_name"`
	AvatarURL    string            `json:"avatar_url,omitempty" db:"avatar_url"`
	Bio          string            `json:"bio,omitempty" db:"bio"`
	Metadata     map[string]string `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// Profile is the public view of a user
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Profile returns the public view of the user
func (u *User) Profile() *Profile {
	return &Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}
