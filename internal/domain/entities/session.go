package entities

import (
	"time"

	"github.com/google/uuid"
)

// Session is the authenticated principal attached to a request
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair is returned by sign-in and refresh
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResult bundles the tokens with the signed-in user
type AuthResult struct {
	Tokens *TokenPair `json:"tokens"`
	User   *User      `json:"user"`
}

// SessionEventType names a change in a user's authentication state
type SessionEventType string

const (
	SessionEventSignedIn       SessionEventType = "signed_in"
	SessionEventSignedOut      SessionEventType = "signed_out"
	SessionEventTokenRefreshed SessionEventType = "token_refreshed"
	SessionEventUserUpdated    SessionEventType = "user_updated"
)

// SessionEvent is pushed to every open auth-state stream of a user
type SessionEvent struct {
	ID        string           `json:"id"`
	Type      SessionEventType `json:"type"`
	UserID    string           `json:"user_id"`
	User      *User            `json:"user,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewSessionEvent creates an event stamped with a fresh id and the current time
func NewSessionEvent(eventType SessionEventType, userID string, user *User) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		UserID:    userID,
		User:      user,
		Timestamp: time.Now().UTC(),
	}
}
