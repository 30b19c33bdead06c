package entities

import "time"

// Conversation is the thread between a guest and the host of one listing
type Conversation struct {
	ID            string    `json:"id" db:"id"`
	ListingID     string    `json:"listing_id" db:"listing_id"`
	GuestID       string    `json:"guest_id" db:"guest_id"`
	HostID        string    `json:"host_id" db:"host_id"`
	LastMessage   string    `json:"last_message,omitempty" db:"last_message"`
	LastMessageAt time.Time `json:"last_message_at" db:"last_message_at"`
	UnreadCount   int       `json:"unread_count" db:"-"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// HasParticipant reports whether userID is the guest or the host
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.GuestID == userID || c.HostID == userID)
}

// Counterpart returns the other participant's id
func (c *Conversation) Counterpart(userID string) string {
	if c.GuestID == userID {
		return c.HostID
	}
	return c.GuestID
}

// Message is one entry in a conversation
type Message struct {
	ID             string     `json:"id" db:"id"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	SenderID       string     `json:"sender_id" db:"sender_id"`
	Body           string     `json:"body" db:"body"`
	ReadAt         *time.Time `json:"read_at,omitempty" db:"read_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
