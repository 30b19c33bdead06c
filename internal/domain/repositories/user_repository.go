package repositories

import (
	"context"

	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create creates a new user; a taken email is a conflict
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.User, error)

	// GetByIDs retrieves users by ID; missing ids are skipped
	GetByIDs(ctx context.Context, ids []string) ([]*entities.User, error)

	// GetByEmail retrieves a user by email, case-insensitively
	GetByEmail(ctx context.Context, email string) (*entities.User, error)

	// Update updates profile fields and metadata
	Update(ctx context.Context, user *entities.User) error
}

// ReviewRepository defines the interface for review operations
type ReviewRepository interface {
	// Upsert creates or replaces the user's review of a listing and
	// recomputes the listing's rating in the same transaction
	Upsert(ctx context.Context, review *entities.Review) (*entities.RatingSummary, error)

	// ListByListing retrieves reviews for a listing, newest first
	ListByListing(ctx context.Context, listingID string, limit, offset int) ([]*entities.Review, error)

	// GetByUserAndListing retrieves the user's review of a listing
	GetByUserAndListing(ctx context.Context, userID, listingID string) (*entities.Review, error)
}

// MessageRepository defines the interface for guest-host messaging
type MessageRepository interface {
	// GetOrCreateConversation returns the single thread for a listing and guest
	GetOrCreateConversation(ctx context.Context, listingID, guestID, hostID string) (*entities.Conversation, error)

	// GetConversation retrieves a conversation by ID
	GetConversation(ctx context.Context, id string) (*entities.Conversation, error)

	// ListConversations retrieves a user's threads with unread counts, most recent first
	ListConversations(ctx context.Context, userID string) ([]*entities.Conversation, error)

	// CreateMessage appends a message and bumps the conversation's last message
	CreateMessage(ctx context.Context, message *entities.Message) error

	// ListMessages retrieves a thread oldest first
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entities.Message, error)

	// MarkRead marks every message not sent by readerID as read
	MarkRead(ctx context.Context, conversationID, readerID string) (int64, error)
}
