package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

const (
	defaultThreadPageSize = 50
	maxThreadPageSize     = 200
)

// MessageInput is one message typed by a guest or host
type MessageInput struct {
	Body string `json:"body" validate:"required,max=4000"`
}

// MessageService carries guest and host conversations about a listing
type MessageService struct {
	messages repositories.MessageRepository
	listings repositories.ListingRepository
	now      func() time.Time
}

// NewMessageService creates a new message service
func NewMessageService(messages repositories.MessageRepository, listings repositories.ListingRepository) *MessageService {
	return &MessageService{
		messages: messages,
		listings: listings,
		now:      time.Now,
	}
}

// ContactHost opens (or reuses) the guest's thread about a published listing
// and appends the first message
func (s *MessageService) ContactHost(ctx context.Context, session *entities.Session, listingID string, input MessageInput) (*entities.Conversation, *entities.Message, error) {
	if session == nil {
		return nil, nil, apperrors.NewUnauthorizedError("sign in to message hosts")
	}
	body, err := messageBody(input)
	if err != nil {
		return nil, nil, err
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, nil, err
	}
	if !listing.IsPublished() {
		return nil, nil, apperrors.NewNotFoundError("listing not found")
	}
	if listing.OwnedBy(session.UserID) {
		return nil, nil, apperrors.NewValidationError("hosts cannot message themselves")
	}

	conversation, err := s.messages.GetOrCreateConversation(ctx, listing.ID, session.UserID, listing.HostID)
	if err != nil {
		return nil, nil, err
	}

	message, err := s.append(ctx, conversation, session.UserID, body)
	if err != nil {
		return nil, nil, err
	}
	return conversation, message, nil
}

// Send appends a message to a thread the signed-in user takes part in
func (s *MessageService) Send(ctx context.Context, session *entities.Session, conversationID string, input MessageInput) (*entities.Message, error) {
	body, err := messageBody(input)
	if err != nil {
		return nil, err
	}

	conversation, err := s.participantOf(ctx, session, conversationID)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, conversation, session.UserID, body)
}

// Inbox returns the user's conversations, most recent first, with unread counts
func (s *MessageService) Inbox(ctx context.Context, session *entities.Session) ([]*entities.Conversation, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	conversations, err := s.messages.ListConversations(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if conversations == nil {
		conversations = []*entities.Conversation{}
	}
	return conversations, nil
}

// Thread returns a page of a conversation, oldest first
func (s *MessageService) Thread(ctx context.Context, session *entities.Session, conversationID string, page, perPage int) ([]*entities.Message, error) {
	conversation, err := s.participantOf(ctx, session, conversationID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultThreadPageSize
	}
	if perPage > maxThreadPageSize {
		perPage = maxThreadPageSize
	}

	messages, err := s.messages.ListMessages(ctx, conversation.ID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*entities.Message{}
	}
	return messages, nil
}

// MarkRead marks the counterpart's messages in a thread as read
func (s *MessageService) MarkRead(ctx context.Context, session *entities.Session, conversationID string) (int64, error) {
	conversation, err := s.participantOf(ctx, session, conversationID)
	if err != nil {
		return 0, err
	}
	return s.messages.MarkRead(ctx, conversation.ID, session.UserID)
}

func (s *MessageService) append(ctx context.Context, conversation *entities.Conversation, senderID, body string) (*entities.Message, error) {
	message := &entities.Message{
		ID:             uuid.New().String(),
		ConversationID: conversation.ID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.messages.CreateMessage(ctx, message); err != nil {
		return nil, err
	}

	conversation.LastMessage = body
	conversation.LastMessageAt = message.CreatedAt

	observability.LoggerFromContext(ctx).Debug().
		Str("conversation_id", conversation.ID).
		Str("sender_id", senderID).
		Msg("message sent")
	return message, nil
}

// participantOf loads a conversation and hides it from non-participants
func (s *MessageService) participantOf(ctx context.Context, session *entities.Session, conversationID string) (*entities.Conversation, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	conversation, err := s.messages.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(session.UserID) {
		return nil, apperrors.NewNotFoundError("conversation not found")
	}
	return conversation, nil
}

func messageBody(input MessageInput) (string, error) {
	input.Body = strings.TrimSpace(input.Body)
	if err := validateInput(input); err != nil {
		return "", err
	}
	return input.Body, nil
}
