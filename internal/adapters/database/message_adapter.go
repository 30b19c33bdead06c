package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/clients/postgres"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// MessageAdapter implements MessageRepository
type MessageAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewMessageAdapter creates a new message adapter
func NewMessageAdapter(client *postgres.Client) repositories.MessageRepository {
	return &MessageAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.MessageRepository = (*MessageAdapter)(nil)

// The no-op update makes RETURNING yield the existing row on conflict
const getOrCreateConversationQuery = `
	INSERT INTO conversations (id, listing_id, guest_id, host_id, last_message_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (listing_id, guest_id) DO UPDATE SET listing_id = EXCLUDED.listing_id
	RETURNING id, listing_id, guest_id, host_id, last_message, last_message_at, created_at
`

const listConversationsQuery = `
	SELECT c.id, c.listing_id, c.guest_id, c.host_id, c.last_message, c.last_message_at, c.created_at,
		(SELECT COUNT(*) FROM messages m
			WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.read_at IS NULL) AS unread_count
	FROM conversations c
	WHERE c.guest_id = $1 OR c.host_id = $1
	ORDER BY c.last_message_at DESC, c.id ASC
`

var conversationSelect = []interface{}{"id", "listing_id", "guest_id", "host_id", "last_message", "last_message_at", "created_at"}

// GetOrCreateConversation returns the single thread for a listing and guest
func (a *MessageAdapter) GetOrCreateConversation(ctx context.Context, listingID, guestID, hostID string) (*entities.Conversation, error) {
	row := a.client.DB().QueryRowContext(ctx, getOrCreateConversationQuery,
		uuid.New().String(), listingID, guestID, hostID, time.Now(),
	)
	conv, err := scanConversation(row)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to open conversation", err)
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID
func (a *MessageAdapter) GetConversation(ctx context.Context, id string) (*entities.Conversation, error) {
	query, args, err := a.db.Select(conversationSelect...).
		From("conversations").
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	conv, err := scanConversation(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("conversation with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get conversation", err)
	}
	return conv, nil
}

// ListConversations retrieves a user's threads with unread counts
func (a *MessageAdapter) ListConversations(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	rows, err := a.client.DB().QueryContext(ctx, listConversationsQuery, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list conversations", err)
	}
	defer rows.Close()

	conversations := make([]*entities.Conversation, 0)
	for rows.Next() {
		c := &entities.Conversation{}
		var last sql.NullString
		if err := rows.Scan(&c.ID, &c.ListingID, &c.GuestID, &c.HostID, &last, &c.LastMessageAt, &c.CreatedAt, &c.UnreadCount); err != nil {
			return nil, apperrors.NewInternalError("failed to scan conversation", err)
		}
		c.LastMessage = last.String
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate conversations", err)
	}
	return conversations, nil
}

// CreateMessage appends a message and bumps the conversation in one transaction
func (a *MessageAdapter) CreateMessage(ctx context.Context, message *entities.Message) error {
	insert, insertArgs, err := a.db.Insert("messages").Rows(goqu.Record{
		"id":              message.ID,
		"conversation_id": message.ConversationID,
		"sender_id":       message.SenderID,
		"body":            message.Body,
		"created_at":      message.CreatedAt,
	}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	bump, bumpArgs, err := a.db.Update("conversations").Set(goqu.Record{
		"last_message":    message.Body,
		"last_message_at": message.CreatedAt,
	}).Where(goqu.Ex{"id": message.ConversationID}).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	err = a.client.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert, insertArgs...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, bump, bumpArgs...)
		return err
	})
	if err != nil {
		return apperrors.NewInternalError("failed to send message", err)
	}
	return nil
}

// ListMessages retrieves a thread oldest first
func (a *MessageAdapter) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entities.Message, error) {
	ds := a.db.From("messages").
		Select("id", "conversation_id", "sender_id", "body", "read_at", "created_at").
		Where(goqu.Ex{"conversation_id": conversationID}).
		Order(goqu.I("created_at").Asc(), goqu.I("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	if offset > 0 {
		ds = ds.Offset(uint(offset))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list messages", err)
	}
	defer rows.Close()

	messages := make([]*entities.Message, 0)
	for rows.Next() {
		m := &entities.Message{}
		var readAt sql.NullTime
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &readAt, &m.CreatedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan message", err)
		}
		if readAt.Valid {
			t := readAt.Time
			m.ReadAt = &t
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate messages", err)
	}
	return messages, nil
}

// MarkRead marks every unread message not sent by readerID as read
func (a *MessageAdapter) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	query, args, err := a.db.Update("messages").
		Set(goqu.Record{"read_at": time.Now()}).
		Where(
			goqu.Ex{"conversation_id": conversationID, "read_at": nil},
			goqu.I("sender_id").Neq(readerID),
		).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.NewInternalError("failed to mark messages read", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to get rows affected", err)
	}
	return n, nil
}

func scanConversation(row rowScanner) (*entities.Conversation, error) {
	c := &entities.Conversation{}
	var last sql.NullString
	if err := row.Scan(&c.ID, &c.ListingID, &c.GuestID, &c.HostID, &last, &c.LastMessageAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.LastMessage = last.String
	return c, nil
}
