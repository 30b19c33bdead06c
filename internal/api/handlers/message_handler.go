package handlers

import (
	"context"
	"net/http"

	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// MessageService defines the interface for guest-host conversations
type MessageService interface {
	ContactHost(ctx context.Context, session *entities.Session, listingID string, input services.MessageInput) (*entities.Conversation, *entities.Message, error)
	Send(ctx context.Context, session *entities.Session, conversationID string, input services.MessageInput) (*entities.Message, error)
	Inbox(ctx context.Context, session *entities.Session) ([]*entities.Conversation, error)
	Thread(ctx context.Context, session *entities.Session, conversationID string, page, perPage int) ([]*entities.Message, error)
	MarkRead(ctx context.Context, session *entities.Session, conversationID string) (int64, error)
}

// MessageHandler handles the inbox and conversation threads
type MessageHandler struct {
	service MessageService
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(service MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// Inbox handles GET /api/conversations
func (h *MessageHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.service.Inbox(r.Context(), middleware.SessionFromContext(r.Context()))
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch conversations")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"conversations": conversations})
}

// ContactHost handles POST /api/listings/{id}/messages
func (h *MessageHandler) ContactHost(w http.ResponseWriter, r *http.Request) {
	var input services.MessageInput
	if !decodeJSON(w, r, &input) {
		return
	}

	conversation, message, err := h.service.ContactHost(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to send message")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"conversation": conversation,
		"message":      message,
	})
}

// Thread handles GET /api/conversations/{id}/messages?page=&per_page=
func (h *MessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	page, perPage := pageParams(r)
	messages, err := h.service.Thread(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), page, perPage)
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch messages")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// Send handles POST /api/conversations/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var input services.MessageInput
	if !decodeJSON(w, r, &input) {
		return
	}

	message, err := h.service.Send(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to send message")
		return
	}

	respondWithJSON(w, http.StatusCreated, message)
}

// MarkRead handles POST /api/conversations/{id}/read
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	marked, err := h.service.MarkRead(r.Context(), middleware.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err, "failed to mark conversation read")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"marked": marked})
}
