package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/application/services"
	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
)

// heartbeatInterval keeps idle auth streams open through proxies
const heartbeatInterval = 30 * time.Second

// SessionService defines the interface for sign-in and the auth-state stream
type SessionService interface {
	SignUp(ctx context.Context, input services.SignUpInput) (*entities.AuthResult, error)
	SignIn(ctx context.Context, input services.SignInInput) (*entities.AuthResult, error)
	Refresh(ctx context.Context, input services.RefreshInput) (*entities.AuthResult, error)
	SignOut(ctx context.Context, session *entities.Session, refreshToken string) error
	Current(ctx context.Context, session *entities.Session) (*entities.User, error)
	UpdateUser(ctx context.Context, session *entities.Session, input services.UpdateUserInput) (*entities.User, error)
	Subscribe(ctx context.Context, session *entities.Session) (<-chan *entities.SessionEvent, error)
}

// AuthHandler handles accounts, tokens and auth-state push
type AuthHandler struct {
	service   SessionService
	heartbeat time.Duration
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service SessionService) *AuthHandler {
	return &AuthHandler{service: service, heartbeat: heartbeatInterval}
}

// SignUp handles POST /api/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var input services.SignUpInput
	if !decodeJSON(w, r, &input) {
		return
	}

	result, err := h.service.SignUp(r.Context(), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to sign up")
		return
	}

	respondWithJSON(w, http.StatusCreated, result)
}

// SignIn handles POST /api/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var input services.SignInInput
	if !decodeJSON(w, r, &input) {
		return
	}

	result, err := h.service.SignIn(r.Context(), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to sign in")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// Refresh handles POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var input services.RefreshInput
	if !decodeJSON(w, r, &input) {
		return
	}

	result, err := h.service.Refresh(r.Context(), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to refresh session")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// SignOut handles POST /api/auth/signout. The body may carry the refresh
// token so it is revoked together with the access token.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	var input struct {
		RefreshToken string `json:"refresh_token"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &input) {
		return
	}

	if err := h.service.SignOut(r.Context(), middleware.SessionFromContext(r.Context()), input.RefreshToken); err != nil {
		respondWithAppError(w, r, err, "failed to sign out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSession handles GET /api/auth/session
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session := middleware.SessionFromContext(r.Context())
	user, err := h.service.Current(r.Context(), session)
	if err != nil {
		respondWithAppError(w, r, err, "failed to fetch session")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"user":    user,
	})
}

// UpdateUser handles PATCH /api/auth/user
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var input services.UpdateUserInput
	if !decodeJSON(w, r, &input) {
		return
	}

	user, err := h.service.UpdateUser(r.Context(), middleware.SessionFromContext(r.Context()), input)
	if err != nil {
		respondWithAppError(w, r, err, "failed to update user")
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

// StreamEvents handles GET /api/auth/events, an SSE stream of the caller's
// auth-state changes. The stream ends after a signed_out event.
func (h *AuthHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx)
	session := middleware.SessionFromContext(ctx)

	events, err := h.service.Subscribe(ctx, session)
	if err != nil {
		respondWithAppError(w, r, err, "failed to open event stream")
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug().Err(err).Msg("could not clear write deadline for event stream")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.sendEvent(w, "connected", map[string]interface{}{
		"user_id":   session.UserID,
		"timestamp": time.Now().UTC(),
	})
	if err := rc.Flush(); err != nil {
		logger.Warn().Err(err).Msg("streaming not supported")
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("user_id", session.UserID).Msg("auth event stream closed by client")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			rc.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.Type), event)
			rc.Flush()
			if event.Type == entities.SessionEventSignedOut {
				return
			}
		}
	}
}

func (h *AuthHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Error().Err(err).Str("event", eventType).Msg("failed to marshal event")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}
