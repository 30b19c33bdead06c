package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/providers"
	"github.com/hearthtable/marketplace/internal/domain/repositories"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
	"github.com/hearthtable/marketplace/pkg/config"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

const refreshTokenBytes = 32

// SignUpInput registers a new account
type SignUpInput struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=80"`
}

// SignInInput authenticates with email and password
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshInput exchanges a refresh token for a new token pair
type RefreshInput struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// UpdateUserInput changes profile fields; nil fields are left alone
type UpdateUserInput struct {
	DisplayName *string           `json:"display_name,omitempty" validate:"omitempty,min=1,max=80"`
	AvatarURL   *string           `json:"avatar_url,omitempty" validate:"omitempty,url,max=500"`
	Bio         *string           `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Metadata    map[string]string `json:"metadata,omitempty" validate:"omitempty,max=20,dive,keys,min=1,max=50,endkeys,max=500"`
}

// SessionService signs users in and out and pushes auth-state changes to
// every open stream of the user
type SessionService struct {
	users      repositories.UserRepository
	tokens     providers.TokenProvider
	store      providers.SessionStore
	events     providers.EventBus
	refreshTTL time.Duration
	cost       int
	now        func() time.Time
}

// NewSessionService creates a new session service. events may be nil.
func NewSessionService(
	users repositories.UserRepository,
	tokens providers.TokenProvider,
	store providers.SessionStore,
	events providers.EventBus,
	cfg config.AuthConfig,
) *SessionService {
	return &SessionService{
		users:      users,
		tokens:     tokens,
		store:      store,
		events:     events,
		refreshTTL: cfg.RefreshTokenTTL,
		cost:       bcrypt.DefaultCost,
		now:        time.Now,
	}
}

// WithPasswordCost sets the bcrypt cost, lowered in tests
func (s *SessionService) WithPasswordCost(cost int) *SessionService {
	s.cost = cost
	return s
}

// SignUp creates an account and signs it in
func (s *SessionService) SignUp(ctx context.Context, input SignUpInput) (*entities.AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to hash password", err)
	}

	now := s.now().UTC()
	user := &entities.User{
		ID:           uuid.New().String(),
		Email:        input.Email,
		PasswordHash: string(hash),
		DisplayName:  input.DisplayName,
		Metadata:     map[string]string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().Str("user_id", user.ID).Msg("user signed up")
	return s.issue(ctx, user, entities.SessionEventSignedIn)
}

// SignIn checks credentials. Unknown emails and wrong passwords get the same error.
func (s *SessionService) SignIn(ctx context.Context, input SignInInput) (*entities.AuthResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	invalid := apperrors.NewUnauthorizedError("invalid email or password")

	user, err := s.users.GetByEmail(ctx, input.Email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, invalid
	}

	return s.issue(ctx, user, entities.SessionEventSignedIn)
}

// Refresh rotates a refresh token. Each refresh token works once.
func (s *SessionService) Refresh(ctx context.Context, input RefreshInput) (*entities.AuthResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	userID, err := s.store.ConsumeRefreshToken(ctx, hashToken(input.RefreshToken))
	if err != nil {
		if errors.Is(err, providers.ErrCacheMiss) {
			return nil, apperrors.NewUnauthorizedError("refresh token is invalid or expired")
		}
		return nil, apperrors.NewInternalError("failed to read refresh token", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthorizedError("refresh token is invalid or expired")
		}
		return nil, err
	}

	return s.issue(ctx, user, entities.SessionEventTokenRefreshed)
}

// SignOut revokes the access token for the rest of its lifetime and, when
// given, the refresh token
func (s *SessionService) SignOut(ctx context.Context, session *entities.Session, refreshToken string) error {
	if session == nil {
		return apperrors.NewUnauthorizedError("sign in required")
	}

	if remaining := session.ExpiresAt.Sub(s.now()); remaining > 0 {
		if err := s.store.RevokeAccessToken(ctx, session.TokenID, remaining); err != nil {
			return apperrors.NewInternalError("failed to revoke access token", err)
		}
	}

	if refreshToken != "" {
		if _, err := s.store.ConsumeRefreshToken(ctx, hashToken(refreshToken)); err != nil && !errors.Is(err, providers.ErrCacheMiss) {
			return apperrors.NewInternalError("failed to revoke refresh token", err)
		}
	}

	s.publish(ctx, entities.NewSessionEvent(entities.SessionEventSignedOut, session.UserID, nil))
	observability.LoggerFromContext(ctx).Info().Str("user_id", session.UserID).Msg("user signed out")
	return nil
}

// Authenticate verifies a bearer token and rejects revoked ones
func (s *SessionService) Authenticate(ctx context.Context, token string) (*entities.Session, error) {
	session, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.store.IsAccessTokenRevoked(ctx, session.TokenID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to check token revocation", err)
	}
	if revoked {
		return nil, apperrors.NewUnauthorizedError("access token was revoked")
	}
	return session, nil
}

// Current returns the signed-in user
func (s *SessionService) Current(ctx context.Context, session *entities.Session) (*entities.User, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthorizedError("account no longer exists")
		}
		return nil, err
	}
	return user, nil
}

// UpdateUser changes profile fields and metadata. Metadata keys are merged;
// an empty value deletes a key.
func (s *SessionService) UpdateUser(ctx context.Context, session *entities.Session, input UpdateUserInput) (*entities.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.Current(ctx, session)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*input.AvatarURL)
	}
	if input.Bio != nil {
		user.Bio = strings.TrimSpace(*input.Bio)
	}
	if len(input.Metadata) > 0 {
		if user.Metadata == nil {
			user.Metadata = map[string]string{}
		}
		for k, v := range input.Metadata {
			if v == "" {
				delete(user.Metadata, k)
				continue
			}
			user.Metadata[k] = v
		}
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}

	s.publish(ctx, entities.NewSessionEvent(entities.SessionEventUserUpdated, user.ID, user))
	return user, nil
}

// Subscribe streams the user's auth-state events until ctx is done
func (s *SessionService) Subscribe(ctx context.Context, session *entities.Session) (<-chan *entities.SessionEvent, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorizedError("sign in required")
	}
	if s.events == nil {
		return nil, apperrors.NewExternalError("auth events are not available", nil)
	}
	ch, err := s.events.Subscribe(ctx, providers.GetSessionChannel(session.UserID))
	if err != nil {
		return nil, apperrors.NewExternalError("failed to subscribe to auth events", err)
	}
	return ch, nil
}

func (s *SessionService) issue(ctx context.Context, user *entities.User, event entities.SessionEventType) (*entities.AuthResult, error) {
	access, session, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to generate refresh token", err)
	}
	if err := s.store.SaveRefreshToken(ctx, hashToken(refresh), user.ID, s.refreshTTL); err != nil {
		return nil, apperrors.NewInternalError("failed to store refresh token", err)
	}

	s.publish(ctx, entities.NewSessionEvent(event, user.ID, user))

	return &entities.AuthResult{
		Tokens: &entities.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			TokenType:    "Bearer",
			ExpiresAt:    session.ExpiresAt,
		},
		User: user,
	}, nil
}

// publish pushes an event; delivery failures never fail the auth action
func (s *SessionService) publish(ctx context.Context, event *entities.SessionEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, providers.GetSessionChannel(event.UserID), event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("user_id", event.UserID).
			Str("event", string(event.Type)).
			Msg("failed to publish session event")
	}
}

func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// hashToken keeps raw refresh tokens out of the session store
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
