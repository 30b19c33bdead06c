package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/domain/providers"
	apperrors "github.com/hearthtable/marketplace/pkg/errors"
)

// accessClaims are the claims carried by an access token
type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTTokenProvider issues HS256-signed access tokens
type JWTTokenProvider struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTTokenProvider creates a token provider for the given secret
func NewJWTTokenProvider(secret, issuer string, ttl time.Duration) *JWTTokenProvider {
	return &JWTTokenProvider{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

var _ providers.TokenProvider = (*JWTTokenProvider)(nil)

// Issue signs a new access token with a unique token id
func (p *JWTTokenProvider) Issue(user *entities.User) (string, *entities.Session, error) {
	now := p.now()
	session := &entities.Session{
		UserID:    user.ID,
		Email:     user.Email,
		TokenID:   uuid.New().String(),
		ExpiresAt: now.Add(p.ttl),
	}

	claims := accessClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Subject:   user.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", nil, apperrors.NewInternalError("failed to sign access token", err)
	}
	return signed, session, nil
}

// Verify checks signature, issuer and expiry and returns the session
func (p *JWTTokenProvider) Verify(token string) (*entities.Session, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			return p.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.NewUnauthorizedError("access token expired")
		}
		return nil, apperrors.NewUnauthorizedError(fmt.Sprintf("invalid access token: %v", err))
	}
	if !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, apperrors.NewUnauthorizedError("invalid access token")
	}

	return &entities.Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
