package providers

import (
	"github.com/hearthtable/marketplace/internal/domain/entities"
)

// TokenProvider issues and verifies bearer access tokens
type TokenProvider interface {
	// Issue signs an access token for the user and returns it with its session claims
	Issue(user *entities.User) (string, *entities.Session, error)

	// Verify parses and validates an access token
	Verify(token string) (*entities.Session, error)
}
