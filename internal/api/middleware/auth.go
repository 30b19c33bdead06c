package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hearthtable/marketplace/internal/domain/entities"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
)

type sessionKey struct{}

// Authenticator turns a bearer token into a session
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*entities.Session, error)
}

// WithSession returns a copy of ctx carrying session
func WithSession(ctx context.Context, session *entities.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the caller's session, or nil for anonymous requests
func SessionFromContext(ctx context.Context) *entities.Session {
	session, _ := ctx.Value(sessionKey{}).(*entities.Session)
	return session
}

// AuthMiddleware attaches the session for requests that carry a valid bearer
// token. Requests without a token pass through anonymously; an invalid token
// is rejected so clients know to refresh.
func AuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				observability.LoggerFromContext(r.Context()).Debug().Err(err).Msg("rejected bearer token")
				unauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// RequireAuth rejects anonymous requests before the handler runs
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if SessionFromContext(r.Context()) == nil {
			unauthorized(w, "sign in required")
			return
		}
		next(w, r)
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// an EventSource, so event streams may pass the token as access_token instead.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) >= 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
