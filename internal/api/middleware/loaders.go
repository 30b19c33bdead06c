package middleware

import (
	"net/http"

	"github.com/hearthtable/marketplace/internal/application/loaders"
)

// LoadersMiddleware gives every request a fresh set of dataloaders so batching
// and memoization never leak between requests
func LoadersMiddleware(newLoaders func() *loaders.Loaders) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := loaders.WithLoaders(r.Context(), newLoaders())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
