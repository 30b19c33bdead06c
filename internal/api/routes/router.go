package routes

import (
	"net/http"

	"github.com/hearthtable/marketplace/internal/api/handlers"
	"github.com/hearthtable/marketplace/internal/api/middleware"
	"github.com/hearthtable/marketplace/internal/application/loaders"
	"github.com/hearthtable/marketplace/internal/infrastructure/observability"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	Listings     *handlers.ListingHandler
	Availability *handlers.AvailabilityHandler
	Images       *handlers.ImageHandler
	Favorites    *handlers.FavoriteHandler
	Reviews      *handlers.ReviewHandler
	Messages     *handlers.MessageHandler
}

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	handlers        Handlers
	authenticator   middleware.Authenticator
	newLoaders      func() *loaders.Loaders
	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware and newLoaders may be nil.
func NewRouter(
	h Handlers,
	authenticator middleware.Authenticator,
	newLoaders func() *loaders.Loaders,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		handlers:        h,
		authenticator:   authenticator,
		newLoaders:      newLoaders,
		cacheMiddleware: cacheMiddleware,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	auth := middleware.RequireAuth
	h := r.handlers

	r.mux.HandleFunc("GET /health", h.Health.Health)

	// Accounts and auth-state push
	r.mux.HandleFunc("POST /api/auth/signup", h.Auth.SignUp)
	r.mux.HandleFunc("POST /api/auth/signin", h.Auth.SignIn)
	r.mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	r.mux.HandleFunc("POST /api/auth/signout", auth(h.Auth.SignOut))
	r.mux.HandleFunc("GET /api/auth/session", auth(h.Auth.GetSession))
	r.mux.HandleFunc("PATCH /api/auth/user", auth(h.Auth.UpdateUser))
	r.mux.HandleFunc("GET /api/auth/events", auth(h.Auth.StreamEvents))

	// Public search
	r.mux.HandleFunc("GET /api/stays", h.Listings.BrowseStays)
	r.mux.HandleFunc("GET /api/food", h.Listings.BrowseFood)

	// Listings
	r.mux.HandleFunc("GET /api/listings/{id}", h.Listings.GetListing)
	r.mux.HandleFunc("POST /api/listings", auth(h.Listings.CreateListing))
	r.mux.HandleFunc("PATCH /api/listings/{id}", auth(h.Listings.UpdateListing))
	r.mux.HandleFunc("POST /api/listings/{id}/publish", auth(h.Listings.PublishListing))
	r.mux.HandleFunc("POST /api/listings/{id}/unpublish", auth(h.Listings.UnpublishListing))
	r.mux.HandleFunc("POST /api/listings/{id}/archive", auth(h.Listings.ArchiveListing))
	r.mux.HandleFunc("GET /api/host/listings", auth(h.Listings.ListMine))

	// Calendars
	r.mux.HandleFunc("GET /api/listings/{id}/availability", h.Availability.GetCalendar)
	r.mux.HandleFunc("GET /api/listings/{id}/quote", h.Availability.GetQuote)
	r.mux.HandleFunc("PUT /api/listings/{id}/availability", auth(h.Availability.SetSlots))
	r.mux.HandleFunc("DELETE /api/listings/{id}/availability", auth(h.Availability.ClearSlots))

	// Images
	r.mux.HandleFunc("GET /api/listings/{id}/images", h.Images.ListImages)
	r.mux.HandleFunc("POST /api/listings/{id}/images", auth(h.Images.UploadImages))
	r.mux.HandleFunc("PUT /api/listings/{id}/images/order", auth(h.Images.ReorderImages))
	r.mux.HandleFunc("POST /api/listings/{id}/images/{imageId}/primary", auth(h.Images.PromoteImage))
	r.mux.HandleFunc("DELETE /api/listings/{id}/images/{imageId}", auth(h.Images.DeleteImage))

	// Favorites
	r.mux.HandleFunc("POST /api/listings/{id}/favorite", auth(h.Favorites.ToggleFavorite))
	r.mux.HandleFunc("GET /api/listings/{id}/favorite", auth(h.Favorites.GetFavorite))
	r.mux.HandleFunc("GET /api/favorites", auth(h.Favorites.ListFavorites))

	// Reviews
	r.mux.HandleFunc("GET /api/listings/{id}/reviews", h.Reviews.ListReviews)
	r.mux.HandleFunc("POST /api/listings/{id}/reviews", auth(h.Reviews.SubmitReview))
	r.mux.HandleFunc("GET /api/listings/{id}/reviews/mine", auth(h.Reviews.MyReview))

	// Messaging
	r.mux.HandleFunc("GET /api/conversations", auth(h.Messages.Inbox))
	r.mux.HandleFunc("POST /api/listings/{id}/messages", auth(h.Messages.ContactHost))
	r.mux.HandleFunc("GET /api/conversations/{id}/messages", auth(h.Messages.Thread))
	r.mux.HandleFunc("POST /api/conversations/{id}/messages", auth(h.Messages.Send))
	r.mux.HandleFunc("POST /api/conversations/{id}/read", auth(h.Messages.MarkRead))

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.newLoaders != nil {
		handler = middleware.LoadersMiddleware(r.newLoaders)(handler)
	}

	handler = middleware.AuthMiddleware(r.authenticator)(handler)

	// Apply cache middleware if available
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.RoutePattern(r.mux)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
